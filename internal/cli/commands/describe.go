package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/ebean/internal/cli/ui"
	"github.com/conduit-lang/ebean/internal/orm/deploy"
)

// NewDescribeCommand creates the describe command
func NewDescribeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [bean]",
		Short: "Show the bean descriptors built from the deployment",
		Long: `Without arguments, list every bean with its base table and id strategy.
With a bean name, show its full descriptor and properties.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.load(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			m, err := env.deployment()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				describeAll(env, m)
				return nil
			}
			return describeBean(env, m, args[0])
		},
	}
}

func describeAll(env *environment, m *deploy.Manager) {
	table := ui.NewTable(env.out, env.noColor, "BEAN", "TYPE", "TABLE", "ID", "CONCURRENCY", "CACHE", "DOCSTORE")
	for _, d := range m.Descriptors() {
		table.AddRow(
			d.Name(),
			d.EntityType().String(),
			d.BaseTable(),
			d.IdType().String(),
			d.ConcurrencyMode().String(),
			yesNo(d.IsBeanCaching()),
			yesNo(d.IsDocStoreMapped()),
		)
	}
	table.Render()
	fmt.Fprintf(env.out, "\n%d bean(s)\n", table.Len())
}

func describeBean(env *environment, m *deploy.Manager, name string) error {
	d, ok := m.Get(name)
	if !ok {
		msg := ui.Message{
			Level:       ui.LevelError,
			Context:     "unknown bean",
			Problem:     fmt.Sprintf("no bean named %q in %s", name, env.cfg.Migration.Entities),
			Suggestions: ui.FindSimilar(name, m.List(), 3, 3),
			NoColor:     env.noColor,
		}
		msg.Write(env.errOut)
		return fmt.Errorf("%w: %s", deploy.ErrUnknownBean, name)
	}

	kv := ui.NewKeyValueTable(env.out, env.noColor)
	kv.AddRow("Bean", d.FullName())
	kv.AddRow("Type", d.EntityType().String())
	kv.AddRow("Table", d.BaseTable())
	if d.IsHistorySupport() {
		kv.AddRow("As of table", d.BaseTableAsOf())
	}
	if d.IsDraftable() {
		kv.AddRow("Draft table", d.DraftTable())
	}
	if deps := d.DependentTables(); len(deps) > 0 {
		kv.AddRow("Depends on", strings.Join(deps, ", "))
	}
	kv.AddRow("Id type", d.IdType().String())
	if d.SequenceName() != "" {
		kv.AddRow("Sequence", d.SequenceName())
	}
	kv.AddRow("Concurrency", d.ConcurrencyMode().String())
	kv.AddRow("Changes only", strconv.FormatBool(d.IsUpdateChangesOnly()))
	if sel, ok := d.DefaultSelectClause(); ok {
		kv.AddRow("Default select", sel)
	}
	if d.IsDocStoreMapped() {
		kv.AddRow("Doc store queue", d.DocStoreQueueID())
	}
	kv.Render()
	fmt.Fprintln(env.out)

	table := ui.NewTable(env.out, env.noColor, "PROPERTY", "COLUMN", "TYPE", "KIND", "FLAGS")
	for _, p := range d.Properties() {
		column, dbType := p.DbColumn(), p.DbType()
		if p.IsAssocOne() || p.IsAssocMany() {
			dbType = p.TargetType()
		}
		table.AddRow(p.Name(), column, dbType, p.Kind().String(), propertyFlags(p))
	}
	table.Render()
	return nil
}

func propertyFlags(p *deploy.BeanProperty) string {
	var flags []string
	if p.IsID() {
		flags = append(flags, "id")
	}
	if p.IsVersion() {
		flags = append(flags, "version")
	}
	if p.IsNotNull() {
		flags = append(flags, "not null")
	}
	if p.IsUnique() {
		flags = append(flags, "unique")
	}
	if p.IsLazy() {
		flags = append(flags, "lazy")
	}
	if p.IsTransient() {
		flags = append(flags, "transient")
	}
	return strings.Join(flags, ",")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
