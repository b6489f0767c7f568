package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/ebean/internal/cli/ui"
	"github.com/conduit-lang/ebean/internal/orm/migrate"
	"github.com/conduit-lang/ebean/internal/orm/migrate/platform"
)

// validateMigrationSQL rejects scripts with operations a generated migration never contains
func validateMigrationSQL(sql string) error {
	dangerous := []string{
		"DROP DATABASE",
		"DROP SCHEMA",
		"TRUNCATE",
		"GRANT",
		"REVOKE",
	}

	upperSQL := strings.ToUpper(sql)
	for _, pattern := range dangerous {
		if strings.Contains(upperSQL, pattern) {
			return fmt.Errorf("migration contains potentially dangerous operation: %s", pattern)
		}
	}
	return nil
}

// categorizeDatabaseError returns a user-friendly error message based on the database error
// In verbose mode, it returns the full error; otherwise, it returns a categorized message
func categorizeDatabaseError(err error, verbose bool) string {
	if verbose {
		return err.Error()
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "syntax") {
		return "SQL syntax error - use --verbose for details"
	}
	if strings.Contains(errStr, "constraint") || strings.Contains(errStr, "violates") {
		return "constraint violation - use --verbose for details"
	}
	if strings.Contains(errStr, "does not exist") || strings.Contains(errStr, "no such") {
		return "referenced object does not exist - use --verbose for details"
	}
	if strings.Contains(errStr, "already exists") {
		return "object already exists - use --verbose for details"
	}
	if strings.Contains(errStr, "permission denied") || strings.Contains(errStr, "access denied") {
		return "permission denied - check database user privileges"
	}
	if errors.Is(err, migrate.ErrChecksumMismatch) {
		return "an applied migration script was modified - use --verbose for details"
	}

	return "migration failed - use --verbose for details"
}

// confirm asks a yes/no question, replaced in tests
var confirm = func(message string) (bool, error) {
	ok := false
	prompt := &survey.Confirm{Message: message, Default: false}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// NewMigrateCommand creates the migrate command
func NewMigrateCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long: `Generate, run and manage database migrations.

Migrations are written to the migration directory (dbmigration/ by default)
as versioned SQL scripts with the model they were generated from:
  1.0__initial.sql
  1.1__add_email.sql
  rollback/1.1__add_email.sql
  drop/1.1__add_email.sql
  model/1.1.model.yaml

Available subcommands:
  generate - Generate the next migration from the entity deployment
  up       - Apply all pending migrations
  down     - Roll back the last migration, or down to a version
  status   - Show applied and pending migrations
  drop     - Run the pending drops of an applied migration`,
	}

	cmd.AddCommand(newMigrateGenerateCommand(flags))
	cmd.AddCommand(newMigrateUpCommand(flags))
	cmd.AddCommand(newMigrateDownCommand(flags))
	cmd.AddCommand(newMigrateStatusCommand(flags))
	cmd.AddCommand(newMigrateDropCommand(flags))

	return cmd
}

func newMigrateGenerateCommand(flags *globalFlags) *cobra.Command {
	var name, version, platformName string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the next migration",
		Long: `Compare the entity deployment with the model of the last migration and
write the DDL needed to move from one to the other.

Nothing is written when the model is unchanged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.load(cmd)
			if err != nil {
				return err
			}
			defer env.close()
			return runMigrateGenerate(env, name, version, platformName)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "migration name (defaults to initial, then a name derived from the changes)")
	cmd.Flags().StringVar(&version, "version", "", "migration version (defaults to the next version)")
	cmd.Flags().StringVar(&platformName, "platform", "", "generate for this platform instead of the configured one")

	return cmd
}

func runMigrateGenerate(env *environment, name, version, platformName string) error {
	pddl, err := env.platform(platformName)
	if err != nil {
		return err
	}

	m, err := env.deployment()
	if err != nil {
		return err
	}
	target := migrate.NewModelBuilder(env.logger).Build(m.Descriptors())

	dir := env.cfg.Migration.Dir
	current, err := migrate.LoadCurrentModel(dir)
	if err != nil {
		return err
	}

	if version == "" {
		existing, err := migrate.Versions(dir)
		if err != nil {
			return err
		}
		version = migrate.NextVersion(existing)
	} else if _, err := migrate.ParseVersion(version); err != nil {
		return err
	}
	// later migrations are named after their changes by the generator
	if name == "" && current.Len() == 0 {
		name = "initial"
	}

	mcfg := env.cfg.MConfiguration()
	mcfg.Platform = pddl.Name()
	gen := migrate.NewGenerator(pddl, migrate.WithConfiguration(mcfg), migrate.WithGeneratorLogger(env.logger))

	mig, err := gen.GenerateMigration(current, target, version, name)
	if err != nil {
		return err
	}
	if mig == nil {
		fmt.Fprintln(env.out, ui.Success("No changes detected, model is up to date", env.noColor))
		return nil
	}

	writer := migrate.NewScriptWriter(dir)
	paths, err := writer.Write(mig)
	if err != nil {
		return err
	}
	modelPath, err := writer.WriteModel(version, target)
	if err != nil {
		return err
	}

	fmt.Fprintln(env.out, ui.Success(fmt.Sprintf("Generated migration %s", mig.FileName()), env.noColor))
	for _, p := range append(paths, modelPath) {
		fmt.Fprintf(env.out, "  %s\n", p)
	}

	if mig.Breaking || mig.DataLoss {
		msg := ui.Message{
			Level:       ui.LevelWarning,
			Context:     "review required",
			Problem:     fmt.Sprintf("migration %s needs manual review", mig.FileName()),
			Consequence: reviewReason(mig),
			NoColor:     env.noColor,
		}
		if mig.Drop != "" {
			msg.HelpCommands = []string{"Run the pending drops once deployed: ebean migrate drop " + mig.Version}
		}
		msg.Write(env.errOut)
	}
	return nil
}

func reviewReason(mig *migrate.Migration) string {
	switch {
	case mig.Breaking && mig.DataLoss:
		return "It contains breaking changes and may lose data."
	case mig.DataLoss:
		return "It may lose data."
	default:
		return "It contains breaking changes."
	}
}

// platform resolves the DDL platform, preferring an explicit name
func (e *environment) platform(name string) (*platform.PlatformDdl, error) {
	if name == "" {
		return e.cfg.PlatformDdl()
	}
	p, err := platform.Lookup(name)
	if err != nil {
		ui.UnknownPlatformError(name, platform.Names(), e.noColor).Write(e.errOut)
		return nil, err
	}
	return p, nil
}

func newMigrateUpCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.load(cmd)
			if err != nil {
				return err
			}
			defer env.close()
			return runMigrateUp(cmd.Context(), env)
		},
	}
}

func runMigrateUp(ctx context.Context, env *environment) error {
	migrations, err := migrate.LoadMigrations(env.cfg.Migration.Dir)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if err := validateMigrationSQL(m.Up); err != nil {
			return fmt.Errorf("%s: %w", m.FileName(), err)
		}
	}

	runner, closeDB, err := env.runner(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	applied, err := runner.MigrateUp(ctx, migrations)
	if err != nil {
		ui.MigrationError(
			categorizeDatabaseError(err, env.verbose),
			fmt.Sprintf("%d migration(s) were applied before the failure.", applied),
			env.noColor,
		).Write(env.errOut)
		return err
	}

	if applied == 0 {
		fmt.Fprintln(env.out, ui.Success("Database is up to date", env.noColor))
		return nil
	}
	fmt.Fprintln(env.out, ui.Success(fmt.Sprintf("Applied %d migration(s)", applied), env.noColor))
	return nil
}

func newMigrateDownCommand(flags *globalFlags) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		Long: `Roll back the last applied migration using the rollback script recorded
when it was applied. With --to, roll back every migration newer than the
given version.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.load(cmd)
			if err != nil {
				return err
			}
			defer env.close()
			return runMigrateDown(cmd.Context(), env, to)
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "roll back migrations newer than this version")
	return cmd
}

func runMigrateDown(ctx context.Context, env *environment, to string) error {
	runner, closeDB, err := env.runner(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	if to != "" {
		n, err := runner.MigrateDownTo(ctx, to)
		if err != nil {
			ui.MigrationError(
				categorizeDatabaseError(err, env.verbose),
				fmt.Sprintf("%d migration(s) were rolled back before the failure.", n),
				env.noColor,
			).Write(env.errOut)
			return err
		}
		fmt.Fprintln(env.out, ui.Success(fmt.Sprintf("Rolled back %d migration(s) to %s", n, to), env.noColor))
		return nil
	}

	mig, err := runner.MigrateDown(ctx)
	if errors.Is(err, migrate.ErrNoMigrations) {
		fmt.Fprintln(env.out, "No migrations to roll back")
		return nil
	}
	if err != nil {
		ui.MigrationError(categorizeDatabaseError(err, env.verbose), "", env.noColor).Write(env.errOut)
		return err
	}
	fmt.Fprintln(env.out, ui.Success(fmt.Sprintf("Rolled back %s", mig.FileName()), env.noColor))
	return nil
}

func newMigrateStatusCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.load(cmd)
			if err != nil {
				return err
			}
			defer env.close()
			return runMigrateStatus(cmd.Context(), env)
		},
	}
}

func runMigrateStatus(ctx context.Context, env *environment) error {
	migrations, err := migrate.LoadMigrations(env.cfg.Migration.Dir)
	if err != nil {
		return err
	}

	runner, closeDB, err := env.runner(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	status, err := runner.Status(ctx, migrations)
	if err != nil {
		return err
	}

	table := ui.NewTable(env.out, env.noColor, "VERSION", "NAME", "STATE", "APPLIED AT")
	for _, m := range status.Applied {
		table.AddRow(m.Version, m.Name, "applied", m.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	pending := color.New(color.FgYellow)
	if env.noColor {
		pending.DisableColor()
	}
	for _, m := range status.Pending {
		table.AddRow(m.Version, m.Name, pending.Sprint("pending"))
	}
	if table.Len() > 0 {
		table.Render()
		fmt.Fprintln(env.out)
	}
	fmt.Fprintln(env.out, status.Summary())
	return nil
}

func newMigrateDropCommand(flags *globalFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "drop <version>",
		Short: "Run the pending drops of an applied migration",
		Long: `Run the drop script generated with a migration. Drops are deferred so
that columns and tables are only removed once every running instance has
moved to the new model.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.load(cmd)
			if err != nil {
				return err
			}
			defer env.close()
			return runMigrateDrop(cmd.Context(), env, args[0], yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func runMigrateDrop(ctx context.Context, env *environment, version string, yes bool) error {
	migrations, err := migrate.LoadMigrations(env.cfg.Migration.Dir)
	if err != nil {
		return err
	}

	var mig *migrate.Migration
	for _, m := range migrations {
		if m.Version == version {
			mig = m
			break
		}
	}
	if mig == nil {
		return fmt.Errorf("%w: %s", migrate.ErrMigrationNotFound, version)
	}
	if mig.Drop == "" {
		fmt.Fprintf(env.out, "Migration %s has no pending drops\n", mig.FileName())
		return nil
	}

	fmt.Fprintln(env.out, mig.Drop)
	if !yes {
		ok, err := confirm(fmt.Sprintf("Run the drop script of %s?", mig.FileName()))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(env.out, "Cancelled")
			return nil
		}
	}

	runner, closeDB, err := env.runner(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := runner.RunDrop(ctx, mig); err != nil {
		ui.MigrationError(categorizeDatabaseError(err, env.verbose), "", env.noColor).Write(env.errOut)
		return err
	}
	fmt.Fprintln(env.out, ui.Success(fmt.Sprintf("Ran pending drops of %s", mig.FileName()), env.noColor))
	return nil
}

// runner connects and prepares the migration table
func (e *environment) runner(ctx context.Context) (*migrate.Runner, func(), error) {
	pddl, err := e.cfg.PlatformDdl()
	if err != nil {
		return nil, nil, err
	}
	db, err := e.connect(ctx)
	if err != nil {
		return nil, nil, err
	}

	r := migrate.NewRunner(db, pddl, migrate.WithRunnerLogger(e.logger))
	if err := r.Initialize(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize migration table: %w", err)
	}
	return r, func() { db.Close() }, nil
}
