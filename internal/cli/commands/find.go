package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/ebean/internal/cli/ui"
	"github.com/conduit-lang/ebean/internal/orm/bean"
	"github.com/conduit-lang/ebean/internal/orm/cache"
	"github.com/conduit-lang/ebean/internal/orm/deploy"
	"github.com/conduit-lang/ebean/internal/orm/dialect"
	"github.com/conduit-lang/ebean/internal/orm/load"
)

// ErrBeanNotFound is returned by find when no row has the id
var ErrBeanNotFound = errors.New("bean not found")

// NewFindCommand creates the find command
func NewFindCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "find <bean> <id> [path...]",
		Short: "Load one bean by id",
		Long: `Load one bean by id and print its properties. Lazy properties and
association paths such as address.city are loaded on demand, in batches of
lazyload.batch_size. Beans with caching enabled are read from and put into
the configured L2 cache.`,
		Example: `  ebean find Customer 42
  ebean find Order 7 customer.name customer.address.city`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.load(cmd)
			if err != nil {
				return err
			}
			defer env.close()
			return runFind(cmd.Context(), env, args[0], args[1], args[2:])
		},
	}
}

func runFind(ctx context.Context, env *environment, beanName, rawID string, paths []string) error {
	m, err := env.deployment()
	if err != nil {
		return err
	}
	desc, ok := m.Get(beanName)
	if !ok {
		msg := ui.Message{
			Level:       ui.LevelError,
			Context:     "unknown bean",
			Problem:     fmt.Sprintf("no bean named %q in %s", beanName, env.cfg.Migration.Entities),
			Suggestions: ui.FindSimilar(beanName, m.List(), 3, 3),
			NoColor:     env.noColor,
		}
		msg.Write(env.errOut)
		return fmt.Errorf("%w: %s", deploy.ErrUnknownBean, beanName)
	}
	idProp := desc.IDProperty()
	if idProp == nil {
		return fmt.Errorf("%s has no single id property", desc.Name())
	}
	id := parseID(idProp, rawID)

	db, err := env.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	c, err := env.cfg.NewCache(ctx)
	if err != nil {
		return err
	}
	if closer, ok := c.(io.Closer); ok {
		defer closer.Close()
	}
	bc := cache.NewBeanCache(c, env.logger)

	loader := load.NewLoader(db, dialect.ForPlatform(env.cfg.Database.Platform),
		load.WithBatchSize(env.cfg.LazyLoad.BatchSize),
		load.WithBeanCache(bc),
		load.WithLookup(m),
		load.WithLogger(env.logger),
	)

	pc := bean.NewPersistenceContext()
	b, source, err := findByID(ctx, loader, bc, desc, pc, id)
	if err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("%w: %s id %s", ErrBeanNotFound, desc.Name(), rawID)
	}
	env.logger.Debug("found bean",
		zap.String("bean", desc.Name()),
		zap.Any("id", id),
		zap.String("source", source),
	)

	kv := ui.NewKeyValueTable(env.out, env.noColor)
	for _, p := range desc.Properties() {
		if p.IsAssocMany() || p.IsTransient() {
			continue
		}
		v, err := b.EbeanIntercept().Get(ctx, p.Name())
		if err != nil {
			return fmt.Errorf("failed to read %s.%s: %w", desc.Name(), p.Name(), err)
		}
		kv.AddRow(p.Name(), formatValue(m, v))
	}
	for _, path := range paths {
		v, err := readPath(ctx, m, desc, b, path)
		if err != nil {
			return err
		}
		kv.AddRow(path, formatValue(m, v))
	}
	kv.Render()
	fmt.Fprintf(env.errOut, "\n%s %s loaded from %s\n", desc.Name(), rawID, source)
	return nil
}

// findByID reads the bean cache first for caching beans, then the database.
// The loaded bean is attached to the loader so lazy properties load on access.
func findByID(ctx context.Context, loader *load.Loader, bc *cache.BeanCache, desc *deploy.BeanDescriptor, pc *bean.PersistenceContext, id interface{}) (bean.EntityBean, string, error) {
	if desc.IsBeanCaching() {
		cached, ok, err := bc.Get(ctx, desc, id)
		if err != nil {
			return nil, "", err
		}
		if ok {
			pc.Put(desc.Name(), id, cached)
			loader.Attach(desc, "", pc, []bean.EntityBean{cached})
			return cached, "cache", nil
		}
	}

	q := loader.Query(desc, pc)
	q.Where().IdEq(id)
	b, err := q.FindOne(ctx)
	if err != nil || b == nil {
		return nil, "", err
	}
	loader.Attach(desc, "", pc, []bean.EntityBean{b})
	if desc.IsBeanCaching() {
		if err := bc.Put(ctx, desc, b); err != nil {
			return nil, "", fmt.Errorf("failed to cache %s: %w", desc.Name(), err)
		}
	}
	return b, "database", nil
}

// readPath follows a dotted association path, lazy loading each bean on the way
func readPath(ctx context.Context, m *deploy.Manager, desc *deploy.BeanDescriptor, b bean.EntityBean, path string) (interface{}, error) {
	segments := strings.Split(path, ".")
	var v interface{} = b
	for i, name := range segments {
		current, ok := v.(bean.EntityBean)
		if !ok {
			if v == nil {
				return nil, nil
			}
			return nil, fmt.Errorf("%s: %s is not an association", path, strings.Join(segments[:i], "."))
		}
		p := desc.Property(name)
		if p == nil {
			return nil, fmt.Errorf("%s: %s has no property %s", path, desc.Name(), name)
		}
		var err error
		if v, err = current.EbeanIntercept().Get(ctx, name); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if p.IsAssocOne() {
			if desc, ok = m.Get(p.TargetType()); !ok {
				return nil, fmt.Errorf("%w: %s", deploy.ErrUnknownBean, p.TargetType())
			}
		}
	}
	return v, nil
}

func parseID(p *deploy.BeanProperty, raw string) interface{} {
	if p.IsDbNumberType() {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	}
	return raw
}

func formatValue(m *deploy.Manager, v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bean.EntityBean:
		ebi := val.EbeanIntercept()
		if d, ok := m.Get(ebi.BeanType()); ok {
			return fmt.Sprintf("%s %v", d.Name(), d.ID(val))
		}
		return ebi.BeanType()
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(val))
	default:
		return fmt.Sprint(val)
	}
}
