package migrate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/ebean/internal/orm/migrate/ddl"
	"github.com/conduit-lang/ebean/internal/orm/migrate/model"
	"github.com/conduit-lang/ebean/internal/orm/migrate/platform"
)

// Generator generates migration DDL from the differences between two models
type Generator struct {
	platform *platform.PlatformDdl
	config   *model.MConfiguration
	logger   *zap.Logger
}

// GeneratorOption configures a Generator
type GeneratorOption func(*Generator)

// WithConfiguration sets the DDL formatting configuration. The generator keeps
// its own copy.
func WithConfiguration(cfg *model.MConfiguration) GeneratorOption {
	return func(g *Generator) {
		if cfg != nil {
			c := *cfg
			g.config = &c
		}
	}
}

// WithGeneratorLogger sets the logger
func WithGeneratorLogger(logger *zap.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = logger
	}
}

// NewGenerator creates a new migration generator for a platform
func NewGenerator(p *platform.PlatformDdl, opts ...GeneratorOption) *Generator {
	g := &Generator{
		platform: p,
		config:   model.NewMConfiguration(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.config.Platform == "" {
		g.config.Platform = p.Name()
	}
	return g
}

// Generate writes the DDL moving the current model to the target model. The
// returned write reads history columns from the target model.
func (g *Generator) Generate(current, target *model.ModelContainer) (*ddl.Write, []SchemaChange, error) {
	changes := NewDiffer(current, target).ComputeDiff()
	w := ddl.NewWrite(g.config, target)

	for _, change := range changes {
		if err := g.apply(w, change); err != nil {
			return nil, nil, err
		}
		g.logger.Debug("schema change",
			zap.String("type", change.Type.String()),
			zap.String("table", change.TableName()),
			zap.String("column", change.ColumnName()))
	}
	return w, changes, nil
}

func (g *Generator) apply(w *ddl.Write, change SchemaChange) error {
	p := g.platform
	switch change.Type {
	case ChangeAddTable:
		p.CreateTable(w, change.Table)
	case ChangeDropTable:
		p.DropTable(w, change.Table)
	case ChangeAddColumn:
		p.AddColumn(w, change.Table, change.NewColumn)
	case ChangeDropColumn:
		p.DropColumn(w, change.Table, change.OldColumn)
	case ChangeAlterColumn:
		if err := p.AlterColumn(w, change.Table, change.OldColumn, change.NewColumn); err != nil {
			return fmt.Errorf("generating %s: %w", change.Type, err)
		}
	case ChangeAddHistory:
		p.AddHistory(w, change.Table)
	case ChangeDropHistory:
		p.DropHistory(w, change.Table)
	default:
		return fmt.Errorf("unknown change type %s", change.Type)
	}
	return nil
}

// GenerateMigration creates a migration for the changes between two models.
// It returns nil when the models do not differ.
func (g *Generator) GenerateMigration(current, target *model.ModelContainer, version, name string) (*Migration, error) {
	w, changes, err := g.Generate(current, target)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, nil
	}

	if name == "" {
		name = GenerateMigrationName(changes)
	}
	migration := NewMigration(version, SanitizeName(name), w)

	for _, change := range changes {
		if change.Breaking {
			migration.Breaking = true
		}
		if change.DataLoss {
			migration.DataLoss = true
		}
	}

	g.logger.Info("generated migration",
		zap.String("version", migration.Version),
		zap.String("name", migration.Name),
		zap.Int("changes", len(changes)),
		zap.Bool("breaking", migration.Breaking))

	return migration, nil
}
