package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	// database/sql drivers of the supported platforms
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/conduit-lang/ebean/internal/cli/config"
	"github.com/conduit-lang/ebean/internal/logging"
	"github.com/conduit-lang/ebean/internal/orm/deploy"
)

// globalFlags are the persistent flags of the root command
type globalFlags struct {
	configDir string
	noColor   bool
	verbose   bool
}

// environment is what a command needs once the configuration is loaded
type environment struct {
	cfg     *config.Config
	logger  *zap.Logger
	out     io.Writer
	errOut  io.Writer
	noColor bool
	verbose bool
}

func (g *globalFlags) load(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.Load(g.configDir)
	if err != nil {
		return nil, err
	}

	lc := cfg.LoggerConfig()
	if g.verbose {
		lc.Level = "debug"
	}
	logger, err := logging.New(lc)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &environment{
		cfg:     cfg,
		logger:  logger,
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
		noColor: g.noColor,
		verbose: g.verbose,
	}, nil
}

func (e *environment) close() {
	_ = e.logger.Sync()
}

// connect opens and pings the configured database
func (e *environment) connect(ctx context.Context) (*sql.DB, error) {
	if e.cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is not set\n\nSet it in ebean.yaml or export EBEAN_DATABASE_URL")
	}
	driver, err := e.cfg.DriverName()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, e.cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	e.logger.Debug("connected to database", zap.String("driver", driver))
	return db, nil
}

// deployment loads the entity deployment file and builds the descriptors
func (e *environment) deployment() (*deploy.Manager, error) {
	m := deploy.NewManager(e.cfg.DeployConfig(), deploy.WithLogger(e.logger))
	if err := deploy.LoadDeployment(m, e.cfg.Migration.Entities); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", e.cfg.Migration.Entities, err)
	}
	if err := m.Build(); err != nil {
		return nil, err
	}
	return m, nil
}
