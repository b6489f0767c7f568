package commands

import (
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "ebean",
		Short: "Entity deployment, migration and persistence tooling",
		Long: color.CyanString(`ebean - entity bean deployment and migration tooling

Reads the entity deployment file, builds the bean descriptors and
generates platform specific DDL migrations from the difference between
the entities and the last migration model.

Features:
  • Migrations for postgres, sqlite, sqlserver, mysql, h2 and db2
  • History tables, draft tables and pending drops
  • Doc store queue draining
  • L2 bean cache administration`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.configDir, "config-dir", ".", "directory containing ebean.yaml")
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "show detailed errors and debug logging")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewMigrateCommand(flags))
	rootCmd.AddCommand(NewDescribeCommand(flags))
	rootCmd.AddCommand(NewFindCommand(flags))
	rootCmd.AddCommand(NewDocStoreCommand(flags))
	rootCmd.AddCommand(NewCacheCommand(flags))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the ebean version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			valueColor := color.New(color.FgWhite)
			out := cmd.OutOrStdout()

			titleColor.Fprint(out, "ebean version: ")
			valueColor.Fprintln(out, Version)

			titleColor.Fprint(out, "Git commit: ")
			valueColor.Fprintln(out, GitCommit)

			titleColor.Fprint(out, "Build date: ")
			valueColor.Fprintln(out, BuildDate)

			titleColor.Fprint(out, "Go version: ")
			valueColor.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
