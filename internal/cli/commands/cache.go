package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/ebean/internal/cli/ui"
)

// NewCacheCommand creates the cache command
func NewCacheCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "L2 bean cache commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached bean from the configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.load(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			c, err := env.cfg.NewCache(cmd.Context())
			if err != nil {
				return err
			}
			if closer, ok := c.(io.Closer); ok {
				defer closer.Close()
			}

			if err := c.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear %s cache: %w", env.cfg.Cache.Backend, err)
			}
			fmt.Fprintln(env.out, ui.Success(fmt.Sprintf("Cleared %s cache", env.cfg.Cache.Backend), env.noColor))
			return nil
		},
	})

	return cmd
}
