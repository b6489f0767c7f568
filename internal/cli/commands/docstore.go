package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/ebean/internal/cli/ui"
	"github.com/conduit-lang/ebean/internal/orm/docstore"
)

// NewDocStoreCommand creates the docstore command
func NewDocStoreCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docstore",
		Short: "Doc store queue commands",
		Long: `Inspect and drain the doc store queues that beans mapped with
persist mode "queue" write their index and delete events to.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status <queue>...",
		Short: "Show the number of queued entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.load(cmd)
			if err != nil {
				return err
			}
			defer env.close()
			return runDocStoreStatus(cmd.Context(), env, args)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "drain <queue>",
		Short: "Drain a queue, writing each entry as a JSON line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.load(cmd)
			if err != nil {
				return err
			}
			defer env.close()
			return runDocStoreDrain(cmd.Context(), env, args[0])
		},
	})

	return cmd
}

func (e *environment) queue(ctx context.Context) (*docstore.RedisQueue, func(), error) {
	client := redis.NewClient(e.cfg.QueueOptions())
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to doc store queue at %s: %w", e.cfg.QueueAddr(), err)
	}
	return docstore.NewRedisQueue(client), func() { client.Close() }, nil
}

func runDocStoreStatus(ctx context.Context, env *environment, queues []string) error {
	q, closeQueue, err := env.queue(ctx)
	if err != nil {
		return err
	}
	defer closeQueue()

	table := ui.NewTable(env.out, env.noColor, "QUEUE", "ENTRIES")
	for _, id := range queues {
		n, err := q.Len(ctx, id)
		if err != nil {
			return err
		}
		table.AddRow(id, fmt.Sprintf("%d", n))
	}
	table.Render()
	return nil
}

func runDocStoreDrain(ctx context.Context, env *environment, queueID string) error {
	q, closeQueue, err := env.queue(ctx)
	if err != nil {
		return err
	}
	defer closeQueue()

	enc := json.NewEncoder(env.out)
	n, err := q.Drain(ctx, queueID, docstore.UpdaterFunc(func(ctx context.Context, e docstore.Entry) error {
		return enc.Encode(e)
	}))
	env.logger.Info("drained doc store queue", zap.String("queue", queueID), zap.Int("entries", n))
	if err != nil {
		return err
	}
	fmt.Fprintln(env.errOut, ui.Success(fmt.Sprintf("Drained %d entries from %s", n, queueID), env.noColor))
	return nil
}
