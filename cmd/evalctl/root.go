package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yanqian/interview-evaluator/internal/domain/auth"
)

const app = "evalctl"

type options struct {
	actorID int64
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          app,
		Short:        "evalctl maintains interview evaluations: aggregation, re-embedding, bank generation and tokens",
		SilenceUsage: true,
	}
	root.PersistentFlags().Int64Var(&opts.actorID, "actor", 1, "user id recorded as the admin performing the change")

	root.AddCommand(
		newAggregateCmd(opts),
		newScoreCmd(opts),
		newReembedCmd(opts),
		newBankCmd(opts),
		newTokenCmd(),
	)
	return root
}

func (o *options) admin() auth.Actor {
	return auth.Actor{UserID: o.actorID, Role: auth.RoleAdmin}
}

// withToolkit wires the services for one command and tears them down after.
func withToolkit(cmd *cobra.Command, fn func(ctx context.Context, tk *toolkit) error) error {
	tk, cleanup, err := initializeToolkit()
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}
	defer cleanup()
	defer func() {
		if err := tk.jobs.Close(); err != nil {
			tk.logger.Warn("job queue close failed", "error", err)
		}
	}()
	return fn(cmd.Context(), tk)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
