package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yanqian/interview-evaluator/internal/domain/auth"
	"github.com/yanqian/interview-evaluator/internal/infra/config"
	"github.com/yanqian/interview-evaluator/pkg/logger"
)

func newAggregateCmd(_ *options) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate <interview-id>...",
		Short: "Recompute the evaluation status and final score of interviews",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withToolkit(cmd, func(ctx context.Context, tk *toolkit) error {
				for _, raw := range args {
					id, err := parseID(raw)
					if err != nil {
						return err
					}
					out, err := tk.evaluation.AggregateSystem(ctx, id)
					if err != nil {
						return fmt.Errorf("aggregate interview %d: %w", id, err)
					}
					if err := printJSON(cmd.OutOrStdout(), out); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newScoreCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "score <interview-id>",
		Short: "Score every outstanding answer of an interview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withToolkit(cmd, func(ctx context.Context, tk *toolkit) error {
				run, err := tk.evaluation.ScoreInterview(ctx, opts.admin(), id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), run)
			})
		},
	}
}

func newReembedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reembed <question-id>...",
		Short: "Refresh reference embeddings with the configured model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withToolkit(cmd, func(ctx context.Context, tk *toolkit) error {
				for _, raw := range args {
					id, err := parseID(raw)
					if err != nil {
						return err
					}
					q, err := tk.evaluation.ReembedQuestion(ctx, opts.admin(), id)
					if err != nil {
						return fmt.Errorf("reembed question %d: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "question %d embedded with %s\n", q.ID, q.ReferenceEmbedding.Model)
				}
				return nil
			})
		},
	}
}

func newBankCmd(opts *options) *cobra.Command {
	bank := &cobra.Command{
		Use:   "bank",
		Short: "Manage the question bank",
	}
	var (
		technology string
		count      int
	)
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate bank questions for a technology with the configured LLM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withToolkit(cmd, func(ctx context.Context, tk *toolkit) error {
				questions, err := tk.bank.Generate(ctx, opts.admin(), technology, count)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), questions)
			})
		},
	}
	generate.Flags().StringVarP(&technology, "technology", "t", "", "technology tag, e.g. go")
	generate.Flags().IntVarP(&count, "count", "n", 5, "number of questions to generate")
	_ = generate.MarkFlagRequired("technology")
	bank.AddCommand(generate)
	return bank
}

func newTokenCmd() *cobra.Command {
	var (
		userID int64
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			tokens := auth.NewService(auth.Config{Secret: cfg.Auth.Secret, TokenTTL: ttl}, logger.New())
			token, err := tokens.Issue(cmd.Context(), auth.Actor{UserID: userID, Role: auth.Role(role)})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id placed in the subject claim")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleManager), "manager, candidate or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.tokenTtl)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
