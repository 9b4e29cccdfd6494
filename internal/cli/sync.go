// AngelaMos | 2026
// sync.go

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/roadwatch/internal/bootstrap"
	"github.com/carterperez-dev/roadwatch/internal/config"
	"github.com/carterperez-dev/roadwatch/internal/reconcile"
	"github.com/carterperez-dev/roadwatch/internal/signalement"
	"github.com/carterperez-dev/roadwatch/internal/user"
)

// ErrMirrorUnavailable makes the process exit non-zero when a batch could
// not reach the mirror.
var ErrMirrorUnavailable = errors.New("mirror unavailable")

func NewExportCommand(opts *RootOptions) *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Push every relational signalement to the mirror",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), opts, func(ctx context.Context, e *reconcile.Engine) error {
				res, err := e.Export(ctx, reconcile.Options{Resume: resume})
				if err != nil {
					return err
				}

				if err := write(cmd.OutOrStdout(), opts, res, func(w io.Writer) {
					fmt.Fprintf(w, "exported %d of %d (failed %d, skipped %d)\n",
						res.Exported, res.Total, res.Failed, res.Skipped)
				}); err != nil {
					return err
				}

				if !res.Available {
					return ErrMirrorUnavailable
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&resume, "resume", false, "skip records up to the last checkpoint")
	return cmd
}

func NewImportCommand(opts *RootOptions) *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Pull unimported mirror documents into the relational store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), opts, func(ctx context.Context, e *reconcile.Engine) error {
				res, err := e.Import(ctx, reconcile.Options{Resume: resume})
				if err != nil {
					return err
				}

				if err := write(cmd.OutOrStdout(), opts, res, func(w io.Writer) {
					fmt.Fprintf(w, "imported %d of %d (errors %d, skipped %d, stale %d, warnings %d)\n",
						res.Imported, res.TotalUnimported, res.Errors, res.Skipped, res.Stale, res.Warnings)
				}); err != nil {
					return err
				}

				if !res.Available {
					return ErrMirrorUnavailable
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&resume, "resume", false, "skip records up to the last checkpoint")
	return cmd
}

func NewMirrorStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mirror-status",
		Short: "Probe the mirror and show pending checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), opts, func(ctx context.Context, e *reconcile.Engine) error {
				st := e.Status(ctx)
				return write(cmd.OutOrStdout(), opts, st, func(w io.Writer) {
					fmt.Fprintf(w, "available: %t\n", st.Available)
					if st.ExportCheckpoint != "" {
						fmt.Fprintf(w, "export checkpoint: %s\n", st.ExportCheckpoint)
					}
					if st.ImportCheckpoint != "" {
						fmt.Fprintf(w, "import checkpoint: %s\n", st.ImportCheckpoint)
					}
				})
			})
		},
	}
}

// withEngine opens the backing services, runs fn and closes them again.
// SIGINT cancels fn so an interrupted batch keeps its checkpoint.
func withEngine(
	parent context.Context,
	opts *RootOptions,
	fn func(ctx context.Context, e *reconcile.Engine) error,
) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	cliLog := cfg.Log
	if opts.Format == "json" {
		cliLog.Level = "error"
	}
	logger := bootstrap.NewLogger(cliLog)
	slog.SetDefault(logger)

	infra, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close(context.Background())

	engine := infra.Engine(
		signalement.NewRepository(infra.DB.DB),
		user.NewRepository(infra.DB.DB),
	)

	return fn(ctx, engine)
}
