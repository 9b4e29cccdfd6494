// AngelaMos | 2026
// migrate.go

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/roadwatch/internal/config"
	"github.com/carterperez-dev/roadwatch/internal/core"
)

type migrateResult struct {
	Applied []string `json:"applied"`
}

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the relational schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}

			db, err := core.NewDatabase(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // process exits right after

			applied, err := core.Migrate(ctx, db.DB)
			if err != nil {
				return err
			}

			return write(cmd.OutOrStdout(), opts, migrateResult{Applied: applied}, func(w io.Writer) {
				for _, name := range applied {
					fmt.Fprintf(w, "applied %s\n", name)
				}
			})
		},
	}
}
