// Package cli implements the lexideck command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/conorfennell/lexideck/internal/config"
	"github.com/conorfennell/lexideck/internal/logging"
	"github.com/conorfennell/lexideck/internal/review"
	"github.com/conorfennell/lexideck/internal/storage"
	"github.com/conorfennell/lexideck/internal/sync"
)

// app carries what every command needs once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func (a *app) openDB(ctx context.Context) (*storage.DB, error) {
	db, err := storage.Open(ctx, a.cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func (a *app) service(db *storage.DB) *review.Service {
	return review.NewService(db, nil, a.logger)
}

func (a *app) syncer(db *storage.DB) *sync.Syncer {
	return sync.New(db, a.cfg.Sync.ReposDir, a.logger)
}

// withDB opens the database for the duration of fn.
func (a *app) withDB(ctx context.Context, fn func(db *storage.DB) error) error {
	db, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "lexideck",
		Short:        "Spaced-repetition vocabulary trainer",
		Long:         "lexideck keeps vocabulary decks in plain text files or git repositories and schedules reviews with SM-2.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			a.cfg = cfg
			a.logger = logger
			return nil
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newSyncCmd(a))
	root.AddCommand(newSourceCmd(a))
	root.AddCommand(newScanCmd(a))
	root.AddCommand(newDueCmd(a))
	root.AddCommand(newStatsCmd(a))
	root.AddCommand(newGradeCmd(a))
	root.AddCommand(newPostponeCmd(a))
	root.AddCommand(newHistoryCmd(a))
	return root
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
