package cli

import (
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conorfennell/lexideck/internal/parser"
	"github.com/conorfennell/lexideck/internal/storage"
	"github.com/conorfennell/lexideck/internal/sync"
)

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Synchronise all sources with the card store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd.Context(), func(db *storage.DB) error {
				reports, err := a.syncer(db).Run(cmd.Context())
				if err != nil {
					return err
				}
				printReports(cmd.OutOrStdout(), reports)
				return nil
			})
		},
	}
}

func printReports(w io.Writer, reports []sync.Report) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No sources configured.")
		return
	}
	for _, r := range reports {
		fmt.Fprintf(w, "%s: %d parsed, %d new, %d removed\n", r.Path, r.Parsed, r.Inserted, r.Orphaned)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
}

func newSourceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage card sources",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <path-or-git-url>",
		Short: "Register a directory or git repository as a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd.Context(), func(db *storage.DB) error {
				src, err := sync.AddSource(cmd.Context(), db, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s source %d: %s\n", src.Type, src.ID, src.Path)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd.Context(), func(db *storage.DB) error {
				sources, err := db.GetAllSources(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTYPE\tLAST SCANNED\tPATH")
				for _, s := range sources {
					scanned := "never"
					if s.LastScanned.Valid {
						scanned = s.LastScanned.Time.Local().Format("2006-01-02 15:04")
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.ID, s.Type, scanned, s.Path)
				}
				return tw.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a source and all of its cards",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source ID %q", args[0])
			}
			return a.withDB(cmd.Context(), func(db *storage.DB) error {
				if err := db.DeleteSource(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed source %d\n", id)
				return nil
			})
		},
	})
	return cmd
}

// newScanCmd parses a directory without touching the database.
func newScanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <dir>",
		Short: "Parse deck files in a directory and report problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cards int
				errs  []error
			)
			err := filepath.WalkDir(args[0], func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() && d.Name() == ".git" {
					return filepath.SkipDir
				}
				if d.IsDir() || !parser.IsDeckFile(d.Name()) {
					return nil
				}
				fileCards, parseErr := parser.ParseFile(path)
				if parseErr != nil {
					errs = append(errs, fmt.Errorf("%s: %w", path, parseErr))
				}
				cards += len(fileCards)
				return nil
			})
			if err != nil {
				return fmt.Errorf("walk %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Found %d cards, %d errors.\n", cards, len(errs))
			if len(errs) > 0 {
				fmt.Fprintln(out, "\nErrors:")
				for _, e := range errs {
					fmt.Fprintf(out, "- %s\n", e)
				}
			}
			return nil
		},
	}
}
