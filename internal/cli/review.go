package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/lexideck/internal/domain"
	"github.com/conorfennell/lexideck/internal/sm2"
	"github.com/conorfennell/lexideck/internal/storage"
)

const dateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(dateLayout)
}

func newDueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "due",
		Short: "List cards due for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd.Context(), func(db *storage.DB) error {
				cards, err := a.service(db).Due(cmd.Context(), a.cfg.Review.DueLimit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(cards) == 0 {
					fmt.Fprintln(out, "Nothing is due.")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "HASH\tWORD\tTRANSLATION\tDUE")
				for _, c := range cards {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Hash, c.Word, c.Translation, formatDate(c.NextReview))
				}
				return tw.Flush()
			})
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show deck statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd.Context(), func(db *storage.DB) error {
				s, err := a.service(db).Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Total: %d\nDue: %d\nNew: %d\nLearned: %d\n", s.Total, s.Due, s.New, s.Learned)
				return nil
			})
		},
	}
}

func printSchedule(w io.Writer, c domain.MemoryCard) {
	fmt.Fprintf(w, "%s -> %s\n", c.Word, c.Translation)
	fmt.Fprintf(w, "  repetitions: %d\n  interval:    %d days\n  ease factor: %.2f\n  next review: %s\n",
		c.Repetitions, c.Interval, c.EaseFactor, formatDate(c.NextReview))
}

func newGradeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "grade <hash> <quality>",
		Short: "Grade a card (0-5 or blackout, wrong, hard-wrong, hard, good, perfect)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := sm2.ParseQuality(args[1])
			if err != nil {
				return err
			}
			return a.withDB(cmd.Context(), func(db *storage.DB) error {
				card, err := a.service(db).Grade(cmd.Context(), args[0], q)
				if err != nil {
					return err
				}
				printSchedule(cmd.OutOrStdout(), card)
				return nil
			})
		},
	}
}

func newPostponeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "postpone <hash> <days>",
		Short: "Push a card's next review back",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid number of days %q", args[1])
			}
			return a.withDB(cmd.Context(), func(db *storage.DB) error {
				card, err := a.service(db).Postpone(cmd.Context(), args[0], days)
				if err != nil {
					return err
				}
				printSchedule(cmd.OutOrStdout(), card)
				return nil
			})
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <hash>",
		Short: "Show a card's review history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd.Context(), func(db *storage.DB) error {
				logs, err := a.service(db).History(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "REVIEWED\tGRADE\tREPS\tINTERVAL\tEASE\tNEXT")
				for _, l := range logs {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.2f\t%s\n",
						l.ReviewedAt.Local().Format("2006-01-02 15:04"),
						sm2.Quality(l.Quality), l.Repetitions, l.Interval, l.EaseFactor, formatDate(l.NextReview))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of reviews to show, 0 for all")
	return cmd
}
