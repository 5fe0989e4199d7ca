package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/cleanhome/internal/catalog"
	"github.com/dukerupert/cleanhome/internal/database"
	"github.com/dukerupert/cleanhome/internal/gamification"
	"github.com/dukerupert/cleanhome/internal/ledger"
	"github.com/dukerupert/cleanhome/internal/logging"
	"github.com/dukerupert/cleanhome/internal/model"
	"github.com/dukerupert/cleanhome/internal/scheduler"
	"github.com/dukerupert/cleanhome/internal/store"
)

type env struct {
	scheduler *scheduler.Scheduler
	ledger    *ledger.Ledger
	close     func() error
}

// openEnv builds a read-side scheduler and ledger over the configured database.
func openEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(cfg.LogLevel)

	anchors, err := cfg.Anchors()
	if err != nil {
		return nil, err
	}
	system, err := catalog.LoadSystemFile(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	repo := catalog.NewRepository(system, store.NewTaskStore(db))
	l := ledger.New(repo, store.NewCompletionStore(db), logger.With("component", "ledger"))
	if err := l.Load(); err != nil {
		db.Close()
		return nil, err
	}
	return &env{
		scheduler: scheduler.New(repo, anchors, logger.With("component", "scheduler")),
		ledger:    l,
		close:     db.Close,
	}, nil
}

func monthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "month YYYY-MM",
		Short: "List every occurrence of a month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := time.Parse("2006-01", args[0])
			if err != nil {
				return fmt.Errorf("month must be YYYY-MM: %w", err)
			}
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			m, err := e.scheduler.Month(t.Year(), t.Month())
			if err != nil {
				return err
			}
			template, _ := cmd.Flags().GetString("template")
			occs := scheduler.FilterZones(m.Occurrences, template)
			printOccurrences(cmd.OutOrStdout(), scheduler.Annotate(occs, e.ledger, time.Now()))
			for _, s := range m.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped task %d %q: %s\n", s.TaskID, s.Name, s.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringP("template", "t", "", "zone template (all, studio, apartment, house, minimal)")
	return cmd
}

func dueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "due [YYYY-MM-DD]",
		Short: "List the tasks due on a date (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := model.Day(time.Now())
			if len(args) == 1 {
				d, err := model.ParseDay(args[0])
				if err != nil {
					return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
				}
				date = d
			}
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			occs, err := e.scheduler.DueOn(date)
			if err != nil {
				return err
			}
			template, _ := cmd.Flags().GetString("template")
			occs = scheduler.FilterZones(occs, template)
			if len(occs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing due.")
				return nil
			}
			printOccurrences(cmd.OutOrStdout(), scheduler.Annotate(occs, e.ledger, time.Now()))
			return nil
		},
	}
	cmd.Flags().StringP("template", "t", "", "zone template (all, studio, apartment, house, minimal)")
	return cmd
}

func printOccurrences(w io.Writer, occs []scheduler.OccurrenceWithStatus) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTASK\tZONE\tFREQUENCY\tMIN\tSTATUS")
	for _, o := range occs {
		minutes := "-"
		if o.EstimatedMinutes != nil {
			minutes = fmt.Sprint(*o.EstimatedMinutes)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.Date.Format(model.DateLayout), o.TaskName, o.Zone, o.Frequency, minutes, o.Status)
	}
	tw.Flush()
}

func levelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "Show the level ladder and current progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			stats := e.ledger.Stats(time.Now())
			current := gamification.LevelFor(stats.TotalPoints)

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tLEVEL\tNAME\tPOINTS")
			for _, lv := range gamification.Levels {
				marker := ""
				if lv.Number == current.Number {
					marker = "→"
				}
				fmt.Fprintf(tw, "%s\t%d\t%s %s\t%d\n", marker, lv.Number, lv.Icon, lv.Name, lv.MinPoints)
			}
			tw.Flush()

			fmt.Fprintf(out, "\n%d points, %d tasks, %d-day streak\n", stats.TotalPoints, stats.TotalTasks, stats.CurrentStreak)
			if next, ok := gamification.NextLevel(stats.TotalPoints); ok {
				pct := gamification.ProgressToNextLevel(stats.TotalPoints) * 100
				fmt.Fprintf(out, "%s %.0f%% of the way to %s\n", progressBar(pct), pct, next.Name)
			}
			return nil
		},
	}
}

func progressBar(pct float64) string {
	filled := int(pct / 10)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", 10-filled) + "]"
}
