package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/zulandar/presale/internal/sweeper"
)

func newSweepCmd() *cobra.Command {
	var (
		configPath string
		next       bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Resolve presale plans past their voting deadline",
		Long: `Runs one timeout sweep now. Plans whose deadline has passed are approved
if they reached quorum and rejected otherwise. Safe to run repeatedly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, configPath, next)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "presale.yaml", "path to presale config file")
	cmd.Flags().BoolVar(&next, "next", false, "print the next scheduled run instead of sweeping")
	return cmd
}

func runSweep(cmd *cobra.Command, configPath string, next bool) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if next {
		at, err := sweeper.NextRun(cfg.Sweep.Schedule, nowFunc())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Next sweep at %s (%s)\n", at.Format("2006-01-02 15:04 MST"), cfg.Sweep.Schedule)
		return nil
	}

	_, sw, err := buildService(cfg, gormDB)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := sw.RunOnce(ctx)
	if err != nil {
		return err
	}
	if res.Skipped {
		fmt.Fprintln(out, "Another instance holds the sweep lease; nothing done.")
		return nil
	}
	fmt.Fprintf(out, "Resolved %d plan(s)\n", res.ResolvedCount)
	for _, id := range res.Resolved {
		fmt.Fprintf(out, "  %s\n", id)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(out, "  error %s: %s\n", e.SubjectID, e.Error)
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("%d plan(s) could not be resolved", len(res.Errors))
	}
	return nil
}
