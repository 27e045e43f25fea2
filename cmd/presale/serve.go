package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/presale/internal/api"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		noSweep    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled timeout sweeper",
		Long: `Serves the approval workflow API. Unless --no-sweep is given, the
timeout sweeper also runs on the configured cron schedule; instances share a
database lease so only one sweeps at a time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, noSweep)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "presale.yaml", "path to presale config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides api.port)")
	cmd.Flags().BoolVar(&noSweep, "no-sweep", false, "do not run the scheduled sweeper in this process")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, noSweep bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	svc, sw, err := buildService(cfg, gormDB)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = cfg.API.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if !noSweep {
		go func() {
			if err := sw.Start(ctx, cfg.Sweep.Schedule); err != nil {
				log.Printf("presale: sweeper: %v", err)
			}
		}()
		fmt.Fprintf(cmd.OutOrStdout(), "Timeout sweeper scheduled %q\n", cfg.Sweep.Schedule)
	}

	return api.Start(ctx, api.StartOpts{
		Service: svc,
		Sweeper: sw,
		Port:    port,
		Out:     cmd.OutOrStdout(),
	})
}
