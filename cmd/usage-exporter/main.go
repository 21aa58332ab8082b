package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/videosdk-community/usage-exporter/internal/api"
	"github.com/videosdk-community/usage-exporter/pkg/export"
	"github.com/videosdk-community/usage-exporter/pkg/jobs"
	"github.com/videosdk-community/usage-exporter/pkg/logging"
	"github.com/videosdk-community/usage-exporter/pkg/timerange"
	"github.com/videosdk-community/usage-exporter/pkg/videosdk"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "usage-exporter",
		Usage: "Fetch VideoSDK session usage and export monthly CSV reports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "path to an env file loaded before reading configuration",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP API with background fetch/export jobs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "port",
						Usage: "HTTP listen port",
						Value: 8080,
					},
					&cli.StringFlag{
						Name:  "tmp-dir",
						Usage: "directory for generated export files (default: system temp dir)",
					},
				},
				Action: serveAction,
			},
			{
				Name:  "export",
				Usage: "Fetch one month and write the usage CSV to a local file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-key",
						Usage:   "VideoSDK API key",
						Sources: cli.EnvVars("VIDEOSDK_API_KEY"),
					},
					&cli.IntFlag{
						Name:     "year",
						Usage:    "calendar year",
						Required: true,
					},
					&cli.IntFlag{
						Name:     "month",
						Usage:    "calendar month (1-12)",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "participant-columns",
						Usage: "participant column groups (0 = auto-detect)",
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "output path (default: usage_<year>_<month>.csv)",
					},
				},
				Action: exportAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

// setup loads the optional env file and configures logging plus the
// upstream client shared by both commands.
func setup(envFile string) (*videosdk.Client, error) {
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	logging.Setup(logging.FromEnv())

	cfg := videosdk.DefaultConfig()
	if base := os.Getenv("VIDEOSDK_API_BASE"); base != "" {
		cfg.BaseURL = base
	}

	return videosdk.New(cfg)
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	client, err := setup(cmd.String("env"))
	if err != nil {
		return err
	}

	registry := jobs.NewRegistry()
	runner := jobs.NewRunner(registry, client, cmd.String("tmp-dir"))
	server := api.NewServer(runner, client, cmd.String("tmp-dir"))

	addr := fmt.Sprintf(":%d", cmd.Int("port"))
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting usage exporter server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func exportAction(ctx context.Context, cmd *cli.Command) error {
	client, err := setup(cmd.String("env"))
	if err != nil {
		return err
	}

	apiKey := cmd.String("api-key")
	if apiKey == "" {
		return fmt.Errorf("api key is required (--api-key or VIDEOSDK_API_KEY)")
	}

	year, month := cmd.Int("year"), cmd.Int("month")
	tr, err := timerange.MonthRange(year, month)
	if err != nil {
		return err
	}

	sessions, err := client.FetchAll(ctx, apiKey, tr, func(current, total int) {
		log.Info().Int("page", current).Int("total_pages", total).Msg("Fetching")
	})
	if err != nil {
		return err
	}

	out := cmd.String("out")
	if out == "" {
		out = export.Filename(year, month)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	cols := cmd.Int("participant-columns")
	if cols < 0 {
		cols = 0
	}

	if err := export.Write(f, sessions, export.Columns(sessions, cols), nil); err != nil {
		return err
	}

	log.Info().Str("path", out).Int("sessions", len(sessions)).Msg("Export written")
	return nil
}
