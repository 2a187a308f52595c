package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/awaistahir/smart-save/internal/advisor"
	"github.com/awaistahir/smart-save/internal/config"
	"github.com/awaistahir/smart-save/internal/engine"
	"github.com/awaistahir/smart-save/internal/ingest"
	"github.com/awaistahir/smart-save/internal/logging"
	"github.com/awaistahir/smart-save/internal/metrics"
	"github.com/awaistahir/smart-save/internal/store"
	"github.com/awaistahir/smart-save/internal/uiapi"
	"github.com/awaistahir/smart-save/internal/weather"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	var cfgFile string
	var port int
	var dbPath string
	var retentionDays int

	rootCmd := &cobra.Command{
		Use:          "smartsaved",
		Short:        "SmartSave daemon: HTTP API, MQTT power ingestion and metrics",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.HTTPPort = port
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}

			logger := logging.New(cfg.LogLevel, cfg.LogPretty, os.Stderr)

			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return fmt.Errorf("creating data directory: %w", err)
			}
			st, err := store.NewStore(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer st.Close()

			settings, err := st.LoadSettings(cfg.Settings())
			if err != nil {
				return err
			}
			adv := advisor.New(settings)

			samples, err := st.RecentSamples(engine.WindowSize)
			if err != nil {
				return err
			}
			watts := make([]float64, 0, len(samples))
			for _, smp := range samples {
				watts = append(watts, smp.Watts)
			}
			spent, err := st.CostSince(engine.CycleStart(time.Now()))
			if err != nil {
				return err
			}
			logger.Info().
				Int("samples", adv.Seed(watts)).
				Float64("spent_this_month", spent).
				Str("tariff", settings.Tariff.Name).
				Stringer("level", settings.Level).
				Float64("budget", settings.MonthlyBudget).
				Msg("advisor ready")

			m := metrics.New()
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.MQTTBroker != "" {
				sub := ingest.NewSubscriber(ingest.Options{
					Broker:   cfg.MQTTBroker,
					Topic:    cfg.MQTTTopic,
					ClientID: cfg.MQTTClientID,
					Username: cfg.MQTTUsername,
					Password: cfg.MQTTPassword,
				}, adv, st, m, logger)
				// Connect blocks until the broker answers; serve HTTP meanwhile
				go func() {
					if err := sub.Connect(); err != nil {
						logger.Error().Err(err).Msg("mqtt ingestion disabled")
					}
				}()
				defer sub.Disconnect()
			} else {
				logger.Info().Msg("mqtt.broker not set, power readings accepted over HTTP only")
			}

			if retentionDays > 0 {
				go pruneLoop(ctx, st, retentionDays, logger)
			}

			srv := uiapi.NewServer(adv, st, logger).
				WithWeather(weather.NewOpenMeteoClient(cfg.Latitude, cfg.Longitude)).
				WithMetrics(m)

			httpSrv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info().Int("port", cfg.HTTPPort).Str("db", cfg.DBPath).Msg("SmartSave server starting")
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err, ok := <-errCh:
				if ok {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		},
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.smartsave/config.yaml)")
	rootCmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP port")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "Database path")
	rootCmd.Flags().IntVar(&retentionDays, "retention", 90, "Days of power readings to keep (0 keeps everything)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// pruneLoop deletes readings older than the retention window once an hour
func pruneLoop(ctx context.Context, st *store.Store, days int, logger zerolog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		n, err := st.PruneSamples(time.Now().AddDate(0, 0, -days))
		if err != nil {
			logger.Error().Err(err).Msg("pruning samples")
		} else if n > 0 {
			logger.Info().Int64("removed", n).Msg("pruned old power samples")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
