package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
	otelexport "github.com/MrEthical07/goSession/metrics/export/otel"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
)

var (
	metricsServe    string
	metricsInterval time.Duration
	metricsOTel     bool
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Reconcile once and print the session metrics",
	Long: `Without flags, reconciles the stored session and prints every counter as JSON.
--otel prints the same values as collected through the OpenTelemetry exporter.
--serve keeps running, reconciling every --interval and serving Prometheus
metrics on the given address.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if metricsServe != "" {
			return serveMetrics(cmd)
		}
		return withEnv(cmd, func(ctx context.Context, e *env) error {
			if metricsOTel {
				return printOTel(ctx, cmd, e.manager)
			}
			return printJSON(cmd.OutOrStdout(), namedCounters(e.manager.MetricsSnapshot(), e.manager.EventsDropped()))
		})
	},
}

func init() {
	metricsCmd.Flags().StringVar(&metricsServe, "serve", "", "serve Prometheus metrics on this address, e.g. :9464")
	metricsCmd.Flags().DurationVar(&metricsInterval, "interval", time.Minute, "reconcile interval while serving")
	metricsCmd.Flags().BoolVar(&metricsOTel, "otel", false, "collect through the OpenTelemetry exporter")
	rootCmd.AddCommand(metricsCmd)
}

func namedCounters(snap goSession.MetricsSnapshot, dropped uint64) map[string]uint64 {
	out := make(map[string]uint64, len(internaldefs.CounterDefs)+1)
	for _, def := range internaldefs.CounterDefs {
		if v, ok := snap.Counters[def.ID]; ok {
			out[def.Name] = v
		}
	}
	out[internaldefs.EventsDroppedName] = dropped
	return out
}

func printOTel(ctx context.Context, cmd *cobra.Command, m *goSession.Manager) error {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.WithoutCancel(ctx)) }()

	exp, err := otelexport.NewExporter(provider.Meter("sessionctl"), m)
	if err != nil {
		return err
	}
	defer func() { _ = exp.Close() }()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			switch data := metric.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[metric.Name] = dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[metric.Name] = dp.Value
				}
			}
		}
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func serveMetrics(cmd *cobra.Command) error {
	e, err := openEnv(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promexport.NewExporter(e.manager).Handler())
	srv := &http.Server{
		Addr:              metricsServe,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	e.logger.Info("serving metrics", "addr", metricsServe, "interval", metricsInterval)

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()
	e.manager.Reconcile(ctx)
	for {
		select {
		case <-ticker.C:
			st := e.manager.Reconcile(ctx)
			e.logger.Debug("reconciled", "state", st.Phase.String(), "validated", st.Validated)
		case err, ok := <-errc:
			if ok {
				return err
			}
			return nil
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
}
