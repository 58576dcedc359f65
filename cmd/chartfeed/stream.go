package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nupi-ai/chartfeed/internal/config"
	"github.com/nupi-ai/chartfeed/internal/constants"
	"github.com/nupi-ai/chartfeed/internal/eventbus"
	"github.com/nupi-ai/chartfeed/internal/observability"
	"github.com/nupi-ai/chartfeed/internal/stream"
	"github.com/nupi-ai/chartfeed/internal/transport"
	"github.com/spf13/cobra"
)

type streamSummary struct {
	Endpoint  string `json:"endpoint"`
	Mode      string `json:"mode"`
	ChunkSize int    `json:"chunk_size"`
	Points    int    `json:"points"`
	Events    uint64 `json:"events"`
}

func newStreamCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream points from the data source until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runStream,
	}
	flags := cmd.Flags()
	flags.String("config", "", "Path to a YAML config file (default ~/.chartfeed/config.yaml)")
	flags.String("endpoint", constants.DefaultEndpoint, "Data source base URL (http, https, ws or wss)")
	flags.String("mode", "", "Streaming mode (see 'chartfeed modes')")
	flags.Int("chunk-size", 0, "Chunk size offered by the mode (0 selects the first)")
	flags.Duration("interval", constants.StreamRequestInterval, "Time between periodic requests")
	flags.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9100")
	flags.Bool("insecure", false, "Skip TLS certificate verification for wss endpoints")
	flags.String("log-file", "", "Also write logs to this file (\"default\" uses ~/.chartfeed/logs)")
	return cmd
}

// resolveStreamConfig layers explicitly set flags over the file and
// environment configuration.
func resolveStreamConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if flags.Changed("endpoint") {
		cfg.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("mode") {
		cfg.Mode, _ = flags.GetString("mode")
	}
	if flags.Changed("chunk-size") {
		cfg.ChunkSize, _ = flags.GetInt("chunk-size")
	}
	if flags.Changed("interval") {
		cfg.Interval, _ = flags.GetDuration("interval")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runStream(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)

	logFile, _ := cmd.Flags().GetString("log-file")
	closer, err := setupLogging(logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logging: %v\n", err)
	} else {
		defer closer.Close()
	}

	cfg, err := resolveStreamConfig(cmd)
	if err != nil {
		return out.Error("Invalid configuration", err)
	}
	duration, _ := cmd.Flags().GetDuration("duration")
	if duration < 0 {
		return out.Error("Invalid configuration", fmt.Errorf("negative duration %s", duration))
	}

	bus := eventbus.New()
	defer bus.Shutdown()
	metrics := observability.NewStreamMetrics()

	opts := []stream.Option{stream.WithEventBus(bus), stream.WithMetrics(metrics)}
	if insecure, _ := cmd.Flags().GetBool("insecure"); insecure {
		opts = append(opts, stream.WithDialer(transport.NewWebsocketDialer(&tls.Config{InsecureSkipVerify: true})))
	}
	ctrl, err := stream.New(cfg.StreamConfig(), opts...)
	if err != nil {
		return out.Error("Failed to create stream controller", err)
	}
	defer func() {
		if err := ctrl.Dispose(); err != nil {
			log.Printf("[Stream] dispose: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	if cfg.MetricsAddr != "" {
		shutdown, err := serveMetrics(cfg.MetricsAddr, metrics)
		if err != nil {
			return out.Error("Failed to start metrics server", err)
		}
		defer shutdown()
	}

	lifecycle := eventbus.SubscribeTo(bus, eventbus.Stream.Lifecycle, eventbus.WithSubscriptionName("cli-lifecycle"))
	defer lifecycle.Close()
	updates := eventbus.SubscribeTo(bus, eventbus.Stream.Series, eventbus.WithSubscriptionName("cli-series"))
	defer updates.Close()

	go eventbus.Consume(ctx, lifecycle, func(ev eventbus.StreamSessionEvent) {
		if ev.Err != nil {
			log.Printf("[Stream] session %s %s: %v", ev.SessionID, ev.State, ev.Err)
			return
		}
		log.Printf("[Stream] session %s %s (%s, chunk %d)", ev.SessionID, ev.State, ev.Mode, ev.ChunkSize)
	})
	go eventbus.Consume(ctx, updates, func(ev eventbus.StreamSeriesEvent) {
		log.Printf("[Stream] +%d points (total %d, hash %s)", ev.Appended, ev.Length, ev.Hash)
	})

	if err := ctrl.Start(ctx); err != nil {
		return out.Error("Failed to start stream", err)
	}
	log.Printf("[Stream] streaming from %s", ctrl.Endpoint())

	<-ctx.Done()

	info := ctrl.Session()
	summary := streamSummary{
		Endpoint:  ctrl.Endpoint(),
		Mode:      string(info.Mode),
		ChunkSize: info.ChunkSize,
		Points:    ctrl.Series().Len(),
		Events:    bus.Published(),
	}
	if out.jsonMode {
		return out.Print(summary)
	}
	return out.Print(fmt.Sprintf("Streamed %d points from %s (%s, chunk %d, %d events)",
		summary.Points, summary.Endpoint, summary.Mode, summary.ChunkSize, summary.Events))
}

// serveMetrics exposes metrics on addr until the returned function is called.
func serveMetrics(addr string, metrics *observability.StreamMetrics) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: constants.Duration5Seconds}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[Metrics] server error: %v", err)
		}
	}()
	log.Printf("[Metrics] serving on http://%s/metrics", ln.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.Duration2Seconds)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
