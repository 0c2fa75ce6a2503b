// Command genpd-agent is the process entrypoint: it loads the domain/device
// topology, builds a Registry, and drives it through a poll-interval
// reconcile loop, exposing Prometheus metrics and a liveness probe.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/barepower/genpd/pkg/config"
	"github.com/barepower/genpd/pkg/engine"
	"github.com/barepower/genpd/pkg/k8sevents"
	"github.com/barepower/genpd/pkg/kubeclient"
	"github.com/barepower/genpd/pkg/metrics"
	"github.com/barepower/genpd/pkg/tracing"
)

func main() {
	var (
		configPath   string
		metricsAddr  string
		ignoreUnused bool
	)
	pflag.StringVar(&configPath, "config", "./config.yaml", "Path to config file")
	pflag.StringVar(&metricsAddr, "metrics-addr", ":9090", "Address to serve /metrics and /healthz on")
	pflag.BoolVar(&ignoreUnused, "ignore-unused", false, "Skip the startup power-off sweep of domains with no bound devices")
	pflag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := tracing.Init("genpd-agent"); err != nil {
		slog.Error("failed to init tracing", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			slog.Warn("tracing shutdown failed", "err", err)
		}
	}()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	if cfg.LogLevel == "debug" {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	clientset, err := kubeclient.Get()
	if err != nil {
		slog.Error("failed to init k8s client", "err", err)
		os.Exit(1)
	}

	recorder := k8sevents.NewRecorder(clientset, "genpd-agent")

	ctx := context.Background()
	topo, err := engine.BuildRegistry(ctx, cfg, engine.Deps{
		Client:   clientset,
		Observer: recorder,
	})
	if err != nil {
		slog.Error("failed to build domain topology", "err", err)
		os.Exit(1)
	}
	defer topo.Registry.Shutdown()

	for name, d := range topo.Domains {
		status := 0.0
		if !d.IsOff() {
			status = 1.0
		}
		metrics.DomainStatus.WithLabelValues(name).Set(status)
	}

	topo.Registry.PoweroffUnused(ignoreUnused)

	go serveHTTP(metricsAddr)

	r := engine.NewReconciler(cfg, topo)
	slog.Info("genpd-agent started", "domains", len(topo.Domains), "devices", len(topo.Devices), "pollInterval", cfg.PollInterval)
	for {
		if err := r.Reconcile(ctx); err != nil {
			slog.Error("reconcile error", "err", err)
		}
		time.Sleep(cfg.PollInterval)
	}
}

func serveHTTP(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("http server exited", "err", err)
	}
}
