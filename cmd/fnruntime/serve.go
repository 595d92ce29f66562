package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/c360/fnruntime/config"
	"github.com/c360/fnruntime/errors"
	"github.com/c360/fnruntime/examples"
	"github.com/c360/fnruntime/health"
	"github.com/c360/fnruntime/invoker"
	"github.com/c360/fnruntime/isolation"
	"github.com/c360/fnruntime/metric"
	"github.com/c360/fnruntime/natsclient"
	"github.com/c360/fnruntime/pkg/retry"
	"github.com/c360/fnruntime/resolver"
	"github.com/c360/fnruntime/trigger"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a function",
		Long: `Resolve the configured target and serve it until interrupted.

Configuration is read from the --config file, then the environment, then
flags set on the command line.

Example:
  fnruntime serve --target examples.Echo --port 8080
  fnruntime serve --config fnruntime.yaml --nats-subject functions.orders
  FUNCTION_TARGET=examples.Sum PORT=3000 fnruntime serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			return app.run(ctx)
		},
	}
	bindServeFlags(cmd, opts)

	return cmd
}

// loadConfig layers the config file, the environment and the flags.
func loadConfig(cmd *cobra.Command, opts *ServeOptions) (*config.Config, error) {
	loader := config.NewLoader()
	if opts.ConfigPath != "" {
		loader.AddLayer(opts.ConfigPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	applyFlags(cmd, opts, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// app is a resolved function with everything needed to serve it
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metric.MetricsRegistry
	health  *health.Monitor
	invoker *invoker.Invoker
}

// newApp loads and resolves the function. Any failure here aborts startup.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	scope := isolation.NewScope(isolation.WithLogger(logger))

	registry, err := loadRegistry(ctx, cfg.Function.Artifact, scope, logger)
	if err != nil {
		return nil, err
	}

	target, err := resolver.ParseTarget(cfg.Function.Target)
	if err != nil {
		return nil, err
	}
	res := resolver.New(registry,
		resolver.WithScope(scope),
		resolver.WithLogger(logger),
		resolver.WithSignatureType(cfg.Function.SignatureType))

	contract, err := res.Resolve(ctx, target)
	if err != nil {
		return nil, err
	}

	metrics := metric.NewMetricsRegistry()
	inv, err := invoker.New(contract,
		invoker.WithTimeout(cfg.Function.Timeout.Std()),
		invoker.WithMaxRequestSize(cfg.Server.MaxRequestSize),
		invoker.WithLogger(logger),
		invoker.WithMetrics(metrics.CoreMetrics()),
		invoker.WithScope(scope))
	if err != nil {
		return nil, err
	}

	monitor := health.NewMonitor()
	monitor.UpdateHealthy("function", contract.Kind.String()+" "+contract.Identity)

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		health:  monitor,
		invoker: inv,
	}, nil
}

// loadRegistry returns the sample functions plus those of the artifact, if any.
func loadRegistry(ctx context.Context, artifact string, scope *isolation.Scope, logger *slog.Logger) (*resolver.Registry, error) {
	registry := resolver.NewRegistry()
	if err := examples.Register(registry); err != nil {
		return nil, err
	}

	if artifact != "" {
		logger.Info("Loading function artifact", "path", artifact)
		if err := isolation.NewLoader(scope, logger).Load(ctx, artifact, registry); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// run serves until ctx is cancelled or a server fails, then shuts down.
func (a *app) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.invoker,
		ReadTimeout:       a.cfg.Server.ReadTimeout.Std(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		a.logger.Info("Serving function",
			"target", a.invoker.Contract().Target.QualifiedName,
			"kind", a.invoker.Contract().Kind.String(),
			"port", a.cfg.Server.Port,
			"timeout", a.invoker.Timeout())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.WrapFatal(err, "app", "run", "serve function")
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Std())
		defer cancel()

		a.logger.Info("Shutting down", "timeout", a.cfg.Server.ShutdownTimeout.Std())
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.WrapTransient(err, "app", "run", "shutdown function server")
		}
		return nil
	})

	if a.cfg.Metrics.Port > 0 {
		server := metric.NewServer(a.cfg.Metrics.Port, a.cfg.Metrics.Path, a.metrics, a.health.Handler(appName))
		g.Go(func() error {
			a.logger.Info("Serving metrics", "port", a.cfg.Metrics.Port, "path", a.cfg.Metrics.Path)
			return server.Start(ctx)
		})
	}

	if a.cfg.NATS.Enabled {
		g.Go(func() error {
			return a.runTrigger(ctx)
		})
	}

	err := g.Wait()
	a.logger.Info("Stopped")
	return err
}

// runTrigger connects to NATS and serves the subject until ctx is done.
// natsOptions translates the nats config section into client options.
// Connection state changes are reported to the health monitor as "nats".
func (a *app) natsOptions() []natsclient.ClientOption {
	n := a.cfg.NATS
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(a.logger),
		natsclient.WithMetrics(a.metrics.CoreMetrics()),
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(n.MaxReconnects),
		natsclient.WithReconnectWait(n.ReconnectWait.Std()),
		natsclient.WithPingInterval(n.PingInterval.Std()),
		natsclient.WithDrainTimeout(n.DrainTimeout.Std()),
		natsclient.WithCircuitBreakerThreshold(int32(n.CircuitThreshold)),
		natsclient.WithMaxBackoff(n.MaxBackoff.Std()),
		natsclient.WithDisconnectCallback(a.natsDisconnected),
		natsclient.WithReconnectCallback(a.natsReconnected),
		natsclient.WithHealthChangeCallback(func(healthy bool) {
			if healthy {
				a.health.UpdateHealthy("nats", "connected")
			} else {
				a.health.UpdateUnhealthy("nats", "disconnected")
			}
		}),
	}
	if n.Username != "" {
		opts = append(opts, natsclient.WithCredentials(n.Username, n.Password))
	}
	if n.Token != "" {
		opts = append(opts, natsclient.WithToken(n.Token))
	}
	if n.TLSEnabled() {
		opts = append(opts, natsclient.WithTLS(n.TLSCert, n.TLSKey, n.TLSCA))
	}
	return opts
}

func (a *app) natsDisconnected(err error) {
	msg := "disconnected"
	if err != nil {
		msg += ": " + err.Error()
	}
	a.health.UpdateUnhealthy("nats", msg)
}

func (a *app) natsReconnected() {
	a.health.UpdateHealthy("nats", "reconnected")
}

func (a *app) runTrigger(ctx context.Context) error {
	a.health.UpdateUnhealthy("nats", "connecting")

	client, err := natsclient.NewClient(a.cfg.NATS.URL, a.natsOptions()...)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			a.logger.Warn("NATS close failed", "error", err)
		}
	}()

	if err := client.ConnectWithRetry(ctx, retry.Persistent()); err != nil {
		return errors.Wrap(err, "app", "runTrigger", "connect to NATS")
	}

	bridge, err := trigger.NewBridge(a.invoker, client, trigger.Config{
		Subject:   a.cfg.NATS.Subject,
		Queue:     a.cfg.NATS.Queue,
		Workers:   a.cfg.NATS.Workers,
		QueueSize: a.cfg.NATS.QueueSize,
		RateLimit: a.cfg.NATS.RateLimit,
		RateBurst: a.cfg.NATS.RateBurst,
	},
		trigger.WithLogger(a.logger),
		trigger.WithMetrics(a.metrics.CoreMetrics()),
		trigger.WithMetricsRegistry(a.metrics))
	if err != nil {
		return err
	}

	// Workers outlive the request context so queued messages drain on shutdown.
	if err := bridge.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	<-ctx.Done()
	return bridge.Stop(a.cfg.Server.ShutdownTimeout.Std())
}
