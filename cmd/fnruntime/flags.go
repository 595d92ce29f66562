package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360/fnruntime/config"
)

// ServeOptions holds the serve command flags. A flag only overrides the loaded
// configuration when it is set on the command line.
type ServeOptions struct {
	*RootOptions

	Target        string
	Port          int
	SignatureType string
	Artifact      string
	Timeout       time.Duration
	MetricsPort   int
	NATSURL       string
	NATSSubject   string
}

func bindServeFlags(cmd *cobra.Command, opts *ServeOptions) {
	f := cmd.Flags()
	f.StringVar(&opts.Target, "target", "", "function target (env: "+config.EnvTarget+")")
	f.IntVar(&opts.Port, "port", 8080, "function HTTP port (env: "+config.EnvPort+")")
	f.StringVar(&opts.SignatureType, "signature-type", "",
		"restrict the contract: http, event, cloudevent or typed (env: "+config.EnvSignatureType+")")
	f.StringVar(&opts.Artifact, "artifact", "", "function plugin to load (env: "+config.EnvArtifact+")")
	f.DurationVar(&opts.Timeout, "timeout", 5*time.Minute,
		"execution deadline, 0 to disable (env: "+config.EnvTimeoutSec+", in seconds)")
	f.IntVar(&opts.MetricsPort, "metrics-port", 9090,
		"metrics and health port, 0 to disable (env: "+config.EnvMetricsPort+")")
	f.StringVar(&opts.NATSURL, "nats-url", "", "NATS server URL (env: "+config.EnvNATSURL+")")
	f.StringVar(&opts.NATSSubject, "nats-subject", "",
		"consume events from this subject (env: "+config.EnvNATSSubject+")")
}

// applyFlags overrides cfg with the flags set on cmd.
func applyFlags(cmd *cobra.Command, opts *ServeOptions, cfg *config.Config) {
	changed := func(name string) bool {
		return cmd.Flags().Changed(name) || cmd.Root().PersistentFlags().Changed(name)
	}

	if changed("target") {
		cfg.Function.Target = opts.Target
	}
	if changed("port") {
		cfg.Server.Port = opts.Port
	}
	if changed("signature-type") {
		cfg.Function.SignatureType = opts.SignatureType
	}
	if changed("artifact") {
		cfg.Function.Artifact = opts.Artifact
	}
	if changed("timeout") {
		cfg.Function.Timeout = config.Duration(opts.Timeout)
	}
	if changed("metrics-port") {
		cfg.Metrics.Port = opts.MetricsPort
	}
	if changed("nats-url") {
		cfg.NATS.URL = opts.NATSURL
	}
	if changed("nats-subject") {
		cfg.NATS.Subject = opts.NATSSubject
		cfg.NATS.Enabled = opts.NATSSubject != ""
	}
	if changed("log-level") {
		cfg.Log.Level = opts.LogLevel
	}
	if changed("log-format") {
		cfg.Log.Format = opts.LogFormat
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
