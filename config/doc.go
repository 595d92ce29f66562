// Package config loads the runtime configuration.
//
// Configuration is built in layers, later layers overriding earlier ones:
//
//  1. Defaults (see Default)
//  2. File layers, JSON or YAML by extension, deep-merged so a layer only
//     overrides the keys it sets
//  3. Environment variables
//  4. Validation, when enabled
//
// # Basic Usage
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.yaml")
//	loader.AddLayer("config/production.json") // Overrides base
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		return err
//	}
//
// A YAML layer:
//
//	function:
//	  target: examples.Echo
//	  timeout: 30s
//	server:
//	  port: 8080
//	nats:
//	  enabled: true
//	  subject: functions.echo
//
// Durations accept Go duration strings or a number of seconds.
//
// # Environment Variables
//
//	FUNCTION_TARGET           function.target
//	FUNCTION_SIGNATURE_TYPE   function.signature_type
//	FUNCTION_ARTIFACT         function.artifact
//	FUNCTION_TIMEOUT_SEC      function.timeout, in whole seconds
//	PORT                      server.port
//	FNRUNTIME_LOG_LEVEL       log.level
//	FNRUNTIME_LOG_FORMAT      log.format
//	FNRUNTIME_METRICS_PORT    metrics.port
//	FNRUNTIME_NATS_URL        nats.url
//	FNRUNTIME_NATS_SUBJECT    nats.subject, also enables nats
//
// # Security
//
// Config files must be regular .json, .yaml or .yml files under 10MB, and
// relative paths may not escape the working directory. JSON layers are
// checked for nesting depth before decoding. Environment values are length
// checked and may not contain null bytes.
package config
