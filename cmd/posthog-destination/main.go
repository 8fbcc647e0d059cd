// posthog-destination forwards Segment events to PostHog.
//
// Usage:
//
//	posthog-destination serve               Run the HTTP destination service
//	posthog-destination send <file>         Forward a YAML/JSON file of events once
//	posthog-destination sink                Run a local PostHog capture sink
//	posthog-destination version             Print the version
//
// Flags (any position):
//
//	--config <path>   Config file (default $POSTHOG_DESTINATION_CONFIG)
//	--port <n>        Listen port for serve and sink
//	--verbose         Log every request
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/wondertwin-ai/posthog-destination/internal/api"
	"github.com/wondertwin-ai/posthog-destination/internal/config"
	"github.com/wondertwin-ai/posthog-destination/internal/logging"
	"github.com/wondertwin-ai/posthog-destination/internal/posthog"
	"github.com/wondertwin-ai/posthog-destination/internal/server"
	"github.com/wondertwin-ai/posthog-destination/internal/sink"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// defaultSinkPort is where the local capture sink listens.
const defaultSinkPort = 12114

// options are the flags shared by all subcommands.
type options struct {
	configPath string
	port       int
	verbose    bool
}

func main() {
	cmd, args, opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "posthog-destination: %v\n\n", err)
		printUsage()
		os.Exit(1)
	}

	if cmd == "" || cmd == "help" || cmd == "--help" || cmd == "-h" {
		printUsage()
		if cmd == "" {
			os.Exit(1)
		}
		return
	}

	switch cmd {
	case "version", "--version", "-v":
		fmt.Printf("posthog-destination version %s\n", version)
		return
	case "serve":
		err = cmdServe(opts)
	case "send":
		err = cmdSend(opts, args)
	case "sink":
		err = cmdSink(opts)
	default:
		fmt.Fprintf(os.Stderr, "posthog-destination: unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "posthog-destination: %v\n", err)
		os.Exit(1)
	}
}

// parseArgs extracts the subcommand, positional args and flags.
func parseArgs(raw []string) (command string, args []string, opts options, err error) {
	var filtered []string
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case "--config", "-config":
			if i+1 >= len(raw) {
				return "", nil, opts, fmt.Errorf("%s requires a value", raw[i])
			}
			opts.configPath = raw[i+1]
			i++
		case "--port", "-port":
			if i+1 >= len(raw) {
				return "", nil, opts, fmt.Errorf("%s requires a value", raw[i])
			}
			opts.port, err = strconv.Atoi(raw[i+1])
			if err != nil {
				return "", nil, opts, fmt.Errorf("invalid port %q", raw[i+1])
			}
			i++
		case "--verbose", "-verbose":
			opts.verbose = true
		default:
			filtered = append(filtered, raw[i])
		}
	}

	if len(filtered) == 0 {
		return "", nil, opts, nil
	}
	return filtered[0], filtered[1:], opts, nil
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: posthog-destination <command> [flags]

Commands:
  serve           Run the HTTP destination service
  send <file>     Forward a YAML/JSON file of Segment events once
  sink            Run a local PostHog capture sink
  version         Print the version

Flags:
  --config <path> Config file (default $POSTHOG_DESTINATION_CONFIG)
  --port <n>      Listen port for serve and sink
  --verbose       Log every request
`)
}

// loadConfig loads and validates configuration, applies flag overrides and
// initializes logging.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}
	if opts.verbose {
		cfg.Server.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.Init(logging.Config{Level: logLevel(cfg), Format: cfg.Logging.Format})
	return cfg, nil
}

// logLevel returns the configured level, lowered to debug when request
// logging is on so verbose output is not filtered out.
func logLevel(cfg *config.Config) string {
	if cfg.Server.Verbose && logging.ParseLevel(cfg.Logging.Level) > zerolog.DebugLevel {
		return "debug"
	}
	return cfg.Logging.Level
}

// newDestination builds the Destination described by cfg.
func newDestination(cfg *config.Config) *posthog.Destination {
	opts := []posthog.Option{
		posthog.WithHTTPClient(&http.Client{Timeout: cfg.PostHog.Timeout}),
		posthog.WithLogger(logging.NewSlogLogger()),
	}
	if cfg.PostHog.BrowserDetection {
		opts = append(opts, posthog.WithSniffer(posthog.DefaultSniffer{}))
	}
	return posthog.New(opts...)
}

func cmdServe(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := logging.NewSlogLogger()

	srv := server.New(&server.Config{
		Name:         "posthog-destination",
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Verbose:      cfg.Server.Verbose,
	}, logger)

	handler := api.NewHandler(newDestination(cfg), cfg.Settings(), cfg.PostHog.AllowKeyOverride, logger)
	handler.Routes(srv.Router)

	logger.Info("posthog-destination ready",
		"port", cfg.Server.Port,
		"instance", cfg.Settings().BaseURL(),
		"browser_detection", cfg.PostHog.BrowserDetection,
	)
	return srv.Serve(context.Background())
}

func cmdSink(opts options) error {
	port := opts.port
	if port == 0 {
		port = defaultSinkPort
	}
	level := "info"
	if opts.verbose {
		level = "debug"
	}
	logging.Init(logging.Config{Level: level, Format: "console"})
	logger := logging.NewSlogLogger()

	srv := server.New(&server.Config{
		Name:    "posthog-sink",
		Port:    port,
		Verbose: opts.verbose,
	}, logger)
	sink.NewHandler(sink.NewStore(), srv.Middleware()).Routes(srv.Router)

	logger.Info("posthog sink ready", "port", port)
	return srv.Serve(context.Background())
}
