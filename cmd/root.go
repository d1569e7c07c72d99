// ABOUTME: Root command for the courier CLI
// ABOUTME: Handles global flags, configuration loading and shared exit-code helpers

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/syntlex/courier/api"
	"github.com/syntlex/courier/config"
	"github.com/syntlex/courier/gateway"
	"github.com/syntlex/courier/logger"
)

var (
	apiURL     string
	jsonOutput bool
	configPath string
)

// Version is stamped at build time
var Version = "dev"

// interactive reports whether prompts and the TUI can be shown
var interactive = func() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:     "courier",
	Short:   "CLI for the courier API",
	Version: Version,
	Long: `courier signs a courier in with a one-time code and keeps the session alive.

Access tokens are refreshed automatically before they expire and after a 401.

Exit codes:
  0 - Success
  1 - Usage or configuration error
  2 - Backend or authentication failure

Environment Variables:
  COURIER_API_URL             API root (default: https://api996.syntlex.kg/api)
  COURIER_SESSION_BACKEND     memory, file or redis (default: file)
  COURIER_SESSION_FILE        Session file path (default: ~/.config/courier/session.json)
  COURIER_REDIS_URL           Redis URL for the redis backend
  COURIER_KEEPALIVE_INTERVAL  Background refresh interval (default: 115m)
  COURIER_ALL_PROXY           ssh+socks5://user@host:port?private-key=/path
  COURIER_METRICS_ADDR        Prometheus listen address for keepalive
  OTEL_EXPORTER_OTLP_ENDPOINT OTLP/HTTP trace collector
  LOG_LEVEL, LOG_FORMAT       Logging (debug|info|warn|error, text|json)`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API root URL (overrides COURIER_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides COURIER_CONFIG)")
}

// loadConfig merges config sources with the flags and configures logging
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.APIURL = strings.TrimSuffix(apiURL, "/")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	return cfg, nil
}

// IsJSONOutput returns whether JSON output is requested
func IsJSONOutput() bool {
	return jsonOutput
}

// fail reports a backend or auth error and returns exit code 2
func fail(w io.Writer, err error) int {
	fmt.Fprintf(w, "Error: %v\n", err)
	if errors.Is(err, api.ErrUnauthorized) || errors.Is(err, gateway.ErrRefreshFailed) {
		fmt.Fprintln(w, "Run 'courier login' to sign in again.")
	}
	return 2
}
