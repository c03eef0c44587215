// Package predictcli implements the predictctl command line client.
package predictcli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// cli carries flag values and loaded configuration for one invocation.
type cli struct {
	cfgFile      string
	contextName  string
	overrideURL  string
	outputFormat string
	timeout      time.Duration

	config *Config
}

// Execute runs the CLI. An interrupt cancels in-flight requests and streams.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the predictctl command tree.
func NewRootCommand() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "predictctl",
		Short: "Query the AI model service",
		Long: `predictctl talks to the model service HTTP API.
Most commands require a configured context (see 'predictctl config set-context')
or an explicit --server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Config commands load and save the file themselves.
			if strings.HasPrefix(cmd.CommandPath(), "predictctl config") {
				return nil
			}
			cfg, err := LoadConfig(c.cfgFile)
			if err != nil {
				return err
			}
			c.config = cfg
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", defaultConfigPath(), "Path to the predictctl config file")
	flags.StringVar(&c.contextName, "context", "", "Context name to use (overrides current)")
	flags.StringVar(&c.overrideURL, "server", "", "Override API server URL")
	flags.StringVarP(&c.outputFormat, "output", "o", "table", "Output format: table|json")
	flags.DurationVar(&c.timeout, "timeout", 15*time.Second, "HTTP request timeout")

	root.AddCommand(
		c.newPredictCmd(),
		c.newHealthCmd(),
		c.newMetricsCmd(),
		c.newPredictionsCmd(),
		c.newEventsCmd(),
		c.newConfigCmd(),
	)
	return root
}

// server resolves the API URL from --server or the selected context.
func (c *cli) server() (string, error) {
	if c.overrideURL != "" {
		return c.overrideURL, nil
	}
	if c.config == nil {
		return "", fmt.Errorf("configuration not loaded")
	}
	name := c.contextName
	if name == "" {
		name = c.config.CurrentContext
	}
	if name == "" {
		return "", fmt.Errorf("no context configured; use 'predictctl config set-context' or --server")
	}
	ctx, ok := c.config.Contexts[name]
	if !ok {
		return "", fmt.Errorf("context %q not found; use 'predictctl config set-context'", name)
	}
	if ctx.Server == "" {
		return "", fmt.Errorf("context %q is missing a server URL", name)
	}
	return ctx.Server, nil
}

func (c *cli) client() (*Client, error) {
	server, err := c.server()
	if err != nil {
		return nil, err
	}
	return &Client{BaseURL: server, Timeout: c.timeout}, nil
}

// jsonOutput reports whether the caller asked for JSON, rejecting unknown formats.
func (c *cli) jsonOutput() (bool, error) {
	switch strings.ToLower(c.outputFormat) {
	case "json":
		return true, nil
	case "table", "":
		return false, nil
	default:
		return false, fmt.Errorf("unsupported output format %q", c.outputFormat)
	}
}
