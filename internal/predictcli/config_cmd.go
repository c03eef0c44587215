package predictcli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
	}
	cmd.AddCommand(
		c.newSetContextCmd(),
		c.newUseContextCmd(),
		c.newCurrentContextCmd(),
		c.newViewCmd(),
	)
	return cmd
}

func (c *cli) newSetContextCmd() *cobra.Command {
	var makeCurrent bool
	cmd := &cobra.Command{
		Use:   "set-context <name>",
		Short: "Create or update a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.overrideURL == "" {
				return fmt.Errorf("--server is required")
			}
			cfg, err := LoadConfig(c.cfgFile)
			if err != nil {
				return err
			}
			cfg.setContext(Context{Name: args[0], Server: c.overrideURL}, makeCurrent)
			if err := SaveConfig(cfg, c.cfgFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Context %q updated.\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&makeCurrent, "current", true, "Set as current context")
	return cmd
}

func (c *cli) newUseContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use-context <name>",
		Short: "Switch the current context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(c.cfgFile)
			if err != nil {
				return err
			}
			if _, ok := cfg.Contexts[args[0]]; !ok {
				return fmt.Errorf("context %q not found", args[0])
			}
			cfg.CurrentContext = args[0]
			if err := SaveConfig(cfg, c.cfgFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q.\n", args[0])
			return nil
		},
	}
}

func (c *cli) newCurrentContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "current-context",
		Short: "Print the current context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(c.cfgFile)
			if err != nil {
				return err
			}
			if cfg.CurrentContext == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No context configured.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.CurrentContext)
			return nil
		},
	}
}

func (c *cli) newViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := c.jsonOutput()
			if err != nil {
				return err
			}
			cfg, err := LoadConfig(c.cfgFile)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file: %s\n", c.cfgFile)
			for _, name := range cfg.contextNames() {
				current := " "
				if cfg.CurrentContext == name {
					current = "*"
				}
				fmt.Fprintf(out, "%s %s (%s)\n", current, name, cfg.Contexts[name].Server)
			}
			return nil
		},
	}
}
