package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rshade/costlens/internal/config"
	"github.com/rshade/costlens/internal/engine"
)

// NewConfigInitCmd creates the config init command for initializing configuration.
func NewConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Initialize configuration file with default values",
		Annotations: map[string]string{annotationSkipConfigLoad: "true"},
		Long: `Creates ~/.costlens/config.yaml (or $COSTLENS_HOME/config.yaml, or the --config
path) holding the built-in defaults.`,
		Example: `  # Create the default configuration
  costlens config init

  # Overwrite an existing configuration
  costlens config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}

			if !force {
				_, err := os.Stat(path)
				if err == nil {
					return errors.New("configuration file already exists, use --force to overwrite")
				}
				if !os.IsNotExist(err) {
					return fmt.Errorf("cannot access config path %s: %w", path, err)
				}
			}

			if err := config.Default().Save(path); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}
			cmd.Printf("Configuration initialized at %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	return cmd
}

// NewConfigShowCmd prints the effective configuration: defaults, file,
// environment and flag overrides combined.
func NewConfigShowCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			shown := *config.GetGlobalConfig()
			if shown.Identity.Token != "" {
				shown.Identity.Token = "********"
			}
			cfg := &shown
			w := cmd.OutOrStdout()
			switch output {
			case "yaml", "":
				if p := cfg.Path(); p != "" {
					fmt.Fprintf(w, "# %s\n", p)
				}
				enc := yaml.NewEncoder(w)
				enc.SetIndent(2) //nolint:mnd // YAML indent.
				if err := enc.Encode(cfg); err != nil {
					return err
				}
				return enc.Close()
			case outputJSON:
				return engine.RenderJSON(w, cfg)
			default:
				return fmt.Errorf("unsupported output format: %s", output)
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml or json")
	return cmd
}
