package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/psbuild/internal/routes"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the route table",
	Long: `Load and validate the route table and print it.

Examples:
  psbuild routes            # YAML output
  psbuild routes -o json    # JSON output`,
	Args: cobra.NoArgs,
	RunE: runRoutes,
}

var routesFormat string

func init() {
	rootCmd.AddCommand(routesCmd)

	routesCmd.Flags().StringVarP(&routesFormat, "output", "o", "yaml", "Output format (yaml, json)")
	AddFlagValidation(routesCmd.Flags(), "output", OneOf("yaml", "yml", "json"))
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	root, err := filepath.Abs(rootDir)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}

	table, err := routes.Load(root, cfg.Paths.Routes)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch routesFormat {
	case "yaml", "yml":
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(table); err != nil {
			return err
		}
		return encoder.Close()
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(table)
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", routesFormat)
	}
}
