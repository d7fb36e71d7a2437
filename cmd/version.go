package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var versionFormat string

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the build version",
	Long: `Print the version a build would stamp into the runtime config: the
release from package.json followed by the current commit and, when HEAD is
not on the upstream branch, the merge base. Nothing is written.

Examples:
  psbuild version              # 0.11.2 (1a2b3c4d/5e6f7a8b)
  psbuild version --format json`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
	AddFlagValidation(versionCmd.Flags(), "format", OneOf("text", "json"))
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	p, _, err := newPipeline(cmd)
	if err != nil {
		return err
	}

	v, err := p.Version(cmd.Context())
	if err != nil {
		return err
	}

	switch versionFormat {
	case "text":
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]string{
			"version":  v,
			"upstream": p.Config.Version.Upstream,
		})
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", versionFormat)
	}
}
