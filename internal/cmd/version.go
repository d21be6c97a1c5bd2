package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/sschnei8/predictionMarketExploro/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

var versionJSON bool

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print as JSON")
}

// VersionCommand returns the version command.
func VersionCommand() *cobra.Command {
	return versionCmd
}

func runVersion(cmd *cobra.Command, args []string) error {
	w := stdout(cmd)
	info := version.Get()
	if versionJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	return renderPairs(w, [][2]string{
		{"Version", info.Version},
		{"Commit", info.Commit},
		{"Built", info.BuildTime},
		{"Go", info.GoVersion},
	})
}
