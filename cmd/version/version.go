// Package versioncmder prints the build information stamped into the
// chatrelay binary at release time.
package versioncmder

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/utils"
)

// BuildInfo is the build metadata reported by "chatrelay version".
type BuildInfo struct {
	Version   string `json:"version"`
	Sha       string `json:"sha"`
	Buildtime string `json:"built_at"`
}

type versionCommander struct {
	json bool
}

func NewVersionCmd() *cobra.Command {
	cmder := &versionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print chatrelay build information",
		Long:  "Print the version, commit, and build time of this chatrelay binary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout(), currentBuild())
		},
	}

	cmd.Flags().BoolVar(&cmder.json, "json", false, "Print build information as JSON")

	return cmd
}

func currentBuild() BuildInfo {
	return BuildInfo{Version: utils.Version, Sha: utils.Sha, Buildtime: utils.Buildtime}
}

func (c *versionCommander) run(w io.Writer, info BuildInfo) error {
	if c.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	_, err := fmt.Fprintf(w, "chatrelay %s\ncommit: %s\nbuilt at: %s\n", info.Version, info.Sha, info.Buildtime)
	return err
}
