package main

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set through -ldflags "-X main.version=..."
var (
	version   = "develop"
	gitCommit = ""
	buildDate = ""
)

type buildInfo struct {
	Version   string `json:"version,omitempty"`
	GitCommit string `json:"gitCommit,omitempty"`
	BuildDate string `json:"buildDate,omitempty"`
	GoVersion string `json:"goVersion,omitempty"`
}

var versionLong bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := buildInfo{
			Version:   version,
			GitCommit: gitCommit,
			BuildDate: buildDate,
			GoVersion: runtime.Version(),
		}
		if !versionLong {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), info.Version)
			return err
		}
		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return err
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionLong, "long", false, "print detailed version information as JSON")
	rootCmd.AddCommand(versionCmd)
}
