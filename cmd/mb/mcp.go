package main

import (
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/modelbase/internal/logging"
	"github.com/alfredjeanlab/modelbase/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:     "mcp",
	Short:   "Serve modelbase tools to an MCP client over stdio",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol, so logs go to a file or stderr.
		logFile, _ := cmd.Flags().GetString("log-file")
		logCfg := logging.DefaultConfig()
		logCfg.FilePath = logFile
		closeLog, err := logging.Setup(logCfg)
		if err != nil {
			return err
		}
		defer closeLog()

		deps := &mcp.Deps{}
		if local, _ := cmd.Flags().GetBool("local"); !local {
			deps.Client = modelClient
		}
		deps.StrictRequired, _ = cmd.Flags().GetBool("strict")

		return mcp.NewServer(deps, version).Run(cmd.Context())
	},
}

func init() {
	mcpCmd.Flags().Bool("local", false, "serve only the offline tools (no server connection)")
	mcpCmd.Flags().Bool("strict", false, "treat missing required fields as errors for inline definitions")
	mcpCmd.Flags().String("log-file", "", "write logs to this file instead of stderr")
}
