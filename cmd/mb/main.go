package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/modelbase/internal/client"
	"github.com/alfredjeanlab/modelbase/internal/ui"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	serverAddr   string
	httpURL      string
	transport    string
	token        string
	outputFormat string
	jsonOutput   bool
	noColor      bool
	actor        string

	modelClient client.ModelClient
	httpClient  *client.HTTPClient
)

func defaultActor() string {
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		name := strings.TrimSpace(string(out))
		if name != "" {
			return name
		}
	}
	return "unknown"
}

func defaultHTTPURL() string {
	if s := os.Getenv("MODELBASE_HTTP_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultServer() string {
	if s := os.Getenv("MODELBASE_SERVER"); s != "" {
		return s
	}
	if u := activeRemoteGRPCAddr(); u != "" {
		return u
	}
	return "localhost:9090"
}

func defaultToken() string {
	if s := os.Getenv("MODELBASE_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

// connect builds the clients for the selected transport. Commands that only
// exist on the HTTP surface use httpClient regardless of --transport.
func connect() error {
	httpClient = client.NewHTTPClient(httpURL, token).WithActor(actor)
	switch transport {
	case "http":
		modelClient = httpClient
	case "grpc":
		c, err := client.NewGRPCClient(serverAddr, token)
		if err != nil {
			return fmt.Errorf("failed to connect to server: %w", err)
		}
		modelClient = c.WithActor(actor)
	default:
		return fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
	}
	return nil
}

// noConnect is the PersistentPreRunE of commands that work without a server.
func noConnect(*cobra.Command, []string) error { return nil }

var rootCmd = &cobra.Command{
	Use:           "mb <command>",
	Short:         "Infer model schemas from sample JSON and validate documents against them",
	SilenceUsage:  true,
	Version:       version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return connect()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if modelClient != nil {
			modelClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().StringVar(&token, "token", defaultToken(), "bearer token for authentication")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json or yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON (same as --output json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "actor name recorded with events")

	rootCmd.AddGroup(
		&cobra.Group{ID: "models", Title: "Models:"},
		&cobra.Group{ID: "documents", Title: "Documents:"},
		&cobra.Group{ID: "local", Title: "Local:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Models
	rootCmd.AddCommand(modelCmd)

	// Documents
	rootCmd.AddCommand(docCmd)

	// Local
	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(checkCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(mcpCmd)
}

func main() {
	if !ui.ShouldUseColor() {
		ui.ForceNoColor()
	}
	cobra.OnInitialize(func() {
		if noColor {
			ui.ForceNoColor()
		}
	})
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
