package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	serverURL   string
	jsonOutput  bool
	quietOutput bool
	authUser    string
	authPass    string
)

var rootCmd = &cobra.Command{
	Use:   "reelbox",
	Short: "CLI client for the reelbox media server",
	Long: `reelbox - CLI client for the reelbox media server

Browse the video library, trigger rescans, and manage
torrent and URL downloads.

Run 'reelboxd' to start the server daemon.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("REELBOX_SERVER", "http://localhost:8585"), "Server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&quietOutput, "quiet", "q", false, "Suppress informational output")
	rootCmd.PersistentFlags().StringVar(&authUser, "user", os.Getenv("REELBOX_USER"), "Basic auth username")
	rootCmd.PersistentFlags().StringVar(&authPass, "password", os.Getenv("REELBOX_PASSWORD"), "Basic auth password")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("reelbox {{.Version}}\n")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() *Client {
	c := NewClient(serverURL)
	if authUser != "" {
		c.SetBasicAuth(authUser, authPass)
	}
	return c
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
