package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and edit server settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsAddSourceCmd = &cobra.Command{
	Use:   "add-source <id> <path>",
	Short: "Add or replace a library source",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsAddSource,
}

var settingsRemoveSourceCmd = &cobra.Command{
	Use:   "rm-source <id>",
	Short: "Remove a library source",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsRemoveSource,
}

var settingsSeekCmd = &cobra.Command{
	Use:   "seek <seconds>",
	Short: "Set the player seek step",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsSeek,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent events",
	Args:  cobra.NoArgs,
	RunE:  runEventsCmd,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the server is reachable",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := newClient().Health(); err != nil {
			return fmt.Errorf("server unreachable: %w", err)
		}
		fmt.Printf("reelbox at %s is up\n", serverURL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(statusCmd)

	settingsAddSourceCmd.Flags().String("label", "", "Display label (defaults to the id)")
	settingsAddSourceCmd.Flags().Bool("create", false, "Create the folder if missing")
	settingsRemoveSourceCmd.Flags().Bool("delete-files", false, "Also delete the folder from disk")
	settingsCmd.AddCommand(settingsAddSourceCmd)
	settingsCmd.AddCommand(settingsRemoveSourceCmd)
	settingsCmd.AddCommand(settingsSeekCmd)

	eventsCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	eventsCmd.Flags().Duration("since", 24*time.Hour, "Show events from this far back")
}

func printSettings(s *SettingsResponse) {
	if jsonOutput {
		printJSON(s)
		return
	}
	fmt.Println("Sources:")
	for _, src := range s.Sources {
		fmt.Printf("  %-12s %-16s %s\n", src.ID, src.Label, src.Path)
	}
	fmt.Printf("\nDownloads:  %v\n", s.Downloads)
	fmt.Printf("Modules:    torrents=%v youtube=%v pastebin=%v\n", s.Modules.Torrents, s.Modules.Youtube, s.Modules.Pastebin)
	fmt.Printf("Auth:       %v\n", s.AuthEnabled)
	fmt.Printf("Seek step:  %ds\n", s.SeekTime)
}

func runSettingsShow(_ *cobra.Command, _ []string) error {
	s, err := newClient().Settings()
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	printSettings(s)
	return nil
}

func runSettingsAddSource(cmd *cobra.Command, args []string) error {
	label, _ := cmd.Flags().GetString("label")
	create, _ := cmd.Flags().GetBool("create")
	s, err := newClient().AddSource(args[0], label, args[1], create)
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	if !quietOutput {
		printSettings(s)
	}
	return nil
}

func runSettingsRemoveSource(cmd *cobra.Command, args []string) error {
	deleteFiles, _ := cmd.Flags().GetBool("delete-files")
	if err := newClient().RemoveSource(args[0], deleteFiles); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	if !quietOutput {
		fmt.Printf("Source %s removed\n", args[0])
	}
	return nil
}

func runSettingsSeek(_ *cobra.Command, args []string) error {
	seconds, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid seconds: %s", args[0])
	}
	s, err := newClient().SetSeekTime(seconds)
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	if !quietOutput {
		fmt.Printf("Seek step set to %ds\n", s.SeekTime)
	}
	return nil
}

func runEventsCmd(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	since, _ := cmd.Flags().GetDuration("since")

	events, err := newClient().Events(time.Now().Add(-since), limit)
	if err != nil {
		return fmt.Errorf("failed to fetch events: %w", err)
	}
	if jsonOutput {
		printJSON(events)
		return nil
	}
	if len(events.Items) == 0 {
		fmt.Println("No events")
		return nil
	}

	fmt.Printf("  %-20s  %-16s  %s\n", "TIME", "TYPE", "ENTITY")
	fmt.Println("  " + strings.Repeat("-", 60))
	for _, e := range events.Items {
		fmt.Printf("  %-20s  %-16s  %s/%s\n", e.OccurredAt, e.EventType, e.EntityType, e.EntityID)
	}
	return nil
}
