package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var videosCmd = &cobra.Command{
	Use:     "videos",
	Aliases: []string{"ls"},
	Short:   "List library videos",
	Long: `List library videos.

Examples:
  reelbox videos                       # List all videos
  reelbox videos --source movies       # Only videos in one source
  reelbox videos show 3f2a9c0d1b7e4a56 # Show one video
  reelbox videos mv 3f2a... shows "Season 1/Pilot.mkv"
  reelbox videos rm 3f2a...            # Delete the file and catalog row`,
	Args: cobra.NoArgs,
	RunE: runVideosCmd,
}

var videosShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one video",
	Args:  cobra.ExactArgs(1),
	RunE:  runVideosShow,
}

var videosRemoveCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a video file",
	Args:  cobra.ExactArgs(1),
	RunE:  runVideosRemove,
}

var videosMoveCmd = &cobra.Command{
	Use:   "mv <id> <source-id> <rel-path>",
	Short: "Move or rename a video",
	Args:  cobra.ExactArgs(3),
	RunE:  runVideosMove,
}

var videosProgressCmd = &cobra.Command{
	Use:   "progress <id> <seconds>",
	Short: "Set the saved playback position",
	Args:  cobra.ExactArgs(2),
	RunE:  runVideosProgress,
}

var rescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Reconcile the catalog with disk now",
	Args:  cobra.NoArgs,
	RunE:  runRescan,
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List library sources",
	Args:  cobra.NoArgs,
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(videosCmd)
	rootCmd.AddCommand(rescanCmd)
	rootCmd.AddCommand(sourcesCmd)
	videosCmd.Flags().StringP("source", "s", "", "Filter by source id")
	videosCmd.AddCommand(videosShowCmd)
	videosCmd.AddCommand(videosRemoveCmd)
	videosCmd.AddCommand(videosMoveCmd)
	videosCmd.AddCommand(videosProgressCmd)
}

func runVideosCmd(cmd *cobra.Command, _ []string) error {
	source, _ := cmd.Flags().GetString("source")

	videos, err := newClient().Videos()
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	items := videos.Items
	if source != "" {
		filtered := make([]VideoResponse, 0, len(items))
		for _, v := range items {
			if v.SourceID == source {
				filtered = append(filtered, v)
			}
		}
		items = filtered
	}

	if jsonOutput {
		printJSON(items)
		return nil
	}
	if len(items) == 0 {
		fmt.Println("No videos")
		return nil
	}

	fmt.Printf("  %-16s  %-10s  %8s  %8s  %s\n", "ID", "SOURCE", "SIZE", "WATCHED", "PATH")
	fmt.Println("  " + strings.Repeat("-", 72))
	for _, v := range items {
		fmt.Printf("  %-16s  %-10s  %8s  %8s  %s\n",
			v.ID, truncate(v.SourceID, 10), humanize.Bytes(uint64(v.Size)), formatPosition(v.PositionSeconds), v.RelPath)
	}
	fmt.Printf("\n%d videos\n", len(items))
	return nil
}

func runVideosShow(_ *cobra.Command, args []string) error {
	v, err := newClient().Video(args[0])
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	if jsonOutput {
		printJSON(v)
		return nil
	}
	fmt.Printf("ID:        %s\n", v.ID)
	fmt.Printf("Title:     %s\n", v.Title)
	fmt.Printf("Source:    %s (%s)\n", v.SourceLabel, v.SourceID)
	fmt.Printf("Path:      %s\n", v.RelPath)
	fmt.Printf("Size:      %s\n", humanize.Bytes(uint64(v.Size)))
	fmt.Printf("Modified:  %s\n", humanize.Time(v.ModifiedAt))
	return nil
}

func runVideosRemove(_ *cobra.Command, args []string) error {
	if err := newClient().DeleteVideo(args[0]); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	if !quietOutput {
		fmt.Printf("Video %s deleted\n", args[0])
	}
	return nil
}

func runVideosMove(_ *cobra.Command, args []string) error {
	v, err := newClient().MoveVideo(args[0], args[1], args[2])
	if err != nil {
		return fmt.Errorf("move failed: %w", err)
	}
	if jsonOutput {
		printJSON(v)
		return nil
	}
	if !quietOutput {
		fmt.Printf("Moved to %s:%s (id %s)\n", v.SourceID, v.RelPath, v.ID)
	}
	return nil
}

func runVideosProgress(_ *cobra.Command, args []string) error {
	seconds, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid seconds: %s", args[1])
	}
	if err := newClient().SetProgress(args[0], seconds); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	return nil
}

func runRescan(_ *cobra.Command, _ []string) error {
	res, err := newClient().Rescan()
	if err != nil {
		return fmt.Errorf("rescan failed: %w", err)
	}
	if jsonOutput {
		printJSON(res)
		return nil
	}
	fmt.Printf("Scanned %d videos (%d added, %d removed) in %s\n",
		res.Seen, res.Added, res.Removed, time.Duration(res.DurationMS)*time.Millisecond)
	return nil
}

func runSources(_ *cobra.Command, _ []string) error {
	sources, err := newClient().Sources()
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	if jsonOutput {
		printJSON(sources)
		return nil
	}
	for _, s := range sources {
		fmt.Printf("  %-12s %s\n", s.ID, s.Label)
	}
	return nil
}

// formatPosition renders a playback position as h:mm:ss, or "-" when unset.
func formatPosition(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
