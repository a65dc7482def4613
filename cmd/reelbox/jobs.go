package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// jobKind describes one job family exposed by the server.
type jobKind struct {
	name   string // command name
	prefix string // API route prefix
	add    string // start route, relative to prefix
	field  string // request field carrying the source
	noun   string
}

var (
	torrentJobs = jobKind{name: "torrents", prefix: "/api/torrents", add: "/magnet", field: "magnet", noun: "magnet URI"}
	urlJobs     = jobKind{name: "youtube", prefix: "/api/youtube", add: "/download", field: "url", noun: "URL"}
)

func init() {
	rootCmd.AddCommand(newJobsCmd(torrentJobs))
	rootCmd.AddCommand(newJobsCmd(urlJobs))
}

func newJobsCmd(k jobKind) *cobra.Command {
	cmd := &cobra.Command{
		Use:   k.name,
		Short: fmt.Sprintf("Show and manage %s downloads", k.name),
		Long: fmt.Sprintf(`Show and manage %[1]s downloads.

Examples:
  reelbox %[1]s                               # List jobs
  reelbox %[1]s add <%[2]s> --source movies    # Start a download
  reelbox %[1]s stop <id>                     # Stop a running job
  reelbox %[1]s retry <id>                    # Re-queue a failed or stopped job
  reelbox %[1]s rm <id>                       # Delete the job record`, k.name, strings.ReplaceAll(k.noun, " ", "-")),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return runJobsList(k, limit)
		},
	}
	cmd.Flags().IntP("limit", "n", 50, "Number of jobs to show")

	add := &cobra.Command{
		Use:   fmt.Sprintf("add <%s>", strings.ReplaceAll(k.noun, " ", "-")),
		Short: "Start a download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			subdir, _ := cmd.Flags().GetString("subdir")
			return runJobsAdd(k, args[0], source, subdir)
		},
	}
	add.Flags().StringP("source", "s", "", "Target library source id")
	add.Flags().String("subdir", "", "Folder under the source root")
	_ = add.MarkFlagRequired("source")

	for _, action := range []string{"stop", "retry"} {
		cmd.AddCommand(&cobra.Command{
			Use:   action + " <id>",
			Short: strings.ToUpper(action[:1]) + action[1:] + " a job",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return runJobsAction(k, args[0], action)
			},
		})
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := newClient().DeleteJob(k.prefix, args[0]); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			if !quietOutput {
				fmt.Printf("Job %s deleted\n", args[0])
			}
			return nil
		},
	})
	cmd.AddCommand(add)
	return cmd
}

func runJobsList(k jobKind, limit int) error {
	list, err := newClient().Jobs(k.prefix, limit)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	if jsonOutput {
		printJSON(list)
		return nil
	}
	if len(list.Items) == 0 {
		fmt.Printf("No %s jobs\n", k.name)
		return nil
	}

	fmt.Printf("  %-12s  %-11s  %6s  %-10s  %-12s  %s\n", "ID", "STATUS", "PROG", "SOURCE", "UPDATED", "TITLE")
	fmt.Println("  " + strings.Repeat("-", 80))
	for _, j := range list.Items {
		title := j.Title
		if title == "" {
			title = truncate(j.Source, 40)
		}
		fmt.Printf("  %-12s  %-11s  %5.1f%%  %-10s  %-12s  %s\n",
			j.ID, j.Status, j.ProgressPercent, truncate(j.SourceID, 10), humanize.Time(j.UpdatedAt), title)
		if j.Error != "" {
			fmt.Printf("  %-12s  error: %s\n", "", truncate(j.Error, 70))
		}
	}
	return nil
}

func runJobsAdd(k jobKind, value, source, subdir string) error {
	job, err := newClient().StartJob(k.prefix+k.add, map[string]string{
		k.field:     value,
		"source_id": source,
		"subdir":    subdir,
	})
	if err != nil {
		return fmt.Errorf("start failed: %w", err)
	}
	if jsonOutput {
		printJSON(job)
		return nil
	}
	if !quietOutput {
		fmt.Printf("Job %s queued into %s\n", job.ID, job.SourceLabel)
	}
	return nil
}

func runJobsAction(k jobKind, id, action string) error {
	job, err := newClient().JobAction(k.prefix, id, action)
	if err != nil {
		return fmt.Errorf("%s failed: %w", action, err)
	}
	if jsonOutput {
		printJSON(job)
		return nil
	}
	if !quietOutput {
		fmt.Printf("Job %s is %s\n", job.ID, job.Status)
	}
	return nil
}
