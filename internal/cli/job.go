package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// watchPollInterval — период опроса статуса в watch-режиме.
const watchPollInterval = 2 * time.Second

// NewJobCmd создаёт группу команд для управления jobs.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage background jobs",
	}

	cmd.AddCommand(
		newJobSyncCmd(clientFn, outputFn),
		newJobAudioCmd(clientFn, outputFn),
		newJobShowCmd(clientFn, outputFn),
		newJobWatchCmd(clientFn, outputFn),
		newJobCancelCmd(clientFn, outputFn),
	)

	return cmd
}

func newJobSyncCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var force bool
	var count int
	var watch bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Enqueue a daily news sync job",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.EnqueueSync(EnqueueSyncRequest{
				ForceRefresh: force,
				ItemCount:    count,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Sync job enqueued: %s", job.ID))
			if watch {
				return watchJob(client, out, job.ID)
			}
			printJob(out, job)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Ignore the completed-today marker and re-sync")
	cmd.Flags().IntVar(&count, "count", 0, "Number of news items in the digest (default server-side)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Poll job status until it finishes")

	return cmd
}

func newJobAudioCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var date string
	var script string
	var scriptFile string
	var bestEffort bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "audio",
		Short: "Enqueue an audio synthesis job for a broadcast script",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			text := script
			if scriptFile != "" {
				data, err := os.ReadFile(scriptFile)
				if err != nil {
					return fmt.Errorf("read script file: %w", err)
				}
				text = string(data)
			}
			if text == "" {
				return fmt.Errorf("either --script or --script-file is required")
			}

			job, err := client.EnqueueAudio(EnqueueAudioRequest{
				Date:       date,
				Script:     text,
				BestEffort: bestEffort,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Audio job enqueued: %s", job.ID))
			if watch {
				return watchJob(client, out, job.ID)
			}
			printJob(out, job)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Broadcast date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&script, "script", "", "Broadcast script text")
	cmd.Flags().StringVar(&scriptFile, "script-file", "", "Read the broadcast script from a file")
	cmd.Flags().BoolVar(&bestEffort, "best-effort", false, "Skip failed chunks instead of failing the job")
	cmd.Flags().BoolVar(&watch, "watch", false, "Poll job status until it finishes")

	return cmd
}

func newJobShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show job status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetJob(args[0])
			if err != nil {
				return err
			}

			printJob(out, job)
			return nil
		},
	}
}

func newJobWatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "watch ID",
		Short: "Poll job status until it reaches a terminal state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchJob(clientFn(), outputFn(), args[0])
		},
	}
}

func newJobCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.CancelJob(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job cancelled: %s", args[0]))
			return nil
		},
	}
}

// watchJob опрашивает статус job до терминального состояния,
// печатая каждую смену стадии или процента.
func watchJob(client *Client, out *Output, jobID string) error {
	var lastStage string
	var lastPercent = -1

	for {
		job, err := client.GetJob(jobID)
		if err != nil {
			return err
		}

		if job.Progress.Stage != lastStage || job.Progress.Percent != lastPercent {
			out.Info(fmt.Sprintf("[%3d%%] %-12s %s",
				job.Progress.Percent, job.Progress.Stage, job.Progress.Message))
			lastStage = job.Progress.Stage
			lastPercent = job.Progress.Percent
		}

		if job.Terminal() {
			printJob(out, job)
			if job.Status == "FAILED" {
				return fmt.Errorf("job failed: %s", resultError(job))
			}
			return nil
		}

		time.Sleep(watchPollInterval)
	}
}

func printJob(out *Output, job *JobResponse) {
	errMsg := resultError(job)
	out.Print(
		[]string{"ID", "KIND", "STATUS", "STAGE", "PERCENT", "ERROR"},
		[][]string{{job.ID, job.Kind, job.Status, job.Progress.Stage,
			strconv.Itoa(job.Progress.Percent), errMsg}},
		job,
	)
}

func resultError(job *JobResponse) string {
	if job.Result == nil {
		return ""
	}
	return job.Result.Error
}
