package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewQueueCmd создаёт группу команд для работы с очередями.
func NewQueueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and drive job queues",
	}

	cmd.AddCommand(
		newQueueStatsCmd(clientFn, outputFn),
		newQueueProcessOneCmd(clientFn, outputFn),
		newQueueCleanupCmd(clientFn, outputFn),
	)

	return cmd
}

func newQueueStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show pending queue sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.QueueStats()
			if err != nil {
				return err
			}

			out.Print(
				[]string{"QUEUE", "PENDING"},
				[][]string{
					{"sync", strconv.FormatInt(stats.Sync, 10)},
					{"audio", strconv.FormatInt(stats.Audio, 10)},
				},
				stats,
			)
			return nil
		},
	}
}

func newQueueCleanupCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired job records from both queues",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			res, err := client.Cleanup()
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Removed %d sync and %d audio job records",
				res.SyncRemoved, res.AudioRemoved))
			return nil
		},
	}
}

func newQueueProcessOneCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "process-one",
		Short: "Process a single pending job on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			res, err := client.ProcessOne()
			if err != nil {
				return err
			}

			if !res.Processed {
				out.Success("No pending jobs")
				return nil
			}
			if res.Error != "" {
				return fmt.Errorf("job %s failed: %s", res.JobID, res.Error)
			}
			out.Success(fmt.Sprintf("Processed job: %s", res.JobID))
			return nil
		},
	}
}
