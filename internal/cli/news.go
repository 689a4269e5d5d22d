package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewNewsCmd создаёт группу команд для чтения результатов синхронизации.
func NewNewsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "news",
		Short: "Read synced news digests",
	}

	cmd.AddCommand(
		newNewsLatestCmd(clientFn, outputFn),
		newNewsItemsCmd(clientFn, outputFn),
	)

	return cmd
}

func newNewsLatestCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the latest sync job for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.LatestSync(date)
			if err != nil {
				return err
			}

			printJob(out, job)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Date YYYY-MM-DD (default today)")

	return cmd
}

func newNewsItemsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "items DATE",
		Short: "List synced news items for a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			items, err := client.NewsByDate(args[0])
			if err != nil {
				return err
			}

			headers := []string{"TITLE", "CATEGORY", "SOURCE", "IMPORTANCE"}
			rows := make([][]string, len(items))
			for i, item := range items {
				rows[i] = []string{item.Title, item.Category, item.Source, strconv.Itoa(item.Importance)}
			}

			out.Print(headers, rows, items)
			return nil
		},
	}
}
