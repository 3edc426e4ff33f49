package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для управления очередью tasks.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect and manage queued tasks",
	}

	cmd.AddCommand(
		newTaskListCmd(clientFn, outputFn),
		newTaskDeleteCmd(clientFn, outputFn),
		newTaskPurgeCmd(clientFn, outputFn),
	)

	return cmd
}

func newTaskListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued tasks in delivery order",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := clientFn().ListTasks()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "METHOD", "URL", "ATTEMPTS", "LAST ERROR", "CREATED"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{
					t.ID,
					t.Name,
					t.Method,
					t.Endpoint + t.Path,
					strconv.Itoa(t.Attempts),
					t.LastError,
					t.CreatedAt,
				}
			}

			outputFn().Print(headers, rows, tasks)
			return nil
		},
	}
}

func newTaskDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a queued task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().DeleteTask(args[0]); err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Task deleted: %s", args[0]))
			return nil
		},
	}
}

func newTaskPurgeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete all queued tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("purge deletes every queued task, pass --yes to confirm")
			}

			if err := clientFn().PurgeTasks(); err != nil {
				return err
			}

			outputFn().Success("All tasks deleted")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion of all tasks")

	return cmd
}
