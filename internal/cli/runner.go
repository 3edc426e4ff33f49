package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewRunnerCmd создаёт группу команд для управления runner.
func NewRunnerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runner",
		Short: "Control the task runner",
	}

	cmd.AddCommand(
		newRunnerStatusCmd(clientFn, outputFn),
		newRunnerStartCmd(clientFn, outputFn),
		newRunnerStopCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunnerStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show runner state",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := clientFn().RunnerStatus()
			if err != nil {
				return err
			}

			printStatus(outputFn(), status)
			return nil
		},
	}
}

func newRunnerStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start processing queued tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := clientFn().StartRunner()
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success("Runner started")
			printStatus(out, status)
			return nil
		},
	}
}

func newRunnerStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the runner after the in-flight task completes",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := clientFn().StopRunner()
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success("Runner stopped")
			printStatus(out, status)
			return nil
		},
	}
}

func printStatus(out *Output, s *RunnerResponse) {
	taskID := s.TaskID
	if taskID == "" {
		taskID = "-"
	}

	out.Fields(
		[]string{"STATE", "TASK", "POLL INTERVAL", "MAX ATTEMPTS"},
		[]string{s.State, taskID, s.PollInterval, strconv.Itoa(s.MaxAttempts)},
		s,
	)
}
