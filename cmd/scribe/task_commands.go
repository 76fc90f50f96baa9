package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/api"
	"scribe/internal/ipc"
)

func newTaskCommand(ctx *commandContext) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect a single task",
	}
	taskCmd.AddCommand(newTaskShowCommand(ctx))
	taskCmd.AddCommand(newTaskResultsCommand(ctx))
	return taskCmd
}

func newTaskShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show task status and per-file progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TaskShow(taskID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Task)
				}
				renderTask(cmd.OutOrStdout(), resp.Task)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderTask(out io.Writer, task api.Task) {
	fmt.Fprintf(out, "Task:      %s\n", task.TaskID)
	if task.UserID != "" {
		fmt.Fprintf(out, "User:      %s\n", task.UserID)
	}
	fmt.Fprintf(out, "Status:    %s (%d%%)\n", titleCase(task.Status), task.Progress)
	fmt.Fprintf(out, "Created:   %s\n", formatDisplayTime(task.CreatedAt))
	if task.CompletedAt != "" {
		fmt.Fprintf(out, "Completed: %s\n", formatDisplayTime(task.CompletedAt))
	}
	s := task.Summary
	fmt.Fprintf(out, "Files:     %d total, %d pending, %d processing, %d completed, %d failed\n",
		s.Total, s.Pending, s.Processing, s.Completed, s.Failed)
	if len(task.Files) == 0 {
		return
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "File", "Status", "Progress", "Detail"},
		buildTaskFileRows(task.Files),
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func newTaskResultsCommand(ctx *commandContext) *cobra.Command {
	var completedOnly bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "results <task-id>",
		Short: "Print transcripts for a finished task",
		Long: "Print transcripts for a task. Without --completed the command fails " +
			"until every file has finished and lists the files still outstanding.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TaskResults(taskID, completedOnly)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if completedOnly {
					if resp.Completed == nil {
						return errors.New("daemon returned no results")
					}
					if asJSON {
						return writeJSON(cmd, resp.Completed)
					}
					renderCompletedResults(out, *resp.Completed)
					return nil
				}
				if !resp.Complete {
					return incompleteError(taskID, resp.Outstanding)
				}
				if resp.Results == nil {
					return errors.New("daemon returned no results")
				}
				if asJSON {
					return writeJSON(cmd, resp.Results)
				}
				renderTaskResults(out, *resp.Results)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&completedOnly, "completed", false, "Print whatever has completed so far")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func incompleteError(taskID string, outstanding []api.OutstandingFile) error {
	parts := make([]string, 0, len(outstanding))
	for _, f := range outstanding {
		parts = append(parts, fmt.Sprintf("%s (%s, %d%%)", f.Filename, f.Status, f.Progress))
	}
	return fmt.Errorf("task %s is not complete; outstanding: %s (use --completed for partial results)",
		taskID, strings.Join(parts, ", "))
}

func renderTaskResults(out io.Writer, results api.TaskResults) {
	fmt.Fprintf(out, "Task %s %s: %d completed, %d failed\n",
		results.TaskID, results.Status, results.Summary.Completed, results.Summary.Failed)
	for _, file := range results.Results {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "[%d] %s (%s)\n", file.Index, file.Filename, titleCase(file.Status))
		switch {
		case file.Transcription != nil:
			fmt.Fprintf(out, "Language: %s  Duration: %s\n", file.Transcription.Language, formatDuration(file.Transcription.Duration))
			fmt.Fprintln(out, file.Transcription.Text)
		case file.ErrorMessage != "":
			fmt.Fprintf(out, "Error: %s\n", file.ErrorMessage)
		}
	}
}

func renderCompletedResults(out io.Writer, results api.CompletedResults) {
	fmt.Fprintf(out, "Task %s: %d of %d files completed\n", results.TaskID, results.CompletedCount, results.TotalCount)
	for _, file := range results.Results {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "[%d] %s\n", file.FileIndex, file.Filename)
		fmt.Fprintf(out, "Language: %s  Duration: %s\n", file.Transcription.Language, formatDuration(file.Transcription.Duration))
		fmt.Fprintln(out, file.Transcription.Text)
	}
}
