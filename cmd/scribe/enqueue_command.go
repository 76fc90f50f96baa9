package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/fileutil"
	"scribe/internal/ipc"
	"scribe/internal/queue"
)

const waitPollInterval = 500 * time.Millisecond

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var wait bool
	var waitTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "enqueue <file>...",
		Short: "Queue local audio or video files for transcription",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := checkLocalFiles(cfg, args); err != nil {
				return err
			}

			return ctx.withClient(func(client *ipc.Client) error {
				req := ipc.EnqueueRequest{UserID: strings.TrimSpace(userID)}
				staged := make([]string, 0, len(args))
				for _, src := range args {
					dst, err := fileutil.StageFile(src, cfg.Paths.UploadDir)
					if err != nil {
						_ = fileutil.RemoveAll(staged...)
						return err
					}
					staged = append(staged, dst)
					req.Files = append(req.Files, ipc.EnqueueFile{Name: filepath.Base(src), Path: dst})
				}

				resp, err := client.Enqueue(req)
				if err != nil {
					_ = fileutil.RemoveAll(staged...)
					return fmt.Errorf("enqueue: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued task %s (%d files)\n", resp.TaskID, resp.FileCount)
				if !wait {
					return nil
				}

				task, err := waitForTask(client, resp.TaskID, waitTimeout)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Task %s %s: %d completed, %d failed\n",
					task.TaskID, task.Status, task.Summary.Completed, task.Summary.Failed)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User identifier recorded on the task")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait until every file reaches a terminal state")
	cmd.Flags().DurationVar(&waitTimeout, "timeout", 0, "Give up waiting after this long (0 waits forever)")
	return cmd
}

// checkLocalFiles applies the upload limits before anything is copied.
func checkLocalFiles(cfg *config.Config, paths []string) error {
	if len(paths) > cfg.Upload.MaxFiles {
		return fmt.Errorf("too many files: %d given, at most %d per task", len(paths), cfg.Upload.MaxFiles)
	}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", path)
		}
		if info.Size() == 0 {
			return fmt.Errorf("%s is empty", path)
		}
		if info.Size() > cfg.Upload.MaxFileBytes {
			return fmt.Errorf("%s is %s, larger than the %s limit", path,
				humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(cfg.Upload.MaxFileBytes)))
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !slices.Contains(cfg.Upload.AllowedExtensions, ext) {
			return fmt.Errorf("%s: unsupported file extension %q (allowed: %s)",
				path, ext, strings.Join(cfg.Upload.AllowedExtensions, ", "))
		}
	}
	return nil
}

func waitForTask(client *ipc.Client, taskID string, timeout time.Duration) (ipc.Task, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		resp, err := client.TaskShow(taskID)
		if err != nil {
			return ipc.Task{}, err
		}
		switch queue.TaskStatus(resp.Task.Status) {
		case queue.TaskStatusCompleted, queue.TaskStatusFailed:
			return resp.Task, nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return resp.Task, fmt.Errorf("task %s still %s after %s", taskID, resp.Task.Status, timeout)
		}
		time.Sleep(waitPollInterval)
	}
}
