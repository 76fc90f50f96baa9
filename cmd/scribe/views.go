package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"scribe/internal/api"
	"scribe/internal/textutil"
)

const (
	previewLimit = 60
	idLimit      = 8
)

var statusOrder = []string{"pending", "processing", "completed", "failed"}

var titleCaser = cases.Title(language.Und)

func titleCase(value string) string {
	value = strings.TrimSpace(strings.ReplaceAll(value, "_", " "))
	if value == "" {
		return ""
	}
	return titleCaser.String(value)
}

// buildFileStatsRows lists non-zero counts in lifecycle order, followed by
// any statuses the CLI does not know about.
func buildFileStatsRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(stats))
	seen := make(map[string]bool, len(statusOrder))
	for _, key := range statusOrder {
		seen[key] = true
		if stats[key] > 0 {
			rows = append(rows, []string{titleCase(key), humanize.Comma(int64(stats[key]))})
		}
	}
	for key, count := range stats {
		if !seen[key] && count > 0 {
			rows = append(rows, []string{titleCase(key), humanize.Comma(int64(count))})
		}
	}
	return rows
}

func buildTaskListRows(tasks []api.Task) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		user := task.UserID
		if user == "" {
			user = "-"
		}
		rows = append(rows, []string{
			shortID(task.TaskID),
			user,
			titleCase(task.Status),
			fmt.Sprintf("%d%%", task.Progress),
			fmt.Sprintf("%d/%d", task.Summary.Completed, task.Summary.Total),
			formatDisplayTime(task.CreatedAt),
		})
	}
	return rows
}

func buildTaskFileRows(files []api.File) [][]string {
	rows := make([][]string, 0, len(files))
	for _, file := range files {
		detail := ""
		switch {
		case file.ErrorMessage != "":
			detail = textutil.Truncate(file.ErrorMessage, previewLimit)
		case file.Transcription != nil:
			detail = textutil.Truncate(file.Transcription.Text, previewLimit)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", file.Index),
			file.Filename,
			titleCase(file.Status),
			fmt.Sprintf("%d%%", file.Progress),
			detail,
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > idLimit {
		return id[:idLimit]
	}
	return id
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return (time.Duration(seconds * float64(time.Second))).Round(100 * time.Millisecond).String()
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.Local().Format("2006-01-02 15:04")
	}
	return value
}
