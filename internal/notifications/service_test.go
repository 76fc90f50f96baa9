package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"scribe/internal/config"
	"scribe/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTaskFailed, notifications.Payload{"task_id": "t1"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("expected nil config to yield noop, got %v", err)
	}
}

type captured struct {
	title    string
	tags     string
	priority string
	body     string
	calls    int
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		got.calls++
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		body, _ := io.ReadAll(r.Body)
		got.body = string(body)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, got
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectBody     string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "task completed",
			event: notifications.EventTaskCompleted,
			payload: notifications.Payload{
				"task_id":   "abc",
				"user_id":   "dana",
				"completed": 2,
				"elapsed":   90 * time.Second,
			},
			expectTitle: "Scribe - Task Complete",
			expectBody:  "✅ Transcribed 2 file(s) in 1m30s\nTask: abc (dana)",
			expectTags:  "scribe,task,completed",
		},
		{
			name:  "task completed with failures",
			event: notifications.EventTaskCompleted,
			payload: notifications.Payload{
				"task_id":   "abc",
				"completed": 1,
				"failed":    1,
				"elapsed":   4 * time.Second,
			},
			expectTitle: "Scribe - Task Complete",
			expectBody:  "⚠️ Transcribed 1 file(s), 1 failed, in 4s\nTask: abc",
			expectTags:  "scribe,task,completed",
		},
		{
			name:           "task failed",
			event:          notifications.EventTaskFailed,
			payload:        notifications.Payload{"task_id": "xyz", "failed": 3},
			expectTitle:    "Scribe - Task Failed",
			expectBody:     "❌ All 3 file(s) failed\nTask: xyz",
			expectTags:     "scribe,task,failed",
			expectPriority: "high",
		},
		{
			name:           "loop aborted",
			event:          notifications.EventLoopAborted,
			payload:        notifications.Payload{"error": "database is locked"},
			expectTitle:    "Scribe - Queue Stopped",
			expectBody:     "❌ Processing loop aborted: database is locked",
			expectTags:     "scribe,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "Scribe - Test",
			expectBody:     "🧪 Notification system test",
			expectTags:     "scribe,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, got := newCaptureServer(t, http.StatusOK)

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeoutSeconds = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			if got.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got.title)
			}
			if got.body != tc.expectBody {
				t.Fatalf("expected body %q, got %q", tc.expectBody, got.body)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got.tags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got.priority)
			}
		})
	}
}

func TestNtfyServiceSkipsSuccessWhenDisabled(t *testing.T) {
	server, got := newCaptureServer(t, http.StatusOK)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.NotifyOnSuccess = false

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTaskCompleted, notifications.Payload{"task_id": "a"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := svc.Publish(context.Background(), notifications.Event("unknown"), nil); err != nil {
		t.Fatalf("publish unknown: %v", err)
	}
	if got.calls != 0 {
		t.Fatalf("expected no requests, got %d", got.calls)
	}
	if err := svc.Publish(context.Background(), notifications.EventTaskFailed, notifications.Payload{"task_id": "a"}); err != nil {
		t.Fatalf("publish failure: %v", err)
	}
	if got.calls != 1 {
		t.Fatalf("expected failures to still notify, got %d calls", got.calls)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server, _ := newCaptureServer(t, http.StatusForbidden)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
