package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"booksync/internal/config"
	"booksync/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newServer(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		got.body = string(body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("nope"))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func serviceFor(url string) notifications.Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	return notifications.NewService(&cfg)
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	svc := serviceFor("")
	if err := svc.NotifySyncCompleted(context.Background(), notifications.Summary{Title: "猫"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNotifySyncCompleted(t *testing.T) {
	tests := []struct {
		name         string
		summary      notifications.Summary
		wantTitle    string
		wantBody     string
		wantPriority string
	}{
		{
			name:      "clean run",
			summary:   notifications.Summary{Title: "猫", Written: 3, Skipped: 1, Duration: 90 * time.Second},
			wantTitle: "booksync - Subtitles Ready",
			wantBody:  "猫: 3 written, 1 skipped in 1m30s",
		},
		{
			name:         "failures",
			summary:      notifications.Summary{Title: "猫", Written: 2, Failed: 1, Duration: time.Second},
			wantTitle:    "booksync - Finished With Problems",
			wantBody:     "猫: 2 written, 0 skipped, 1 failed, 0 unmatched in 1s",
			wantPriority: "high",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := newServer(t, http.StatusOK)
			if err := serviceFor(srv.URL).NotifySyncCompleted(context.Background(), tt.summary); err != nil {
				t.Fatalf("notify: %v", err)
			}
			if got.title != tt.wantTitle || got.body != tt.wantBody || got.priority != tt.wantPriority {
				t.Fatalf("got title=%q body=%q priority=%q", got.title, got.body, got.priority)
			}
			if !strings.HasPrefix(got.tags, "booksync,sync") {
				t.Fatalf("unexpected tags %q", got.tags)
			}
		})
	}
}

func TestNotifyErrorIncludesCause(t *testing.T) {
	srv, got := newServer(t, http.StatusOK)
	if err := serviceFor(srv.URL).NotifyError(context.Background(), errors.New("disk full"), "猫"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.body != "Sync failed for 猫: disk full" {
		t.Fatalf("unexpected body %q", got.body)
	}
}

func TestSendReportsHTTPErrors(t *testing.T) {
	srv, _ := newServer(t, http.StatusForbidden)
	err := serviceFor(srv.URL).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
