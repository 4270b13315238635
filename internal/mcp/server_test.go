package mcp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/macworld/concierge/internal/conversation"
	"github.com/macworld/concierge/internal/db"
	"github.com/macworld/concierge/internal/leads"
)

func newStore(t *testing.T) *leads.Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return leads.NewStore(database)
}

func record(t *testing.T, store *leads.Store, key, name, email string) *leads.Recorded {
	t.Helper()
	history := []conversation.Message{
		{Role: conversation.RoleAssistant, Content: conversation.Greeting},
		{Role: conversation.RoleUser, Content: "MacBook Pro keyboard"},
		{Role: conversation.RoleAssistant, Content: "Thanks! Your name and number?"},
		{Role: conversation.RoleUser, Content: name + ", " + email},
		{Role: conversation.RoleAssistant, Content: "When works?"},
		{Role: conversation.RoleUser, Content: "Tuesday morning"},
		{Role: conversation.RoleAssistant, Content: "All set."},
	}
	rec, err := store.Record(context.Background(), conversation.Lead{
		SessionKey: key,
		Slots: conversation.Slots{
			Device:        "MacBook Pro keyboard",
			ContactRaw:    name + ", " + email,
			ClientName:    name,
			ClientEmail:   email,
			PreferredTime: "Tuesday morning",
		},
		History:    history,
		Summary:    conversation.Summarize(history),
		CapturedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	return rec
}

func call(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		tool     mcp.Tool
		wantName string
	}{
		{listAppointmentRequestsTool, "list_appointment_requests"},
		{getConversationTool, "get_conversation"},
		{markRequestReadTool, "mark_request_read"},
	}

	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	store := newStore(t)
	srv := NewServer(store)
	if srv.mcp == nil {
		t.Fatal("MCP server not initialized")
	}
	if srv.store != store {
		t.Error("store not set correctly")
	}
}

func TestHandleListAppointmentRequests(t *testing.T) {
	store := newStore(t)
	srv := NewServer(store)
	ctx := context.Background()

	res, err := srv.handleListAppointmentRequests(ctx, call(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := text(t, res); got != "No appointment requests found." {
		t.Errorf("empty list text = %q", got)
	}

	first := record(t, store, "k1", "Ada Obi", "ada@example.com")
	record(t, store, "k2", "Tunde Bello", "tunde@example.com")
	if err := store.MarkRead(ctx, first.Notification.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	t.Run("all", func(t *testing.T) {
		res, err := srv.handleListAppointmentRequests(ctx, call(map[string]any{"limit": 10}))
		if err != nil || res.IsError {
			t.Fatalf("unexpected failure: %v %v", err, res.Content)
		}
		out := text(t, res)
		if !strings.HasPrefix(out, "Found 2 request(s):") {
			t.Errorf("unexpected header: %q", out)
		}
		if !strings.Contains(out, "New appointment request from Ada Obi") {
			t.Errorf("missing Ada's request:\n%s", out)
		}
		if !strings.Contains(out, "email not delivered") {
			t.Errorf("undelivered flag missing:\n%s", out)
		}
	})

	t.Run("unread only", func(t *testing.T) {
		res, _ := srv.handleListAppointmentRequests(ctx, call(map[string]any{"unread_only": true}))
		out := text(t, res)
		if !strings.HasPrefix(out, "Found 1 request(s):") || strings.Contains(out, "Ada Obi") {
			t.Errorf("unread filter not applied:\n%s", out)
		}
	})

	t.Run("limit", func(t *testing.T) {
		res, _ := srv.handleListAppointmentRequests(ctx, call(map[string]any{"limit": 1}))
		if out := text(t, res); !strings.HasPrefix(out, "Found 1 request(s):") {
			t.Errorf("limit not applied:\n%s", out)
		}
	})
}

func TestHandleGetConversation(t *testing.T) {
	store := newStore(t)
	srv := NewServer(store)
	ctx := context.Background()
	rec := record(t, store, "k1", "Ada Obi", "ada@example.com")

	res, err := srv.handleGetConversation(ctx, call(map[string]any{"session_id": rec.Session.ID}))
	if err != nil || res.IsError {
		t.Fatalf("unexpected failure: %v %v", err, res.Content)
	}
	out := text(t, res)
	for _, want := range []string{"ada@example.com", "MacBook Pro keyboard", "**Client:** Tuesday morning", "**Rob:** All set."} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q:\n%s", want, out)
		}
	}

	res, _ = srv.handleGetConversation(ctx, call(map[string]any{"session_id": "missing"}))
	if !res.IsError {
		t.Error("expected error for unknown session")
	}

	res, _ = srv.handleGetConversation(ctx, call(map[string]any{}))
	if !res.IsError {
		t.Error("expected error for missing session_id")
	}
}

func TestHandleMarkRequestRead(t *testing.T) {
	store := newStore(t)
	srv := NewServer(store)
	ctx := context.Background()
	rec := record(t, store, "k1", "Ada Obi", "ada@example.com")

	res, err := srv.handleMarkRequestRead(ctx, call(map[string]any{"notification_id": rec.Notification.ID}))
	if err != nil || res.IsError {
		t.Fatalf("unexpected failure: %v %v", err, res.Content)
	}

	unread, err := store.ListNotifications(ctx, leads.ListFilter{UnreadOnly: true})
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(unread) != 0 {
		t.Errorf("expected no unread requests, got %d", len(unread))
	}

	res, _ = srv.handleMarkRequestRead(ctx, call(map[string]any{"notification_id": "nope"}))
	if !res.IsError {
		t.Error("expected error for unknown id")
	}
}
