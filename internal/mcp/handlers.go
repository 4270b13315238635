package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/macworld/concierge/internal/leads"
)

const defaultListLimit = 20

func (s *Server) handleListAppointmentRequests(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}

	list, err := s.store.ListNotifications(ctx, leads.ListFilter{
		Type:       leads.TypeAppointmentRequest,
		UnreadOnly: request.GetBool("unread_only", false),
		Limit:      limit,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing requests failed: %v", err)), nil
	}

	if len(list) == 0 {
		return mcp.NewToolResultText("No appointment requests found."), nil
	}

	return mcp.NewToolResultText(formatRequests(list)), nil
}

func (s *Server) handleGetConversation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}

	ls, err := s.store.GetSession(ctx, id)
	if errors.Is(err, leads.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no session %q", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading session failed: %v", err)), nil
	}
	client, err := s.store.GetClient(ctx, ls.ClientID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading client failed: %v", err)), nil
	}
	msgs, err := s.store.GetMessages(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading messages failed: %v", err)), nil
	}

	return mcp.NewToolResultText(leads.TranscriptMarkdown(client, ls, msgs)), nil
}

func (s *Server) handleMarkRequestRead(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("notification_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: notification_id"), nil
	}

	switch err := s.store.MarkRead(ctx, id); {
	case errors.Is(err, leads.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("no request %q", id)), nil
	case err != nil:
		return mcp.NewToolResultError(fmt.Sprintf("marking request failed: %v", err)), nil
	}
	return mcp.NewToolResultText("Marked as read."), nil
}

// formatRequests renders notifications as plain text for an agent.
func formatRequests(list []leads.AdminNotification) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d request(s):\n", len(list))

	for i, n := range list {
		fmt.Fprintf(&sb, "\n--- Request %d ---\n", i+1)
		fmt.Fprintf(&sb, "ID: %s\n", n.ID)
		if n.SessionID != "" {
			fmt.Fprintf(&sb, "Session: %s\n", n.SessionID)
		}
		fmt.Fprintf(&sb, "Received: %s\n", n.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))

		var flags []string
		if !n.IsRead {
			flags = append(flags, "unread")
		}
		if !n.Delivered {
			flags = append(flags, "email not delivered")
		}
		if len(flags) > 0 {
			fmt.Fprintf(&sb, "Flags: %s\n", strings.Join(flags, ", "))
		}

		sb.WriteString("\n")
		sb.WriteString(n.Title)
		sb.WriteString("\n")
		sb.WriteString(n.Message)
		sb.WriteString("\n")
	}

	return sb.String()
}
