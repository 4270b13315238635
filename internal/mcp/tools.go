package mcp

import "github.com/mark3labs/mcp-go/mcp"

var listAppointmentRequestsTool = mcp.NewTool("list_appointment_requests",
	mcp.WithDescription("List appointment requests captured by Rob, newest first."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of requests to return (default 20)"),
	),
	mcp.WithBoolean("unread_only",
		mcp.Description("Only return requests the operator has not read yet"),
	),
)

var getConversationTool = mcp.NewTool("get_conversation",
	mcp.WithDescription("Get the client details and full chat transcript behind an appointment request."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Session id from list_appointment_requests"),
	),
)

var markRequestReadTool = mcp.NewTool("mark_request_read",
	mcp.WithDescription("Mark an appointment request as read."),
	mcp.WithString("notification_id",
		mcp.Required(),
		mcp.Description("Request id from list_appointment_requests"),
	),
)
