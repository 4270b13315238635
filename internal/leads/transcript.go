package leads

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

var pageTmpl = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, Helvetica, Arial, sans-serif; max-width: 720px; margin: 2rem auto; color: #1d1d1f; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ddd; padding: 4px 8px; text-align: left; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// TranscriptMarkdown renders a stored lead as Markdown: a details table
// followed by the chat.
func TranscriptMarkdown(c *Client, ls *LeadSession, msgs []LeadMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Appointment request from %s\n\n", mdEscape(c.Name))
	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Client | %s |\n", cell(c.Name))
	fmt.Fprintf(&b, "| Email | %s |\n", cell(c.Email))
	fmt.Fprintf(&b, "| Phone | %s |\n", cell(c.Phone))
	fmt.Fprintf(&b, "| Device | %s |\n", cell(ls.DeviceInfo))
	fmt.Fprintf(&b, "| Preferred time | %s |\n", cell(ls.AppointmentTime))
	fmt.Fprintf(&b, "| Received | %s |\n\n", ls.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))

	b.WriteString("## Conversation\n\n")
	for _, m := range msgs {
		who := "Client"
		if m.Sender == SenderRob {
			who = "Rob"
		}
		fmt.Fprintf(&b, "**%s:** %s\n\n", who, mdEscape(m.Text))
	}
	return b.String()
}

// RenderTranscript writes the transcript as a standalone HTML page.
func RenderTranscript(w io.Writer, c *Client, ls *LeadSession, msgs []LeadMessage) error {
	var body bytes.Buffer
	if err := md.Convert([]byte(TranscriptMarkdown(c, ls, msgs)), &body); err != nil {
		return fmt.Errorf("rendering transcript: %w", err)
	}
	return pageTmpl.Execute(w, struct {
		Title string
		Body  template.HTML
	}{
		Title: "Appointment request from " + c.Name,
		Body:  template.HTML(body.String()),
	})
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "#", `\#`,
	"[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`, "|", `\|`,
	"\n", " ",
)

func mdEscape(s string) string {
	return mdEscaper.Replace(s)
}

func cell(s string) string {
	if s == "" {
		return "-"
	}
	return mdEscape(s)
}
