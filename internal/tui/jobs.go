package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/hubgate/internal/queue"
)

type column struct {
	title string
	width int
}

var jobColumns = []column{
	{"ID", 36},
	{"RECEIVER", 10},
	{"EVENT", 16},
	{"VERIFIED", 10},
	{"STATUS", 8},
	{"CREATED", 20},
}

// JobList renders jobs as an aligned table.
func JobList(t Theme, jobs []*queue.Job) string {
	if len(jobs) == 0 {
		return t.Dim.Render("no jobs")
	}

	var b strings.Builder
	headers := make([]string, len(jobColumns))
	for i, c := range jobColumns {
		headers[i] = t.Header.Width(c.width).Render(c.title)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, spaced(headers)...))
	b.WriteString("\n")

	for _, j := range jobs {
		cells := []string{
			lipgloss.NewStyle().Width(jobColumns[0].width).Render(j.ID),
			lipgloss.NewStyle().Width(jobColumns[1].width).Render(j.Receiver),
			lipgloss.NewStyle().Width(jobColumns[2].width).Render(truncate(j.EventType, jobColumns[2].width)),
			t.Verification(j.Verification).Width(jobColumns[3].width).Render(j.Verification),
			t.StatusQueued.Width(jobColumns[4].width).Render(string(j.Status)),
			t.Dim.Width(jobColumns[5].width).Render(j.CreatedAt.UTC().Format(time.RFC3339)),
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, spaced(cells)...))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// JobDetail renders one job, including its payload, inside a border.
func JobDetail(t Theme, j *queue.Job) string {
	field := func(name, value string) string {
		return t.Dim.Render(fmt.Sprintf("%-13s", name)) + value
	}

	lines := []string{
		t.Title.Render("Job " + j.ID),
		"",
		field("receiver", j.Receiver),
		field("event", t.Highlight.Render(j.EventType)),
		field("verification", t.Verification(j.Verification).Render(j.Verification)),
		field("status", string(j.Status)),
		field("submitted_by", j.SubmittedBy),
		field("created_at", j.CreatedAt.UTC().Format(time.RFC3339)),
	}
	if j.DedupeKey != nil {
		lines = append(lines, field("dedupe_key", *j.DedupeKey))
	}
	if j.RequestID != nil {
		lines = append(lines, field("request_id", *j.RequestID))
	}
	lines = append(lines, "", t.Header.Render("payload"), string(j.Payload))

	return t.Border.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func spaced(cells []string) []string {
	out := make([]string, 0, len(cells)*2)
	for i, c := range cells {
		if i > 0 {
			out = append(out, " ")
		}
		out = append(out, c)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
