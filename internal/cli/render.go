package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"scrapp.io/client/internal/core"
	"scrapp.io/client/internal/utils"
)

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
	labelStyle     = lipgloss.NewStyle().Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	errorStyle     = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#EF4444")).
			Padding(0, 1)
)

const rankedRows = 5

func renderTurn(turn core.ChatTurn) string {
	if turn.Role == core.RoleUser {
		return userStyle.Render("You:") + " " + turn.Content
	}
	return assistantStyle.Render("Assistant:") + " " + turn.Content
}

func renderTranscript(turns []core.ChatTurn) string {
	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderTurn(turn))
	}
	return b.String()
}

func renderResult(r *core.ClassificationResult) string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("Prediction: " + r.Label))
	if r.Confidence != nil {
		fmt.Fprintf(&b, " (%s)", utils.Percent(*r.Confidence))
	}
	b.WriteString("\n")

	if ranked := r.Ranked(rankedRows); len(ranked) > 0 {
		b.WriteString("\n")
		for _, lp := range ranked {
			fmt.Fprintf(&b, "  %-16s %7s\n", lp.Label, utils.Percent(lp.P))
		}
	}

	if instr := r.SubjectInstructions(); instr != "" {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("How to dispose"))
		b.WriteString("\n")
		b.WriteString(instr)
		b.WriteString("\n")
	}
	return b.String()
}

func renderPosts(posts []core.Post) string {
	if len(posts) == 0 {
		return "No posts found.\n"
	}
	var b strings.Builder
	for _, p := range posts {
		label := p.CategoryLabel
		if label == "" {
			label = p.Category.Label()
		}
		fmt.Fprintf(&b, "%s  %s\n", labelStyle.Render(p.Title), mutedStyle.Render("["+label+"]"))
		if !p.CreatedAt.IsZero() {
			b.WriteString(mutedStyle.Render(p.CreatedAt.Local().Format("2006-01-02 15:04")))
			b.WriteString("\n")
		}
		b.WriteString(p.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}

func renderBanner(msg string) string {
	return errorStyle.Render(msg)
}
