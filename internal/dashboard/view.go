package dashboard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jb-8200/asdlc-coord/internal/message"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	staleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	pendingMark = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("•")
)

func renderPresence(presence map[string]message.Presence) string {
	if len(presence) == 0 {
		return "no known instances"
	}

	names := make([]string, 0, len(presence))
	for name := range presence {
		names = append(names, name)
	}
	sort.Strings(names)

	var lines []string
	for _, name := range names {
		p := presence[name]
		status := activeStyle.Render("active")
		if !p.Active {
			status = staleStyle.Render("stale")
		}
		line := fmt.Sprintf("%-20s %s  %.0fs since heartbeat", name, status, p.SecondsSinceHeartbeat)
		if p.SessionID != "" {
			line += "  session=" + p.SessionID
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderTimeline(envs []message.Envelope) string {
	if len(envs) == 0 {
		return "no messages"
	}

	var lines []string
	for _, e := range envs {
		mark := " "
		if e.RequiresAck && !e.Acknowledged {
			mark = pendingMark
		}
		lines = append(lines, fmt.Sprintf("%s %s  %-24s %s -> %-12s %s",
			mark, message.FormatTime(e.Timestamp), e.Type, e.From, e.To, e.Payload.Subject))
	}
	return strings.Join(lines, "\n")
}
