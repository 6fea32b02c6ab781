// Package style provides consistent terminal styling using Lipgloss.
package style

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jb-8200/asdlc-coord/internal/message"
)

// Column defines a table column with name and width.
type Column struct {
	Name  string
	Width int
	Align Alignment
	Style lipgloss.Style
}

// Alignment specifies column text alignment.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
)

// Table provides styled table rendering.
type Table struct {
	columns    []Column
	rows       [][]string
	headerSep  bool
	indent     string
	headerStyle lipgloss.Style
}

// NewTable creates a new table with the given columns.
func NewTable(columns ...Column) *Table {
	return &Table{
		columns:    columns,
		headerSep:  true,
		indent:     "  ",
		headerStyle: Bold,
	}
}

// SetIndent sets the left indent for the table.
func (t *Table) SetIndent(indent string) *Table {
	t.indent = indent
	return t
}

// SetHeaderSeparator enables/disables the header separator line.
func (t *Table) SetHeaderSeparator(enabled bool) *Table {
	t.headerSep = enabled
	return t
}

// AddRow adds a row of values to the table.
func (t *Table) AddRow(values ...string) *Table {
	// Pad with empty strings if needed
	for len(values) < len(t.columns) {
		values = append(values, "")
	}
	t.rows = append(t.rows, values)
	return t
}

// Render returns the formatted table string.
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}

	var sb strings.Builder

	// Render header
	sb.WriteString(t.indent)
	for i, col := range t.columns {
		text := t.headerStyle.Render(col.Name)
		sb.WriteString(t.pad(text, col.Name, col.Width, col.Align))
		if i < len(t.columns)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("\n")

	// Render separator
	if t.headerSep {
		sb.WriteString(t.indent)
		totalWidth := 0
		for i, col := range t.columns {
			totalWidth += col.Width
			if i < len(t.columns)-1 {
				totalWidth++ // space between columns
			}
		}
		sb.WriteString(Dim.Render(strings.Repeat("─", totalWidth)))
		sb.WriteString("\n")
	}

	// Render rows
	for _, row := range t.rows {
		sb.WriteString(t.indent)
		for i, col := range t.columns {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			// Truncate if too long, accounting for wide (e.g. CJK) runes.
			plainVal := stripAnsi(val)
			if runewidth.StringWidth(plainVal) > col.Width {
				val = runewidth.Truncate(plainVal, col.Width-3, "") + "..."
			}
			// Apply column style if set
			if col.Style.Value() != "" {
				val = col.Style.Render(val)
			}
			sb.WriteString(t.pad(val, plainVal, col.Width, col.Align))
			if i < len(t.columns)-1 {
				sb.WriteString(" ")
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// pad pads text to width, accounting for ANSI escape sequences.
// styledText is the text with ANSI codes, plainText is without.
func (t *Table) pad(styledText, plainText string, width int, align Alignment) string {
	plainLen := runewidth.StringWidth(plainText)
	if plainLen >= width {
		return styledText
	}

	padding := width - plainLen

	switch align {
	case AlignRight:
		return strings.Repeat(" ", padding) + styledText
	case AlignCenter:
		left := padding / 2
		right := padding - left
		return strings.Repeat(" ", left) + styledText + strings.Repeat(" ", right)
	default: // AlignLeft
		return styledText + strings.Repeat(" ", padding)
	}
}

// ansiRegex matches CSI escape sequences: ESC [ <params> <final byte>
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// stripAnsi removes ANSI escape sequences from a string.
func stripAnsi(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// NewPresenceTable returns a table preconfigured for `coordctl presence`
// output: one row per known instance, newest heartbeat information
// right-aligned.
func NewPresenceTable() *Table {
	return NewTable(
		Column{Name: "INSTANCE", Width: 20},
		Column{Name: "STATUS", Width: 8},
		Column{Name: "LAST HEARTBEAT", Width: 16, Align: AlignRight},
		Column{Name: "SESSION", Width: 16},
	)
}

// AddPresenceRow renders one instance's presence record, styling the
// status column green when active and red when stale.
func (t *Table) AddPresenceRow(instance string, p message.Presence) *Table {
	status := Success.Render("active")
	if !p.Active {
		status = Fail.Render("stale")
	}
	return t.AddRow(instance, status, fmt.Sprintf("%.0fs ago", p.SecondsSinceHeartbeat), p.SessionID)
}

// NewTimelineTable returns a table preconfigured for `coordctl check
// --table` output: one row per coordination message, newest-relevant
// columns first.
func NewTimelineTable() *Table {
	return NewTable(
		Column{Name: "TIME", Width: 20},
		Column{Name: "TYPE", Width: 20},
		Column{Name: "FROM", Width: 14},
		Column{Name: "TO", Width: 14},
		Column{Name: "ACK", Width: 5},
		Column{Name: "SUBJECT", Width: 30},
	)
}

// AddTimelineRow renders one envelope onto a timeline table.
func (t *Table) AddTimelineRow(env message.Envelope) *Table {
	ack := "-"
	if env.RequiresAck {
		ack = "no"
		if env.Acknowledged {
			ack = "yes"
		}
	}
	return t.AddRow(
		message.FormatTime(env.Timestamp),
		string(env.Type),
		env.From,
		env.To,
		ack,
		env.Payload.Subject,
	)
}

