// Package dashboard implements a terminal viewer over presence and the
// message timeline, polling the broker on a fixed tick and rendering
// two panels: live instance presence and recent message activity.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jb-8200/asdlc-coord/internal/broker"
	"github.com/jb-8200/asdlc-coord/internal/message"
)

const (
	refreshInterval  = 2 * time.Second
	presenceHeightPct = 35
	timelineLimit    = 50
)

// keyMap is the dashboard's key bindings.
type keyMap struct {
	Quit    key.Binding
	Refresh key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	}
}

// Model is the bubbletea model for the presence/timeline dashboard.
type Model struct {
	client    *broker.Client
	staleness time.Duration

	width  int
	height int

	presenceViewport viewport.Model
	timelineViewport viewport.Model

	presence map[string]message.Presence
	timeline []message.Envelope
	lastErr  error

	keys keyMap

	// mu protects presence, timeline, lastErr, width, height, and both
	// viewports: the fields read by View() and written by Update() from
	// a background fetch goroutine's result messages.
	mu sync.RWMutex
}

// NewModel creates a dashboard model backed by client, using staleness
// as the presence threshold passed to GetPresence on each refresh.
func NewModel(client *broker.Client, staleness time.Duration) *Model {
	return &Model{
		client:           client,
		staleness:        staleness,
		presenceViewport: viewport.New(0, 0),
		timelineViewport: viewport.New(0, 0),
		keys:             defaultKeyMap(),
	}
}

type refreshMsg struct {
	presence map[string]message.Presence
	timeline []message.Envelope
	err      error
}

type tickMsg time.Time

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), tea.SetWindowTitle("coord dashboard"))
}

func (m *Model) fetch() tea.Cmd {
	client := m.client
	staleness := m.staleness
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		presence, err := client.GetPresence(ctx, staleness)
		if err != nil {
			return refreshMsg{err: err}
		}
		timeline, err := client.Query(ctx, message.Query{Limit: timelineLimit})
		if err != nil {
			return refreshMsg{err: err}
		}
		return refreshMsg{presence: presence, timeline: timeline}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetch()
		}

	case tea.WindowSizeMsg:
		m.mu.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.mu.Unlock()
		m.resize()

	case refreshMsg:
		m.mu.Lock()
		m.lastErr = msg.err
		if msg.err == nil {
			m.presence = msg.presence
			m.timeline = msg.timeline
		}
		m.mu.Unlock()
		m.refreshContent()
		return m, tick()

	case tickMsg:
		return m, m.fetch()
	}

	return m, nil
}

func (m *Model) resize() {
	m.mu.Lock()
	defer m.mu.Unlock()

	contentWidth := m.width - 4
	if contentWidth < 20 {
		contentWidth = 20
	}
	available := m.height - 3
	if available < 6 {
		available = 6
	}
	presenceHeight := available * presenceHeightPct / 100
	if presenceHeight < 3 {
		presenceHeight = 3
	}
	timelineHeight := available - presenceHeight
	if timelineHeight < 3 {
		timelineHeight = 3
	}

	m.presenceViewport.Width = contentWidth
	m.presenceViewport.Height = presenceHeight
	m.timelineViewport.Width = contentWidth
	m.timelineViewport.Height = timelineHeight

	m.renderLocked()
}

func (m *Model) refreshContent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renderLocked()
}

// renderLocked must be called with mu held.
func (m *Model) renderLocked() {
	m.presenceViewport.SetContent(renderPresence(m.presence))
	m.timelineViewport.SetContent(renderTimeline(m.timeline))
}

func (m *Model) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder
	b.WriteString(headerStyle.Render("coordination broker dashboard"))
	b.WriteString("\n")
	if m.lastErr != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("last refresh failed: %v", m.lastErr)))
		b.WriteString("\n")
	}
	b.WriteString(panelStyle.Render(m.presenceViewport.View()))
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(m.timelineViewport.View()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q quit · r refresh"))
	return b.String()
}
