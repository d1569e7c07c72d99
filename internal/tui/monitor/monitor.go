// ABOUTME: Keep-alive monitor as a bubbletea model
// ABOUTME: Shows the live session expiry, fed by session store change notifications

package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/syntlex/courier/internal/tui/styles"
	"github.com/syntlex/courier/models"
)

// SessionMsg carries a session change (nil after logout or teardown)
type SessionMsg struct {
	Session *models.Session
}

type tickMsg time.Time

// Subscriber is the part of the session store the monitor listens to
type Subscriber interface {
	Subscribe(fn func(*models.Session)) func()
}

type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}

// Model renders the keep-alive status
type Model struct {
	spinner     spinner.Model
	session     *models.Session
	interval    time.Duration
	now         func() time.Time
	started     time.Time
	refreshes   int
	lastRefresh time.Time
	quitting    bool
}

// New creates a monitor for the current session
func New(initial *models.Session, interval time.Duration, now func() time.Time) Model {
	if now == nil {
		now = time.Now
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.KeyStyle

	return Model{
		spinner:  s,
		session:  initial,
		interval: interval,
		now:      now,
		started:  now(),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case SessionMsg:
		if msg.Session != nil && (m.session == nil || msg.Session.AccessToken != m.session.AccessToken) {
			m.refreshes++
			m.lastRefresh = m.now()
		}
		m.session = msg.Session
		return m, nil

	case tickMsg:
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render("Courier session keep-alive"))
	b.WriteString("\n")

	now := m.now()
	if m.session == nil {
		fmt.Fprintf(&b, "Status:       %s\n", styles.RenderState(styles.StateLoggedOut))
		b.WriteString(styles.Subtitle.Render("Run 'courier login' to start a session."))
		b.WriteString("\n")
	} else {
		hasExpiry := m.session.ExpiresAt != nil
		remaining := m.session.ExpiresIn(now)
		state := styles.SessionState(remaining, models.SafetyMargin, hasExpiry)

		fmt.Fprintf(&b, "Status:       %s %s\n", m.spinner.View(), styles.RenderState(state))
		if hasExpiry {
			fmt.Fprintf(&b, "Expires at:   %s\n", styles.ValueStyle.Render(m.session.ExpiresAt.Local().Format("15:04:05")))
			fmt.Fprintf(&b, "Expires in:   %s\n", formatRemaining(remaining))
			fmt.Fprintf(&b, "              %s\n", styles.ExpiryBar(remaining, models.TokenValidity, 30))
		}
	}

	fmt.Fprintf(&b, "Refreshes:    %d\n", m.refreshes)
	if !m.lastRefresh.IsZero() {
		fmt.Fprintf(&b, "Last refresh: %s ago\n", formatRemaining(now.Sub(m.lastRefresh)))
	}
	fmt.Fprintf(&b, "Interval:     %s\n", m.interval)

	b.WriteString(styles.Help.Render(keys.Quit.Help().Key + " " + keys.Quit.Help().Desc))
	b.WriteString("\n")
	return b.String()
}

func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.Truncate(time.Second).String()
}

// Run shows the monitor until the user quits or ctx ends. Session changes
// published by sub are forwarded into the program.
func Run(ctx context.Context, sub Subscriber, initial *models.Session, interval time.Duration) error {
	p := tea.NewProgram(New(initial, interval, time.Now), tea.WithContext(ctx))

	unsubscribe := sub.Subscribe(func(s *models.Session) {
		p.Send(SessionMsg{Session: s})
	})
	defer unsubscribe()

	if _, err := p.Run(); err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return err
	}
	return nil
}
