package chatcmder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/trickle/pkg/cliui"
	"github.com/papercomputeco/trickle/pkg/client"
	"github.com/papercomputeco/trickle/pkg/conversation"
	"github.com/papercomputeco/trickle/pkg/stream"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	dividerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	cursorMark   = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Render("▍")
)

// chrome is the number of lines around the viewport: header, divider,
// status, input and help.
const (
	inputHeight = 3
	chrome      = 4 + inputHeight
)

// conversationClient is the part of the client the model drives.
type conversationClient interface {
	Send(ctx context.Context, query string) error
	Stop()
}

type chatKeyMap struct {
	Send     key.Binding
	Stop     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Quit     key.Binding
}

func (k chatKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Stop, k.PageUp, k.PageDown, k.Quit}
}

func (k chatKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Send, k.Stop}, {k.PageUp, k.PageDown, k.Quit}}
}

func defaultKeyMap() chatKeyMap {
	return chatKeyMap{
		Send:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Stop:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "stop")),
		PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

type turnMsg conversation.Turn

type stateMsg stream.State

type retryMsg struct {
	attempt int
	delay   time.Duration
	err     error
}

type finishMsg struct {
	turn conversation.Turn
	err  error
}

type sentMsg struct {
	err error
}

type chatModel struct {
	ctx      context.Context
	conv     conversationClient
	endpoint string

	turns    []conversation.Turn
	rendered map[string]string
	state    stream.State
	status   string
	err      error
	ticking  bool

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	keys     chatKeyMap

	glamourStyle string
	renderer     *glamour.TermRenderer
	width        int
	height       int
}

func (c *chatCommander) runTUI(ctx context.Context, opts []client.Option) error {
	style := cliui.GlamourStyle()

	var program *bubbletea.Program
	send := func(msg bubbletea.Msg) {
		if program != nil {
			program.Send(msg)
		}
	}

	observer := conversation.Observer{
		OnTurn:  func(t conversation.Turn) { send(turnMsg(t)) },
		OnState: func(s stream.State) { send(stateMsg(s)) },
		OnRetry: func(attempt int, delay time.Duration, err error) {
			send(retryMsg{attempt: attempt, delay: delay, err: err})
		},
		OnFinish: func(t conversation.Turn, err error) { send(finishMsg{turn: t, err: err}) },
	}

	cl, err := client.New(ctx, c.settings, append(opts,
		client.WithLogger(c.logger),
		client.WithObserver(observer),
	)...)
	if err != nil {
		return err
	}
	defer cl.Close()

	model := newChatModel(ctx, cl, c.settings.Endpoint, cl.History().Turns(), style)
	program = bubbletea.NewProgram(model,
		bubbletea.WithContext(ctx),
		bubbletea.WithAltScreen(),
		bubbletea.WithInput(c.in),
		bubbletea.WithOutput(c.out),
	)
	_, err = program.Run()
	if errors.Is(err, bubbletea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func newChatModel(ctx context.Context, conv conversationClient, endpoint string, turns []conversation.Turn, style string) chatModel {
	input := textarea.New()
	input.Placeholder = "Send a message..."
	input.ShowLineNumbers = false
	input.SetHeight(inputHeight)
	input.KeyMap.InsertNewline.SetKeys("alt+enter")
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cliui.AssistantStyle

	return chatModel{
		ctx:          ctx,
		conv:         conv,
		endpoint:     endpoint,
		turns:        turns,
		rendered:     map[string]string{},
		input:        input,
		viewport:     viewport.New(cliui.DefaultWrap, 10),
		spinner:      sp,
		help:         help.New(),
		keys:         defaultKeyMap(),
		glamourStyle: style,
	}
}

func (m chatModel) Init() bubbletea.Cmd {
	return textarea.Blink
}

// busy reports whether the last turn is a reply still streaming.
func (m chatModel) busy() bool {
	if len(m.turns) == 0 {
		return false
	}
	last := m.turns[len(m.turns)-1]
	return last.Role == conversation.RoleAssistant && last.Status == conversation.StatusPending
}

func (m chatModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case bubbletea.KeyMsg:
		return m.handleKey(msg)

	case sentMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil

	case turnMsg:
		m.applyTurn(conversation.Turn(msg))
		m.refresh()
		if m.busy() && !m.ticking {
			m.ticking = true
			return m, m.spinner.Tick
		}
		return m, nil

	case stateMsg:
		m.state = stream.State(msg)
		if m.state == stream.Streaming {
			m.status = ""
		}
		return m, nil

	case retryMsg:
		m.status = fmt.Sprintf("connection lost (%v), retrying in %s [attempt %d]",
			msg.err, cliui.FormatDuration(msg.delay), msg.attempt)
		return m, nil

	case finishMsg:
		m.applyTurn(msg.turn)
		m.refresh()
		switch {
		case msg.err == nil:
			m.status = ""
		case errors.Is(msg.err, stream.ErrAborted):
			m.status = "stopped"
		default:
			m.status = ""
			m.err = msg.err
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			m.ticking = false
			return m, nil
		}
		var cmd bubbletea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd bubbletea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) handleKey(msg bubbletea.KeyMsg) (bubbletea.Model, bubbletea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, bubbletea.Quit

	case key.Matches(msg, m.keys.Stop):
		if !m.busy() {
			return m, nil
		}
		conv := m.conv
		return m, func() bubbletea.Msg {
			conv.Stop()
			return nil
		}

	case key.Matches(msg, m.keys.Send):
		query := strings.TrimSpace(m.input.Value())
		if query == "" {
			return m, nil
		}
		if query == "/exit" || query == "/quit" {
			return m, bubbletea.Quit
		}
		if m.busy() {
			m.status = "a reply is still streaming, press esc to stop it"
			return m, nil
		}
		m.input.Reset()
		m.err = nil
		m.status = ""
		conv, ctx := m.conv, m.ctx
		return m, func() bubbletea.Msg {
			return sentMsg{err: conv.Send(ctx, query)}
		}

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd bubbletea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd bubbletea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// applyTurn replaces the turn with the same ID or appends a new one.
func (m *chatModel) applyTurn(t conversation.Turn) {
	for i := len(m.turns) - 1; i >= 0; i-- {
		if m.turns[i].ID == t.ID {
			m.turns[i] = t
			delete(m.rendered, t.ID)
			return
		}
	}
	m.turns = append(m.turns, t)
}

func (m *chatModel) resize(width, height int) {
	m.width = width
	m.height = height

	m.input.SetWidth(width)
	m.help.Width = width
	m.viewport.Width = width
	m.viewport.Height = max(height-chrome, 3)

	r, err := cliui.NewMarkdownRenderer(m.glamourStyle, max(width-4, 20))
	if err == nil {
		m.renderer = r
	}
	m.rendered = map[string]string{}
	m.refresh()
}

// refresh rebuilds the transcript and keeps it scrolled to the bottom.
func (m *chatModel) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m *chatModel) transcript() string {
	if len(m.turns) == 0 {
		return cliui.DimStyle.Render("  New conversation. Type a message below.")
	}

	var b strings.Builder
	for _, t := range m.turns {
		switch t.Role {
		case conversation.RoleUser:
			b.WriteString(cliui.UserStyle.Render("you"))
		case conversation.RoleAssistant:
			b.WriteString(cliui.AssistantStyle.Render("assistant"))
		default:
			b.WriteString(cliui.DimStyle.Render(string(t.Role)))
		}
		b.WriteString("\n")
		b.WriteString(m.renderTurn(t))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *chatModel) renderTurn(t conversation.Turn) string {
	width := max(m.viewport.Width-2, 20)
	body := lipgloss.NewStyle().Width(width).PaddingLeft(2)

	switch {
	case t.Role != conversation.RoleAssistant:
		return body.Render(t.Content)

	case t.Status == conversation.StatusPending:
		return body.Render(t.Content + cursorMark)
	}

	out, ok := m.rendered[t.ID]
	if !ok {
		out = body.Render(t.Content)
		if m.renderer != nil {
			if md, err := m.renderer.Render(t.Content); err == nil {
				out = md
			}
		}
		m.rendered[t.ID] = out
	}

	if t.Status == conversation.StatusIncomplete {
		out = strings.TrimRight(out, "\n") + "\n  " + cliui.WarnStyle.Render("[incomplete]")
	}
	return out
}

func (m chatModel) View() string {
	header := fmt.Sprintf("%s %s", titleStyle.Render("trickle"), cliui.DimStyle.Render(m.endpoint))
	divider := dividerStyle.Render(strings.Repeat("─", max(m.width, 1)))

	return strings.Join([]string{
		header,
		m.viewport.View(),
		divider,
		m.statusLine(),
		m.input.View(),
		m.help.View(m.keys),
	}, "\n")
}

func (m chatModel) statusLine() string {
	switch {
	case m.err != nil:
		return fmt.Sprintf("%s %s", cliui.FailMark, cliui.ErrorStyle.Render(m.err.Error()))
	case m.status != "" && m.busy():
		return fmt.Sprintf("%s %s", m.spinner.View(), cliui.WarnStyle.Render(m.status))
	case m.busy():
		return fmt.Sprintf("%s %s", m.spinner.View(), cliui.DimStyle.Render(m.state.String()))
	case m.status != "":
		return cliui.DimStyle.Render(m.status)
	default:
		return ""
	}
}
