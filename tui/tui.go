// Package tui provides a Bubble Tea terminal client for the tim chat
// server. It renders the conversation in a scrollable viewport and
// streams answers as they arrive from the server.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

// State is the TUI state machine.
type State int

const (
	StateInput     State = iota // awaiting user input
	StateThinking               // request sent, nothing received yet
	StateStreaming              // answer chunks arriving
)

// Display roles for rendered messages.
const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleSystem    = "system"
	roleError     = "error"
)

// maxMessages bounds the rendered transcript.
const maxMessages = 200

// turnTimeout caps a single turn, retrieval and generation included.
const turnTimeout = 5 * time.Minute

// Streamer sends one turn to the server and delivers answer chunks as
// they arrive. *client.Client satisfies it.
type Streamer interface {
	Stream(ctx context.Context, threadID, userInput string, onChunk func(string)) (string, error)
}

// Message is a rendered transcript entry.
type Message struct {
	Role string
	Text string
}

// Model is the Bubble Tea model for the tim terminal client.
type Model struct {
	input    textarea.Model
	spinner  spinner.Model
	viewport viewport.Model

	state    State
	messages []Message
	output   strings.Builder

	streamCancel context.CancelFunc
	streamCh     <-chan streamEvent

	streamer Streamer
	threadID string
	persona  string
	ctx      context.Context

	width  int
	height int
	ready  bool

	styles   Styles
	markdown *markdownRenderer
}

// New creates a Model bound to a fresh thread.
func New(ctx context.Context, streamer Streamer, persona string) (*Model, error) {
	if streamer == nil {
		return nil, fmt.Errorf("tui.New: streamer is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ta := textarea.New()
	ta.Placeholder = "Ask anything..."
	ta.Prompt = "> "
	ta.SetHeight(1)
	ta.SetWidth(80)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(80, 20)

	m := &Model{
		input:    ta,
		spinner:  sp,
		viewport: vp,
		streamer: streamer,
		threadID: uuid.NewString(),
		persona:  persona,
		ctx:      ctx,
		width:    80,
		styles:   DefaultStyles(),
		markdown: newMarkdownRenderer(80),
	}

	m.addMessage(Message{
		Role: roleAssistant,
		Text: fmt.Sprintf("Hello! I am %s's personal AI assistant. How can I help you today?", persona),
	})
	return m, nil
}

// ThreadID returns the conversation thread this client speaks on.
func (m *Model) ThreadID() string { return m.threadID }

// addMessage appends a transcript entry and enforces maxMessages.
func (m *Model) addMessage(msg Message) {
	m.messages = append(m.messages, msg)
	if len(m.messages) > maxMessages {
		m.messages = m.messages[len(m.messages)-maxMessages:]
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// Run starts the Bubble Tea program and blocks until the user exits.
func Run(ctx context.Context, streamer Streamer, persona string) error {
	m, err := New(ctx, streamer, persona)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err = p.Run()
	return err
}
