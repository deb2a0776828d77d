package tui

import "strings"

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderSeparator())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

// rebuildViewportContent re-renders the transcript into the viewport.
// Called whenever messages, streaming output, or dimensions change.
func (m *Model) rebuildViewportContent() {
	var b strings.Builder

	b.WriteString(m.styles.RenderBanner())
	b.WriteString("\n")

	for _, msg := range m.messages {
		switch msg.Role {
		case roleUser:
			b.WriteString(m.styles.User.Render("You> "))
			b.WriteString(msg.Text)
		case roleAssistant:
			b.WriteString(m.styles.Assistant.Render("Tim> "))
			b.WriteString(m.markdown.Render(msg.Text))
		case roleSystem:
			b.WriteString(m.styles.System.Render(msg.Text))
		case roleError:
			b.WriteString(m.styles.Error.Render("Error: " + msg.Text))
		}
		b.WriteString("\n\n")
	}

	if m.state == StateStreaming && m.output.Len() > 0 {
		b.WriteString(m.styles.Assistant.Render("Tim> "))
		b.WriteString(m.output.String())
		b.WriteString("\n\n")
	}

	if m.state == StateThinking {
		b.WriteString(m.spinner.View())
		b.WriteString(" Thinking...\n\n")
	}

	m.viewport.SetContent(b.String())
}

func (m *Model) renderSeparator() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	return m.styles.Separator.Render(strings.Repeat("─", width))
}

func (m *Model) renderStatusBar() string {
	switch m.state {
	case StateInput:
		return m.styles.StatusBar.Render("enter send • pgup/pgdn scroll • ctrl+c quit")
	default:
		return m.styles.StatusBar.Render("esc cancel • pgup/pgdn scroll • ctrl+c quit")
	}
}
