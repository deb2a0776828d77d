package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// streamBufferSize absorbs bursts of small chunks while the viewport
// is mid-render.
const streamBufferSize = 100

// streamEvent is a discriminated union carried on a single channel:
// exactly one field is set per event.
type streamEvent struct {
	text string
	full string
	err  error
	done bool
}

type streamStartedMsg struct {
	eventCh <-chan streamEvent
	cancel  context.CancelFunc
}

type streamTextMsg struct{ text string }

type streamDoneMsg struct{ full string }

type streamErrorMsg struct{ err error }

// startStream kicks off one turn against the server. The goroutine
// exits when the turn completes, fails, or the context is canceled;
// channel closure signals completion either way.
func (m *Model) startStream(query string) tea.Cmd {
	return func() tea.Msg {
		eventCh := make(chan streamEvent, streamBufferSize)
		ctx, cancel := context.WithTimeout(m.ctx, turnTimeout)

		go func() {
			defer cancel()
			defer close(eventCh)

			full, err := m.streamer.Stream(ctx, m.threadID, query, func(chunk string) {
				select {
				case eventCh <- streamEvent{text: chunk}:
				case <-ctx.Done():
				}
			})
			if err != nil {
				select {
				case eventCh <- streamEvent{err: err}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case eventCh <- streamEvent{done: true, full: full}:
			case <-ctx.Done():
			}
		}()

		return streamStartedMsg{eventCh: eventCh, cancel: cancel}
	}
}

// listenForStream waits for the next stream event and converts it to a
// Bubble Tea message. Empty events loop rather than recurse.
func listenForStream(eventCh <-chan streamEvent) tea.Cmd {
	return func() tea.Msg {
		if eventCh == nil {
			return nil
		}
		for {
			event, ok := <-eventCh
			if !ok {
				return streamErrorMsg{err: fmt.Errorf("stream ended without completion signal")}
			}
			switch {
			case event.err != nil:
				return streamErrorMsg{err: event.err}
			case event.done:
				return streamDoneMsg{full: event.full}
			case event.text != "":
				return streamTextMsg{text: event.text}
			default:
				continue
			}
		}
	}
}
