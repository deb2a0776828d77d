// Package agent runs the three-stage turn pipeline: seed the persona
// system message, augment the user input with retrieved context, invoke
// the model and clean its output.
package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jaaabir/tim-ai/pkg/chat"
	"github.com/jaaabir/tim-ai/pkg/history"
	"github.com/jaaabir/tim-ai/pkg/model"
	"github.com/jaaabir/tim-ai/pkg/retrieval"
)

// contextMarker separates the user's wording from the injected passages in
// the augmented message sent to the model. The marker never reaches
// persisted history.
const contextMarker = "[CONTEXT FROM VECTOR STORE]"

// Agent holds the pipeline's collaborators. It keeps no turn state of its
// own; everything lives in the history store, so a run is a pure function
// of (history, input) plus the two external calls.
type Agent struct {
	store     history.Store
	retriever retrieval.Retriever
	model     model.Client
	prompt    *Prompt
	logger    *zap.Logger

	topK     int
	maxTurns int
}

// Option configures optional agent behavior.
type Option func(*Agent)

// WithMaxTurns caps how many past turns are replayed to the model. The
// stored history is never truncated; only the generate stage's view is.
// Zero (the default) replays everything.
func WithMaxTurns(n int) Option {
	return func(a *Agent) { a.maxTurns = n }
}

// New creates an agent.
func New(store history.Store, retriever retrieval.Retriever, mc model.Client, prompt *Prompt, logger *zap.Logger, opts ...Option) *Agent {
	a := &Agent{
		store:     store,
		retriever: retriever,
		model:     mc,
		prompt:    prompt,
		logger:    logger,
		topK:      prompt.TopK(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes one turn for threadID and returns the cleaned answer.
// An empty answer with a nil error means the model produced no output;
// history is untouched in that case. Callers wanting same-thread turns
// serialized must hold store.Lock(threadID) around the call.
func (a *Agent) Run(ctx context.Context, threadID, userInput string) (string, error) {
	if err := a.seed(ctx, threadID); err != nil {
		return "", err
	}
	if err := a.retrieve(ctx, threadID, userInput); err != nil {
		return "", err
	}
	return a.generate(ctx, threadID, userInput)
}

// seed inserts the persona system message on a thread's first turn. On
// later turns the history already starts with it and nothing happens.
func (a *Agent) seed(ctx context.Context, threadID string) error {
	hist, err := a.store.GetOrCreate(ctx, threadID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if len(hist) > 0 {
		return nil
	}

	a.logger.Debug("seeding system message", zap.String("thread_id", threadID))
	return a.store.Append(ctx, threadID, chat.System(a.prompt.Render()))
}

// retrieve fetches the top-k passages for the raw input and appends the
// augmented user message. The augmented form is transient: generate swaps
// it back for the original wording once the model has answered.
func (a *Agent) retrieve(ctx context.Context, threadID, userInput string) error {
	passages, err := a.retriever.Search(ctx, userInput, a.topK)
	if err != nil {
		return fmt.Errorf("retrieve context: %w", err)
	}

	augmented := userInput + "\n" + contextMarker + "\n" + strings.Join(passages, "\n")
	return a.store.Append(ctx, threadID, chat.User(augmented))
}

// generate invokes the model with the replay window and commits the turn.
// On empty model output nothing is written: the history stays exactly as
// the retrieve stage left it and no assistant message appears.
func (a *Agent) generate(ctx context.Context, threadID, userInput string) (string, error) {
	hist, err := a.store.GetOrCreate(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	raw, err := a.model.Invoke(ctx, a.replayWindow(hist))
	if err != nil {
		return "", fmt.Errorf("invoke model: %w", err)
	}

	answer := Clean(raw)
	if answer == "" {
		a.logger.Warn("model returned empty output", zap.String("thread_id", threadID))
		return "", nil
	}

	// Swap the augmented user message for the original wording so later
	// turns don't replay stale retrieval context, then commit the answer.
	committed := make([]chat.Message, 0, len(hist)+1)
	committed = append(committed, hist[:len(hist)-1]...)
	committed = append(committed, chat.User(userInput), chat.Assistant(answer))

	if err := a.store.Replace(ctx, threadID, committed); err != nil {
		return "", fmt.Errorf("commit turn: %w", err)
	}
	return answer, nil
}

// replayWindow returns the messages sent to the model: everything, or the
// system message plus the most recent maxTurns turns when a cap is set.
func (a *Agent) replayWindow(hist []chat.Message) []chat.Message {
	if a.maxTurns <= 0 {
		return hist
	}

	// A turn is a user/assistant pair; the trailing augmented user
	// message always survives the cut.
	keep := 2 * a.maxTurns
	if len(hist)-1 <= keep {
		return hist
	}

	window := make([]chat.Message, 0, keep+1)
	window = append(window, hist[0])
	window = append(window, hist[len(hist)-keep:]...)
	return window
}
