package agent

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"text/template"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// defaultPromptTemplate keeps the server usable when no prompt file is
// deployed alongside the binary.
const defaultPromptTemplate = `You are the personal AI assistant of {{.Name}}. ` +
	`Answer questions about {{.Name}}'s experience, academics and achievements ` +
	`using the {{.K}} context passages injected into each question. ` +
	`If the context does not cover a question, say so instead of guessing.`

// Prompt renders the persona system message from a template file with the
// assistant's name and the retrieval count. Watch reloads the rendered
// text when the file changes on disk, so prompt edits don't need a
// restart.
type Prompt struct {
	mu       sync.RWMutex
	rendered string

	path   string
	name   string
	topK   int
	logger *zap.Logger

	watcher *fsnotify.Watcher
}

type promptVars struct {
	Name string
	K    int
}

// LoadPrompt reads and renders the template at path. An empty path uses
// the built-in default persona template.
func LoadPrompt(path, name string, topK int, logger *zap.Logger) (*Prompt, error) {
	if topK < 1 {
		topK = 1
	}

	p := &Prompt{
		path:   path,
		name:   name,
		topK:   topK,
		logger: logger,
	}

	if err := p.reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Render returns the current rendered system prompt.
func (p *Prompt) Render() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rendered
}

// TopK returns the retrieval count baked into the prompt.
func (p *Prompt) TopK() int {
	return p.topK
}

func (p *Prompt) reload() error {
	text := defaultPromptTemplate
	if p.path != "" {
		raw, err := os.ReadFile(p.path)
		if err != nil {
			return fmt.Errorf("read prompt file: %w", err)
		}
		text = string(raw)
	}

	tmpl, err := template.New("prompt").Parse(text)
	if err != nil {
		return fmt.Errorf("parse prompt template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, promptVars{Name: p.name, K: p.topK}); err != nil {
		return fmt.Errorf("render prompt template: %w", err)
	}

	p.mu.Lock()
	p.rendered = buf.String()
	p.mu.Unlock()
	return nil
}

// Watch starts reloading the prompt whenever its file is rewritten.
// It is a no-op for the built-in default prompt.
func (p *Prompt) Watch() error {
	if p.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create prompt watcher: %w", err)
	}
	if err := watcher.Add(p.path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch prompt file: %w", err)
	}
	p.watcher = watcher

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := p.reload(); err != nil {
					p.logger.Warn("prompt reload failed; keeping previous prompt",
						zap.String("path", p.path), zap.Error(err))
					continue
				}
				p.logger.Info("prompt reloaded", zap.String("path", p.path))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.logger.Warn("prompt watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Close stops the file watcher, if any.
func (p *Prompt) Close() error {
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}
