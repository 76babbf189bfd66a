package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"gigboard/internal/workflow"
)

// terminal is the CLI face of the workflows: messages go to out, prompts
// read from in, and navigation renders the target view after the delay.
type terminal struct {
	out        io.Writer
	in         *bufio.Reader
	assumeYes  bool
	mu         sync.Mutex
	renderView func(workflow.View)
}

func (t *terminal) Notify(level workflow.Level, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prefix := map[workflow.Level]string{
		workflow.LevelSuccess: "✓",
		workflow.LevelWarning: "!",
		workflow.LevelError:   "✗",
	}[level]
	if prefix == "" {
		prefix = "·"
	}
	fmt.Fprintf(t.out, "%s %s\n", prefix, msg)
}

func (t *terminal) NavigateAfter(delay time.Duration, to workflow.View) {
	if delay > 0 {
		time.Sleep(delay)
	}
	if t.renderView != nil {
		t.renderView(to)
	}
}

func (t *terminal) Confirm(ctx context.Context, prompt string) (bool, error) {
	if t.assumeYes {
		return true, nil
	}
	fmt.Fprintf(t.out, "%s [y/N] ", prompt)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := t.in.ReadString('\n')
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r := <-ch:
		if r.err != nil && r.err != io.EOF {
			return false, r.err
		}
		return isYes(r.line), nil
	}
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	}
	return false
}
