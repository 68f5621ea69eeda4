// Package notify carries transient user-facing messages: the Go counterpart
// of a toast notification. Components report through a Notifier instead of
// logging so a frontend can decide how to display them.
package notify

import (
	"fmt"
	"io"
	"sync"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Notifier interface {
	Notify(level Level, message string)
}

// Console writes notifications as single lines to W.
type Console struct {
	W io.Writer
}

func (c *Console) Notify(level Level, message string) {
	fmt.Fprintf(c.W, "[%s] %s\n", level, message)
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(Level, string) {}

type Entry struct {
	Level   Level
	Message string
}

// Recorder collects notifications for inspection in tests.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) Notify(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: message})
}

func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Recorder) Errors() []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Level == LevelError {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}
