// Package dispatchtest provides a recording Dispatcher for tests.
package dispatchtest

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Enqueued is one recorded Enqueue call.
type Enqueued struct {
	Path    string
	Payload []byte
	Delay   time.Duration
}

// Recorder satisfies dispatch.Dispatcher and records every enqueue.
type Recorder struct {
	mu    sync.Mutex
	Tasks []Enqueued

	// FailWith, when set, makes Enqueue return this error.
	FailWith error
}

func (r *Recorder) Enqueue(_ context.Context, path string, payload any, delay time.Duration) error {
	if r.FailWith != nil {
		return r.FailWith
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tasks = append(r.Tasks, Enqueued{Path: path, Payload: body, Delay: delay})
	return nil
}

// ByPath returns recorded tasks targeting the given path.
func (r *Recorder) ByPath(path string) []Enqueued {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Enqueued
	for _, t := range r.Tasks {
		if t.Path == path {
			out = append(out, t)
		}
	}
	return out
}
