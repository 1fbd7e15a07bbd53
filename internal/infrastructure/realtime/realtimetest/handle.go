// Package realtimetest provides an in-memory realtime.Handle for tests.
package realtimetest

import (
	"encoding/json"
	"errors"
	"sync"
)

// Handle records every payload sent to it.
type Handle struct {
	HandleID string
	Owner    string

	mu       sync.Mutex
	payloads [][]byte
	closed   bool
	failing  bool
}

func NewHandle(id, owner string) *Handle {
	return &Handle{HandleID: id, Owner: owner}
}

func (h *Handle) ID() string     { return h.HandleID }
func (h *Handle) UserID() string { return h.Owner }

func (h *Handle) Send(payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.failing {
		return errors.New("realtimetest: handle unavailable")
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	h.payloads = append(h.payloads, cp)
	return nil
}

func (h *Handle) Close(int, string) {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

// Fail makes subsequent sends return an error.
func (h *Handle) Fail() {
	h.mu.Lock()
	h.failing = true
	h.mu.Unlock()
}

func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Payloads returns a copy of everything sent so far.
func (h *Handle) Payloads() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][]byte, len(h.payloads))
	copy(out, h.payloads)
	return out
}

// Frames decodes every payload into a generic map.
func (h *Handle) Frames() []map[string]any {
	var out []map[string]any
	for _, p := range h.Payloads() {
		var m map[string]any
		if json.Unmarshal(p, &m) == nil {
			out = append(out, m)
		}
	}
	return out
}

// FramesOfType returns decoded payloads whose "type" field equals typ.
func (h *Handle) FramesOfType(typ string) []map[string]any {
	var out []map[string]any
	for _, f := range h.Frames() {
		if f["type"] == typ {
			out = append(out, f)
		}
	}
	return out
}

// Reset drops recorded payloads.
func (h *Handle) Reset() {
	h.mu.Lock()
	h.payloads = nil
	h.mu.Unlock()
}
