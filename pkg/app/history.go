package app

import (
	"sync"
	"time"

	"siodbg/pkg/mqtt"
	"siodbg/pkg/portio"
	"siodbg/pkg/postcode"
	"siodbg/pkg/session"
)

// History is a session sink which keeps the latest codes and events for the web server.
// It is written by the decoding loop and read by the web handlers.
type History struct {
	sync.RWMutex
	size   int
	codes  []mqtt.CodeMessage
	events []portio.WriteEvent
	errors []string
	stats  session.Stats
}

// NewHistory generates a history of the latest size entries per stream.
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{size: size}
}

func (h *History) Event(ev portio.WriteEvent) {
	h.Lock()
	defer h.Unlock()
	h.events = appendLimited(h.events, ev, h.size)
}

func (h *History) Code(c postcode.Code) {
	h.Lock()
	defer h.Unlock()
	h.codes = appendLimited(h.codes, mqtt.NewCodeMessage(c, time.Now()), h.size)
}

func (h *History) Report(err error) {
	h.Lock()
	defer h.Unlock()
	h.errors = appendLimited(h.errors, err.Error(), h.size)
}

// SetStats saves the counters of the session.
func (h *History) SetStats(s session.Stats) {
	h.Lock()
	defer h.Unlock()
	h.stats = s
}

// Codes returns a copy of the latest codes, oldest first.
func (h *History) Codes() []mqtt.CodeMessage {
	h.RLock()
	defer h.RUnlock()
	return append([]mqtt.CodeMessage{}, h.codes...)
}

// Events returns a copy of the latest write events, oldest first.
func (h *History) Events() []portio.WriteEvent {
	h.RLock()
	defer h.RUnlock()
	return append([]portio.WriteEvent{}, h.events...)
}

// Errors returns a copy of the latest reported errors, oldest first.
func (h *History) Errors() []string {
	h.RLock()
	defer h.RUnlock()
	return append([]string{}, h.errors...)
}

// Stats returns the last saved counters.
func (h *History) Stats() session.Stats {
	h.RLock()
	defer h.RUnlock()
	return h.stats
}

func appendLimited[T any](s []T, v T, size int) []T {
	s = append(s, v)
	if len(s) > size {
		s = s[len(s)-size:]
	}
	return s
}
