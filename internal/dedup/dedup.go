// Package dedup suppresses replayed and double-sent inbound messages.
//
// Two independent layers: a time-bounded cache of transport message IDs
// (redelivery protection) and a per-conversation last-content record that
// drops identical text arriving within a short window (rapid double taps).
// Short selection inputs are exempt from the content layer when the session
// phase expects exactly that shape, since "1" sent twice in a row can be two
// legitimate answers to consecutive prompts.
package dedup

import (
	"log/slog"
	"regexp"
	"sync"
	"time"
)

// importantShape matches bare digits, S<n>/T<n> selection tokens and the
// "none" keyword: the inputs a phase may legitimately receive back to back.
var importantShape = regexp.MustCompile(`^(\d+|[st]\d+|none)$`)

// IsImportantShape reports whether normalized text looks like a selection
// input rather than free text.
func IsImportantShape(normalized string) bool {
	return importantShape.MatchString(normalized)
}

type contentRecord struct {
	text string
	at   time.Time
}

// Guard is the two-layer duplicate filter. Safe for concurrent use.
type Guard struct {
	mu            sync.Mutex
	seenIDs       map[string]time.Time
	lastContent   map[string]contentRecord
	idWindow      time.Duration
	contentWindow time.Duration
	now           func() time.Time
}

// NewGuard creates a Guard with the given windows.
func NewGuard(idWindow, contentWindow time.Duration) *Guard {
	return &Guard{
		seenIDs:       make(map[string]time.Time),
		lastContent:   make(map[string]contentRecord),
		idWindow:      idWindow,
		contentWindow: contentWindow,
		now:           time.Now,
	}
}

// SeenID records the message identifier and reports whether it was already
// seen inside the window. Identifiers are assumed transport-unique within
// the window.
func (g *Guard) SeenID(messageID string) bool {
	if messageID == "" {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if at, ok := g.seenIDs[messageID]; ok && now.Sub(at) <= g.idWindow {
		return true
	}
	g.seenIDs[messageID] = now
	return false
}

// DuplicateContent records the normalized text for the conversation and
// reports whether the identical text arrived within the content window.
// When expectingSelection is true and the text has an important shape, the
// message is always allowed through: selection correctness wins over
// duplicate suppression.
func (g *Guard) DuplicateContent(convID, normalized string, expectingSelection bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	prev, ok := g.lastContent[convID]
	g.lastContent[convID] = contentRecord{text: normalized, at: now}
	if !ok || prev.text != normalized || now.Sub(prev.at) > g.contentWindow {
		return false
	}
	if expectingSelection && IsImportantShape(normalized) {
		return false
	}
	return true
}

// Sweep prunes expired entries from both layers. Driven by a periodic timer.
func (g *Guard) Sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	pruned := 0
	for id, at := range g.seenIDs {
		if now.Sub(at) > g.idWindow {
			delete(g.seenIDs, id)
			pruned++
		}
	}
	for conv, rec := range g.lastContent {
		if now.Sub(rec.at) > g.contentWindow {
			delete(g.lastContent, conv)
		}
	}
	if pruned > 0 {
		slog.Debug("Dedup sweep pruned message IDs", "pruned", pruned, "remaining", len(g.seenIDs))
	}
}
