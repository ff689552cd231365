// Package escalate tracks consecutive failures per conversation and hands
// control to a human operator when thresholds are crossed.
//
// A muted conversation bypasses the state machine entirely; inbound messages
// only update the operator's "who to reply to" pointer. Reactivation is
// operator-only, via a reserved keyword pair.
package escalate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mundohelados/orderbot/internal/models"
)

// Notifier is the outbound text capability the gate needs. Satisfied by
// messaging.Service.
type Notifier interface {
	SendText(ctx context.Context, to string, body string) error
}

// Gate owns the process-wide muted set and escalation thresholds.
type Gate struct {
	mu           sync.Mutex
	muted        map[string]bool
	lastCustomer string

	notifier           Notifier
	operators          []string
	errorThreshold     int
	aiFailureThreshold int
}

// NewGate creates a Gate notifying the given operator identifiers.
func NewGate(notifier Notifier, operators []string, errorThreshold, aiFailureThreshold int) *Gate {
	return &Gate{
		muted:              make(map[string]bool),
		notifier:           notifier,
		operators:          operators,
		errorThreshold:     errorThreshold,
		aiFailureThreshold: aiFailureThreshold,
	}
}

// IsOperator reports whether the conversation identifier belongs to a
// configured operator.
func (g *Gate) IsOperator(convID string) bool {
	for _, op := range g.operators {
		if op == convID {
			return true
		}
	}
	return false
}

// IsMuted reports whether the conversation is under human control.
func (g *Gate) IsMuted(convID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.muted[convID]
}

// MutedCount returns how many conversations are currently muted.
func (g *Gate) MutedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.muted)
}

// NoteMutedMessage records that a muted customer wrote again, keeping the
// operator reply pointer current.
func (g *Gate) NoteMutedMessage(convID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastCustomer = convID
}

// LastCustomer returns the most recent muted conversation that wrote, used
// when an operator reactivates without naming a customer.
func (g *Gate) LastCustomer() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastCustomer
}

// ShouldEscalate reports whether either counter has crossed its threshold on
// a session that has not already been escalated.
func (g *Gate) ShouldEscalate(s *models.Session) bool {
	if s.AdminNotified {
		return false
	}
	return s.ErrorCount >= g.errorThreshold || s.AIFailureCount >= g.aiFailureThreshold
}

// Escalate mutes the conversation, marks the session notified and sends a
// single notice to every operator. Idempotent per escalation cycle: the
// AdminNotified flag suppresses re-fires until Reactivate clears it. The
// caller holds the session lock.
func (g *Gate) Escalate(ctx context.Context, convID string, s *models.Session, reason string) {
	if s.AdminNotified {
		return
	}
	s.AdminNotified = true

	g.mu.Lock()
	g.muted[convID] = true
	g.lastCustomer = convID
	g.mu.Unlock()

	slog.Warn("Conversation escalated to operator", "conversation", convID, "reason", reason,
		"errorCount", s.ErrorCount, "aiFailureCount", s.AIFailureCount)

	notice := fmt.Sprintf("🙋 Customer needs help\nConversation: %s\nReason: %s\nPhase: %s\nReply directly; send the resume keyword when done.",
		convID, reason, s.Phase)
	g.NotifyOperators(ctx, notice)
}

// Reactivate unmutes the conversation and clears both failure counters and
// the notified flag so a fresh run of failures can escalate again. The
// caller holds the session lock.
func (g *Gate) Reactivate(convID string, s *models.Session) {
	g.mu.Lock()
	delete(g.muted, convID)
	g.mu.Unlock()

	if s != nil {
		s.ErrorCount = 0
		s.AIFailureCount = 0
		s.AdminNotified = false
	}
	slog.Info("Conversation reactivated by operator", "conversation", convID)
}

// Mute silences a conversation without touching counters (operator takeover).
func (g *Gate) Mute(convID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.muted[convID] = true
	g.lastCustomer = convID
}

// NotifyOperators sends the text to every configured operator. Send failures
// are logged, not propagated: operator notification is best effort.
func (g *Gate) NotifyOperators(ctx context.Context, text string) {
	for _, op := range g.operators {
		if err := g.notifier.SendText(ctx, op, text); err != nil {
			slog.Error("Failed to notify operator", "operator", op, "error", err)
		}
	}
}
