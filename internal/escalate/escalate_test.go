package escalate

import (
	"context"
	"testing"

	"github.com/mundohelados/orderbot/internal/models"
)

type recordingNotifier struct {
	sent []struct{ to, body string }
}

func (r *recordingNotifier) SendText(ctx context.Context, to, body string) error {
	r.sent = append(r.sent, struct{ to, body string }{to, body})
	return nil
}

func TestEscalateOnceAndReactivate(t *testing.T) {
	n := &recordingNotifier{}
	g := NewGate(n, []string{"op-1", "op-2"}, 3, 2)
	s := &models.Session{ErrorCount: 3}

	if !g.ShouldEscalate(s) {
		t.Fatal("threshold crossed, should escalate")
	}
	g.Escalate(context.Background(), "cust-1", s, "repeated validation errors")

	if !g.IsMuted("cust-1") {
		t.Error("conversation should be muted after escalation")
	}
	if len(n.sent) != 2 {
		t.Fatalf("expected one notice per operator, got %d sends", len(n.sent))
	}

	// Subsequent messages must not re-notify.
	if g.ShouldEscalate(s) {
		t.Error("escalation must be idempotent while AdminNotified is set")
	}
	g.Escalate(context.Background(), "cust-1", s, "again")
	if len(n.sent) != 2 {
		t.Errorf("second escalation fired notifications: %d sends", len(n.sent))
	}

	// Reactivation clears everything so a fresh cycle can escalate again.
	g.Reactivate("cust-1", s)
	if g.IsMuted("cust-1") {
		t.Error("reactivated conversation should be unmuted")
	}
	if s.ErrorCount != 0 || s.AIFailureCount != 0 || s.AdminNotified {
		t.Error("reactivation must clear counters and notified flag")
	}

	s.AIFailureCount = 2
	if !g.ShouldEscalate(s) {
		t.Error("fresh failure run should escalate again after reactivation")
	}
}

func TestAIFailureThresholdIndependent(t *testing.T) {
	g := NewGate(&recordingNotifier{}, nil, 3, 2)
	s := &models.Session{AIFailureCount: 2}
	if !g.ShouldEscalate(s) {
		t.Error("AI failure threshold should trigger independently")
	}
	s = &models.Session{ErrorCount: 2, AIFailureCount: 1}
	if g.ShouldEscalate(s) {
		t.Error("neither threshold crossed, no escalation")
	}
}

func TestMutedPointer(t *testing.T) {
	g := NewGate(&recordingNotifier{}, []string{"op-1"}, 3, 2)
	g.Mute("cust-9")
	g.NoteMutedMessage("cust-9")
	if g.LastCustomer() != "cust-9" {
		t.Errorf("LastCustomer = %q", g.LastCustomer())
	}
	if !g.IsMuted("cust-9") {
		t.Error("takeover mute not applied")
	}
}

func TestIsOperator(t *testing.T) {
	g := NewGate(&recordingNotifier{}, []string{"op-1"}, 3, 2)
	if !g.IsOperator("op-1") || g.IsOperator("cust-1") {
		t.Error("operator membership check wrong")
	}
}
