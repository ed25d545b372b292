package expert

import (
	"strings"
	"testing"
	"time"

	"github.com/M7mdkimoo/myrockai/internal/models"
)

func fastConfig() Config {
	return Config{
		MatchingDelay:    time.Millisecond,
		ReviewDelay:      time.Millisecond,
		ReplyDelay:       time.Millisecond,
		RatingCloseDelay: time.Millisecond,
		TickInterval:     time.Millisecond,
	}
}

func waitForPhase(t *testing.T, s *Session, want Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Snapshot().Phase == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("session stuck in phase %s, want %s", s.Snapshot().Phase, want)
}

func waitForTranscriptLen(t *testing.T, s *Session, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(s.Snapshot().Transcript) == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("transcript has %d messages, want %d", len(s.Snapshot().Transcript), want)
}

func TestSessionProgressesThroughPhases(t *testing.T) {
	m := NewManager(fastConfig())
	s := m.Start(models.CategoryProgramming)
	defer s.Close()

	if got := s.Snapshot().Phase; got != PhaseMatching {
		t.Fatalf("initial phase = %s, want %s", got, PhaseMatching)
	}
	waitForPhase(t, s, PhaseActive)

	snap := s.Snapshot()
	if len(snap.Transcript) != 1 {
		t.Fatalf("expected exactly one greeting, got %d messages", len(snap.Transcript))
	}
	greeting := snap.Transcript[0]
	if greeting.Role != models.RoleRock {
		t.Fatalf("greeting role = %s", greeting.Role)
	}
	if !strings.Contains(greeting.Text, "dedicated Rock expert in Programming") {
		t.Fatalf("greeting text = %q", greeting.Text)
	}
	if snap.ExpertName == "" {
		t.Fatalf("expert name not assigned")
	}
}

func TestGreetingAppendedOnlyOnce(t *testing.T) {
	m := NewManager(fastConfig())
	s := m.Start(models.CategoryDesign)
	defer s.Close()
	waitForPhase(t, s, PhaseActive)

	// Re-firing the phase transitions must not duplicate the greeting.
	s.enterReviewing()
	s.enterActive()
	time.Sleep(10 * time.Millisecond)

	count := 0
	for _, msg := range s.Snapshot().Transcript {
		if strings.Contains(msg.Text, "dedicated Rock expert") {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("greeting appeared %d times", count)
	}
}

func TestMessageGetsCannedReply(t *testing.T) {
	m := NewManager(fastConfig())
	s := m.Start(models.CategoryVideo)
	defer s.Close()
	waitForPhase(t, s, PhaseActive)

	if err := s.Message("please trim the intro"); err != nil {
		t.Fatalf("message: %v", err)
	}
	waitForTranscriptLen(t, s, 3)

	snap := s.Snapshot()
	if snap.Transcript[1].Role != models.RoleUser || snap.Transcript[1].Text != "please trim the intro" {
		t.Fatalf("consumer message wrong: %+v", snap.Transcript[1])
	}
	reply := snap.Transcript[2]
	if reply.Role != models.RoleRock || !strings.Contains(reply.Text, "It will take about 10 minutes") {
		t.Fatalf("expert reply wrong: %+v", reply)
	}
}

func TestMessageRejectedOutsideActive(t *testing.T) {
	m := NewManager(DefaultConfig())
	s := m.Start(models.CategoryText)
	defer s.Close()

	if err := s.Message("too early"); err != ErrSessionNotActive {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
}

func TestEndBillsAtLeastOneBlock(t *testing.T) {
	m := NewManager(fastConfig())
	s := m.Start(models.CategoryAnalysis)
	defer s.Close()
	waitForPhase(t, s, PhaseActive)

	inv, err := s.End()
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if inv.BilledHours != 0.5 {
		t.Fatalf("billed hours = %v, want 0.5 minimum", inv.BilledHours)
	}
	if inv.Total != 0.5*45 {
		t.Fatalf("total = %v, want %v", inv.Total, 0.5*45)
	}
	if got := s.Snapshot().Phase; got != PhaseRating {
		t.Fatalf("phase after end = %s, want %s", got, PhaseRating)
	}
	if _, err := s.End(); err != ErrSessionNotActive {
		t.Fatalf("double end should fail, got %v", err)
	}
}

func TestRatingClosesAndDropsSession(t *testing.T) {
	m := NewManager(fastConfig())
	s := m.Start(models.CategoryDesign)
	waitForPhase(t, s, PhaseActive)

	if _, err := s.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := s.SubmitRating(0); err != ErrInvalidRating {
		t.Fatalf("expected ErrInvalidRating, got %v", err)
	}
	if err := s.SubmitRating(6); err != ErrInvalidRating {
		t.Fatalf("expected ErrInvalidRating, got %v", err)
	}
	if err := s.SubmitRating(5); err != nil {
		t.Fatalf("submit rating: %v", err)
	}
	waitForPhase(t, s, PhaseClosed)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := m.Get(s.ID()); err == ErrSessionNotFound {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("closed session still registered")
}

func TestCloseCancelsPendingWork(t *testing.T) {
	m := NewManager(Config{
		MatchingDelay:    time.Millisecond,
		ReviewDelay:      time.Millisecond,
		ReplyDelay:       time.Hour,
		RatingCloseDelay: time.Hour,
		TickInterval:     time.Millisecond,
	})
	s := m.Start(models.CategoryProgramming)
	waitForPhase(t, s, PhaseActive)

	if err := s.Message("start the refactor"); err != nil {
		t.Fatalf("message: %v", err)
	}
	s.Close()
	s.Close() // no-op

	snap := s.Snapshot()
	if snap.Phase != PhaseClosed {
		t.Fatalf("phase = %s, want %s", snap.Phase, PhaseClosed)
	}
	if len(snap.Transcript) != 2 {
		t.Fatalf("pending reply fired after close: %d messages", len(snap.Transcript))
	}
	if _, err := m.Get(s.ID()); err != ErrSessionNotFound {
		t.Fatalf("closed session still registered: %v", err)
	}
}
