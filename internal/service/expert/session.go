package expert

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/M7mdkimoo/myrockai/internal/models"

	"github.com/google/uuid"
)

// Phase is the lifecycle stage of an expert session. Transitions only move
// forward.
type Phase string

const (
	PhaseMatching  Phase = "MATCHING"
	PhaseReviewing Phase = "REVIEWING"
	PhaseActive    Phase = "ACTIVE"
	PhaseRating    Phase = "RATING"
	PhaseClosed    Phase = "CLOSED"
)

var (
	ErrSessionNotFound  = errors.New("expert session not found")
	ErrSessionNotActive = errors.New("expert session is not active")
	ErrSessionNotRating = errors.New("expert session is not awaiting a rating")
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
)

// Config carries the timing knobs of the session lifecycle. Tests shrink
// them to keep runs fast.
type Config struct {
	MatchingDelay    time.Duration
	ReviewDelay      time.Duration
	ReplyDelay       time.Duration
	RatingCloseDelay time.Duration
	TickInterval     time.Duration
}

// DefaultConfig matches the production pacing of the session flow.
func DefaultConfig() Config {
	return Config{
		MatchingDelay:    3 * time.Second,
		ReviewDelay:      60 * time.Second,
		ReplyDelay:       2 * time.Second,
		RatingCloseDelay: 1500 * time.Millisecond,
		TickInterval:     time.Second,
	}
}

const greetingTemplate = "Hey there! I'm your dedicated Rock expert in %s. I've reviewed your AI conversation and I'm ready to bring my specialized skills to help you achieve your goals. What would you like me to work on?"

const workingReply = "I see what you mean. Let me work on that file for you. It will take about 10 minutes. Please keep this session open."

// expertNames assigns a stable display name per category.
var expertNames = map[models.ServiceCategory]string{
	models.CategoryDesign:      "Maya R.",
	models.CategoryVideo:       "Jordan P.",
	models.CategoryProgramming: "Sam K.",
	models.CategoryText:        "Priya N.",
	models.CategoryAnalysis:    "Diego M.",
	models.CategoryWebData:     "Lena T.",
	models.CategoryModeling3D:  "Noah B.",
}

// Snapshot is a consistent read of a session's state.
type Snapshot struct {
	ID         string           `json:"id"`
	Phase      Phase            `json:"phase"`
	Category   models.ServiceCategory `json:"category"`
	ExpertName string           `json:"expert_name"`
	ElapsedSec int              `json:"elapsed_sec"`
	Transcript []models.Message `json:"transcript"`
	Invoice    *Invoice         `json:"invoice,omitempty"`
	Rating     int              `json:"rating,omitempty"`
}

// Session drives one expert engagement from matching through close. All
// phase changes happen under the mutex; timers re-check the phase before
// acting so a Close always wins.
type Session struct {
	id       string
	category models.ServiceCategory
	cfg      Config

	mu         sync.Mutex
	phase      Phase
	expertName string
	elapsedSec int
	transcript []models.Message
	invoice    *Invoice
	rating     int
	onClosed   func(*Session)

	matchTimer  *time.Timer
	reviewTimer *time.Timer
	replyTimers []*time.Timer
	closeTimer  *time.Timer
	ticker      *time.Ticker
	tickStop    chan struct{}
}

func newSession(category models.ServiceCategory, cfg Config, onClosed func(*Session)) *Session {
	name, ok := expertNames[category]
	if !ok {
		name = "Alex R."
	}
	s := &Session{
		id:         uuid.NewString(),
		category:   category,
		cfg:        cfg,
		phase:      PhaseMatching,
		expertName: name,
		onClosed:   onClosed,
	}
	s.matchTimer = time.AfterFunc(cfg.MatchingDelay, s.enterReviewing)
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) enterReviewing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseMatching {
		return
	}
	s.phase = PhaseReviewing
	s.reviewTimer = time.AfterFunc(s.cfg.ReviewDelay, s.enterActive)
}

func (s *Session) enterActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseReviewing {
		return
	}
	s.phase = PhaseActive
	s.appendLocked(models.RoleRock, fmt.Sprintf(greetingTemplate, s.category))

	s.tickStop = make(chan struct{})
	s.ticker = time.NewTicker(s.cfg.TickInterval)
	go s.runTicker(s.ticker, s.tickStop)
}

func (s *Session) runTicker(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.phase == PhaseActive {
				s.elapsedSec++
			}
			s.mu.Unlock()
		}
	}
}

func (s *Session) appendLocked(role models.Role, text string) {
	s.transcript = append(s.transcript, models.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	})
}

// Message records a consumer message and schedules the expert's reply.
func (s *Session) Message(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return ErrSessionNotActive
	}
	s.appendLocked(models.RoleUser, text)

	t := time.AfterFunc(s.cfg.ReplyDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.phase != PhaseActive {
			return
		}
		s.appendLocked(models.RoleRock, workingReply)
	})
	s.replyTimers = append(s.replyTimers, t)
	return nil
}

// End stops the billing clock, prices the session, and moves it to the
// rating phase.
func (s *Session) End() (Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return Invoice{}, ErrSessionNotActive
	}
	s.stopTimersLocked()
	s.phase = PhaseRating
	inv := MakeInvoice(s.category, time.Duration(s.elapsedSec)*time.Second)
	s.invoice = &inv
	return inv, nil
}

// SubmitRating records the consumer's rating and schedules the final close.
func (s *Session) SubmitRating(stars int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseRating {
		return ErrSessionNotRating
	}
	if stars < 1 || stars > 5 {
		return ErrInvalidRating
	}
	s.rating = stars
	s.closeTimer = time.AfterFunc(s.cfg.RatingCloseDelay, func() {
		s.mu.Lock()
		if s.phase != PhaseRating {
			s.mu.Unlock()
			return
		}
		s.phase = PhaseClosed
		onClosed := s.onClosed
		s.mu.Unlock()
		if onClosed != nil {
			onClosed(s)
		}
	})
	return nil
}

// Close abandons the session from any phase and cancels every pending
// timer. Closing an already closed session is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.phase == PhaseClosed {
		s.mu.Unlock()
		return
	}
	s.stopTimersLocked()
	if s.closeTimer != nil {
		s.closeTimer.Stop()
	}
	s.phase = PhaseClosed
	onClosed := s.onClosed
	s.mu.Unlock()
	if onClosed != nil {
		onClosed(s)
	}
}

// stopTimersLocked cancels the phase timers and the billing ticker.
func (s *Session) stopTimersLocked() {
	if s.matchTimer != nil {
		s.matchTimer.Stop()
	}
	if s.reviewTimer != nil {
		s.reviewTimer.Stop()
	}
	for _, t := range s.replyTimers {
		t.Stop()
	}
	s.replyTimers = nil
	if s.ticker != nil {
		s.ticker.Stop()
		close(s.tickStop)
		s.ticker = nil
		s.tickStop = nil
	}
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	transcript := make([]models.Message, len(s.transcript))
	copy(transcript, s.transcript)
	var inv *Invoice
	if s.invoice != nil {
		c := *s.invoice
		inv = &c
	}
	return Snapshot{
		ID:         s.id,
		Phase:      s.phase,
		Category:   s.category,
		ExpertName: s.expertName,
		ElapsedSec: s.elapsedSec,
		Transcript: transcript,
		Invoice:    inv,
		Rating:     s.rating,
	}
}

// Manager owns the live sessions, keyed by id.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, sessions: make(map[string]*Session)}
}

// Start opens a new session for a category and begins matching.
func (m *Manager) Start(category models.ServiceCategory) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := newSession(category, m.cfg, m.drop)
	m.sessions[s.id] = s
	return s
}

// Get looks up a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// drop removes a closed session from the index.
func (m *Manager) drop(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, s.id)
}

// CloseAll abandons every live session, for shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()
	for _, s := range live {
		s.Close()
	}
}
