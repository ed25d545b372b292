package toast

import (
	"sync"
	"time"

	"github.com/M7mdkimoo/myrockai/internal/models"

	"github.com/google/uuid"
)

// DefaultTTL is how long a toast stays visible without being dismissed.
const DefaultTTL = 4 * time.Second

// Service queues transient notifications with auto-expiry. Every expiry
// timer is cancellable and Close cancels all of them so nothing fires
// after teardown.
type Service struct {
	mu     sync.Mutex
	ttl    time.Duration
	active map[string]*entry
	order  []string
	closed bool
}

type entry struct {
	toast models.Toast
	timer *time.Timer
}

// NewService builds a toast queue. ttl <= 0 selects DefaultTTL.
func NewService(ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		ttl:    ttl,
		active: make(map[string]*entry),
	}
}

// Push queues a notification and arms its expiry timer.
func (s *Service) Push(message string, level models.ToastLevel) models.Toast {
	if level == "" {
		level = models.ToastInfo
	}
	t := models.Toast{
		ID:      uuid.NewString(),
		Message: message,
		Level:   level,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return t
	}
	e := &entry{toast: t}
	e.timer = time.AfterFunc(s.ttl, func() { s.Dismiss(t.ID) })
	s.active[t.ID] = e
	s.order = append(s.order, t.ID)
	return t
}

// Dismiss removes a toast and cancels its pending expiry.
func (s *Service) Dismiss(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.active[id]
	if !ok {
		return
	}
	e.timer.Stop()
	delete(s.active, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Active returns the visible toasts in display order.
func (s *Service) Active() []models.Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Toast, 0, len(s.order))
	for _, id := range s.order {
		if e, ok := s.active[id]; ok {
			out = append(out, e.toast)
		}
	}
	return out
}

// Close cancels every pending expiry timer and drops all toasts.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, e := range s.active {
		e.timer.Stop()
	}
	s.active = make(map[string]*entry)
	s.order = nil
}
