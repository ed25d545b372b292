package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/M7mdkimoo/myrockai/internal/models"
	"github.com/M7mdkimoo/myrockai/internal/storage"
)

const (
	recordProfile = "profile"
	recordAPIKeys = "api_keys"
)

// ErrRequestNotFound reports a bid against an unknown pool request.
var ErrRequestNotFound = errors.New("pool request not found")

// Store owns all application state: profile, provider credentials, the
// chat transcript and the talent pool list. Every mutation goes through a
// Store method; the profile and credential documents are persisted on each
// update while transcript and pool live in memory only.
type Store struct {
	mu      sync.RWMutex
	records storage.RecordStore
	cipher  *credCipher

	profile  models.UserProfile
	keys     map[string]string
	messages []models.Message
	pool     []models.PoolRequest
}

// New builds a Store, rehydrating profile and credentials from the record
// store. Missing or unreadable records fall back to defaults, never fail.
func New(ctx context.Context, records storage.RecordStore) (*Store, error) {
	cipher, err := newCredCipherFromEnv()
	if err != nil {
		return nil, fmt.Errorf("init credential cipher: %w", err)
	}
	s := &Store{
		records: records,
		cipher:  cipher,
		profile: models.DefaultProfile(),
		keys:    make(map[string]string),
	}
	s.rehydrate(ctx)
	return s, nil
}

func (s *Store) rehydrate(ctx context.Context) {
	if body, err := s.records.LoadRecord(ctx, recordProfile); err == nil {
		var profile models.UserProfile
		if jsonErr := json.Unmarshal([]byte(body), &profile); jsonErr != nil {
			log.Printf("discarding unreadable profile record: %v", jsonErr)
		} else {
			if profile.Ratings == nil {
				profile.Ratings = []int{}
			}
			s.profile = profile
		}
	} else if !errors.Is(err, storage.ErrRecordNotFound) {
		log.Printf("load profile record: %v", err)
	}

	if body, err := s.records.LoadRecord(ctx, recordAPIKeys); err == nil {
		var stored map[string]string
		if jsonErr := json.Unmarshal([]byte(body), &stored); jsonErr != nil {
			log.Printf("discarding unreadable credential record: %v", jsonErr)
		} else {
			for provider, value := range stored {
				s.keys[provider] = s.openKey(value)
			}
		}
	} else if !errors.Is(err, storage.ErrRecordNotFound) {
		log.Printf("load credential record: %v", err)
	}
}

// openKey unseals a stored credential. Values written before a cipher was
// configured stay readable as plaintext.
func (s *Store) openKey(value string) string {
	if s.cipher == nil {
		return value
	}
	plain, err := s.cipher.Decrypt(value)
	if err != nil {
		return value
	}
	return plain
}

// ProfileUpdate is a partial profile mutation; nil fields are left as is.
type ProfileUpdate struct {
	Name        *string                  `json:"name"`
	Email       *string                  `json:"email"`
	Bio         *string                  `json:"bio"`
	AvatarURL   *string                  `json:"avatar_url"`
	Role        *models.UserRole         `json:"role"`
	Preferences *models.UserPreferences `json:"preferences"`
}

// Profile returns a copy of the current profile.
func (s *Store) Profile() models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProfile(s.profile)
}

// UpdateProfile merges the partial update into the profile and persists it.
func (s *Store) UpdateProfile(ctx context.Context, update ProfileUpdate) (models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if update.Name != nil {
		s.profile.Name = *update.Name
	}
	if update.Email != nil {
		s.profile.Email = *update.Email
	}
	if update.Bio != nil {
		s.profile.Bio = *update.Bio
	}
	if update.AvatarURL != nil {
		s.profile.AvatarURL = *update.AvatarURL
	}
	if update.Role != nil {
		s.profile.Role = *update.Role
	}
	if update.Preferences != nil {
		s.profile.Preferences = *update.Preferences
	}
	if err := s.persistProfileLocked(ctx); err != nil {
		return models.UserProfile{}, err
	}
	return cloneProfile(s.profile), nil
}

// ToggleRole flips between consumer and expert and persists the result.
func (s *Store) ToggleRole(ctx context.Context) (models.UserRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile.Role == models.RoleExpert {
		s.profile.Role = models.RoleConsumer
	} else {
		s.profile.Role = models.RoleExpert
	}
	if err := s.persistProfileLocked(ctx); err != nil {
		return "", err
	}
	return s.profile.Role, nil
}

// AddRating appends a 1-5 star score to the ratings history.
func (s *Store) AddRating(ctx context.Context, stars int) error {
	if stars < 1 || stars > 5 {
		return errors.New("rating must be between 1 and 5")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile.Ratings = append(s.profile.Ratings, stars)
	return s.persistProfileLocked(ctx)
}

func (s *Store) persistProfileLocked(ctx context.Context) error {
	body, err := json.Marshal(s.profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return s.records.SaveRecord(ctx, recordProfile, string(body))
}

// SetAPIKey stores a provider credential and persists the credential map.
func (s *Store) SetAPIKey(ctx context.Context, provider, key string) error {
	provider = strings.TrimSpace(strings.ToLower(provider))
	if provider == "" {
		return errors.New("provider is required")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[provider] = key
	return s.persistKeysLocked(ctx)
}

// APIKey returns the stored credential for a provider.
func (s *Store) APIKey(provider string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[strings.TrimSpace(strings.ToLower(provider))]
	return key, ok
}

// DeleteAPIKey removes a stored credential.
func (s *Store) DeleteAPIKey(ctx context.Context, provider string) error {
	provider = strings.TrimSpace(strings.ToLower(provider))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[provider]; !ok {
		return fmt.Errorf("no credential stored for %s", provider)
	}
	delete(s.keys, provider)
	return s.persistKeysLocked(ctx)
}

// Providers lists providers with a stored credential, keys redacted.
func (s *Store) Providers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	providers := make([]string, 0, len(s.keys))
	for provider := range s.keys {
		providers = append(providers, provider)
	}
	return providers
}

func (s *Store) persistKeysLocked(ctx context.Context) error {
	stored := make(map[string]string, len(s.keys))
	for provider, key := range s.keys {
		if s.cipher != nil {
			sealed, err := s.cipher.Encrypt(key)
			if err != nil {
				return fmt.Errorf("seal credential: %w", err)
			}
			stored[provider] = sealed
			continue
		}
		stored[provider] = key
	}
	body, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	return s.records.SaveRecord(ctx, recordAPIKeys, string(body))
}

// AddMessage appends to the chat transcript.
func (s *Store) AddMessage(msg models.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// Messages returns a copy of the transcript in insertion order.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// ResetChat clears the transcript.
func (s *Store) ResetChat() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
}

// AddPoolRequest prepends a request so the list reads most recent first.
func (s *Store) AddPoolRequest(req models.PoolRequest) {
	s.mu.Lock()
	s.pool = append([]models.PoolRequest{req}, s.pool...)
	s.mu.Unlock()
}

// PoolRequests returns a copy of the pool list.
func (s *Store) PoolRequests() []models.PoolRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PoolRequest, len(s.pool))
	for i, req := range s.pool {
		out[i] = cloneRequest(req)
	}
	return out
}

// AddBid appends a bid to the identified request.
func (s *Store) AddBid(requestID string, bid models.ExpertBid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pool {
		if s.pool[i].ID == requestID {
			s.pool[i].Bids = append(s.pool[i].Bids, bid)
			return nil
		}
	}
	return ErrRequestNotFound
}

func cloneProfile(p models.UserProfile) models.UserProfile {
	out := p
	out.Ratings = append([]int(nil), p.Ratings...)
	return out
}

func cloneRequest(r models.PoolRequest) models.PoolRequest {
	out := r
	out.Bids = append([]models.ExpertBid(nil), r.Bids...)
	out.Files = append([]models.FileAttachment(nil), r.Files...)
	return out
}
