package pool

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/M7mdkimoo/myrockai/internal/models"
	"github.com/M7mdkimoo/myrockai/internal/redis"
	"github.com/M7mdkimoo/myrockai/internal/state"

	"github.com/google/uuid"
)

var (
	ErrTitleRequired       = errors.New("request title is required")
	ErrDescriptionRequired = errors.New("request description is required")
	ErrInvalidCategory     = errors.New("unknown service category")
	ErrInvalidPrice        = errors.New("bid price must be positive")
	ErrDeliveryRequired    = errors.New("bid delivery time is required")
)

// ErrRequestNotFound re-exports the store error so handlers only import
// this package.
var ErrRequestNotFound = state.ErrRequestNotFound

// Estimator produces the AI price/scope line attached to new requests.
type Estimator interface {
	Estimate(ctx context.Context, title, description string, category models.ServiceCategory) (string, error)
}

const estimateCacheTTL = 24 * time.Hour

// Service manages the talent pool: posting requests, bidding, and
// filtering the list. Estimates are cached in redis keyed by request
// content so reposting identical work skips a model call.
type Service struct {
	store     *state.Store
	estimator Estimator
	cache     *redis.Client
}

func New(store *state.Store, estimator Estimator, cache *redis.Client) *Service {
	return &Service{store: store, estimator: estimator, cache: cache}
}

// Create validates and posts a new request. The AI estimate is mandatory:
// when it fails, the request is not posted and the error propagates.
func (s *Service) Create(ctx context.Context, title, description string, category models.ServiceCategory, files []models.FileAttachment) (models.PoolRequest, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" {
		return models.PoolRequest{}, ErrTitleRequired
	}
	if description == "" {
		return models.PoolRequest{}, ErrDescriptionRequired
	}
	if !category.Valid() {
		return models.PoolRequest{}, ErrInvalidCategory
	}

	estimate, err := s.estimate(ctx, title, description, category)
	if err != nil {
		return models.PoolRequest{}, fmt.Errorf("estimate request: %w", err)
	}

	req := models.PoolRequest{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Category:    category,
		Files:       files,
		AIEstimate:  estimate,
		Status:      models.StatusOpen,
		CreatedAt:   time.Now().UTC(),
	}
	s.store.AddPoolRequest(req)
	return req, nil
}

func (s *Service) estimate(ctx context.Context, title, description string, category models.ServiceCategory) (string, error) {
	key := estimateCacheKey(title, description, category)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
			return cached, nil
		}
	}
	estimate, err := s.estimator.Estimate(ctx, title, description, category)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, estimate, estimateCacheTTL); err != nil {
			log.Printf("cache estimate: %v", err)
		}
	}
	return estimate, nil
}

func estimateCacheKey(title, description string, category models.ServiceCategory) string {
	sum := sha256.Sum256([]byte(title + "\x00" + description + "\x00" + string(category)))
	return "pool:estimate:" + hex.EncodeToString(sum[:8])
}

// Bid appends an expert proposal to a request.
func (s *Service) Bid(requestID, expertID, expertName string, price float64, deliveryTime string) error {
	if price <= 0 {
		return ErrInvalidPrice
	}
	if strings.TrimSpace(deliveryTime) == "" {
		return ErrDeliveryRequired
	}
	return s.store.AddBid(requestID, models.ExpertBid{
		ExpertID:     expertID,
		ExpertName:   expertName,
		Price:        price,
		DeliveryTime: deliveryTime,
	})
}

// Filter narrows the pool list. Empty criteria match everything; set
// criteria combine with AND. Search is a case-insensitive substring match
// over title and description.
type Filter struct {
	Search   string
	Category models.ServiceCategory
	Status   models.RequestStatus
}

// List returns the pool requests matching the filter, newest first.
func (s *Service) List(f Filter) []models.PoolRequest {
	all := s.store.PoolRequests()
	if f == (Filter{}) {
		return all
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	matched := make([]models.PoolRequest, 0, len(all))
	for _, req := range all {
		if search != "" &&
			!strings.Contains(strings.ToLower(req.Title), search) &&
			!strings.Contains(strings.ToLower(req.Description), search) {
			continue
		}
		if f.Category != "" && req.Category != f.Category {
			continue
		}
		if f.Status != "" && req.Status != f.Status {
			continue
		}
		matched = append(matched, req)
	}
	return matched
}
