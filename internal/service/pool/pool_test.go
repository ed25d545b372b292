package pool

import (
	"context"
	"errors"
	"testing"

	"github.com/M7mdkimoo/myrockai/internal/models"
	"github.com/M7mdkimoo/myrockai/internal/state"
	"github.com/M7mdkimoo/myrockai/internal/storage"
)

type memRecords struct {
	records map[string]string
}

func (m *memRecords) LoadRecord(_ context.Context, name string) (string, error) {
	body, ok := m.records[name]
	if !ok {
		return "", storage.ErrRecordNotFound
	}
	return body, nil
}

func (m *memRecords) SaveRecord(_ context.Context, name, body string) error {
	m.records[name] = body
	return nil
}

type fakeEstimator struct {
	estimate string
	err      error
	calls    int
}

func (f *fakeEstimator) Estimate(context.Context, string, string, models.ServiceCategory) (string, error) {
	f.calls++
	return f.estimate, f.err
}

func newTestPool(t *testing.T, est *fakeEstimator) *Service {
	t.Helper()
	store, err := state.New(context.Background(), &memRecords{records: map[string]string{}})
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	return New(store, est, nil)
}

func TestCreateValidatesAndPrepends(t *testing.T) {
	est := &fakeEstimator{estimate: "Estimate: $100-$200. Scope: logo concepts."}
	svc := newTestPool(t, est)

	if _, err := svc.Create(context.Background(), "  ", "desc", models.CategoryDesign, nil); err != ErrTitleRequired {
		t.Fatalf("blank title: %v", err)
	}
	if _, err := svc.Create(context.Background(), "Logo", "", models.CategoryDesign, nil); err != ErrDescriptionRequired {
		t.Fatalf("blank description: %v", err)
	}
	if _, err := svc.Create(context.Background(), "Logo", "desc", models.ServiceCategory("Magic"), nil); err != ErrInvalidCategory {
		t.Fatalf("bad category: %v", err)
	}

	first, err := svc.Create(context.Background(), "Logo refresh", "Modernize our mark", models.CategoryDesign, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Status != models.StatusOpen {
		t.Fatalf("status = %s, want OPEN", first.Status)
	}
	if first.AIEstimate != est.estimate {
		t.Fatalf("estimate = %q", first.AIEstimate)
	}

	second, err := svc.Create(context.Background(), "Landing page", "Build a landing page", models.CategoryProgramming, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	list := svc.List(Filter{})
	if len(list) != 2 {
		t.Fatalf("list has %d requests", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("newest request must come first")
	}
}

func TestCreateAbortsWhenEstimateFails(t *testing.T) {
	est := &fakeEstimator{err: errors.New("provider down")}
	svc := newTestPool(t, est)

	_, err := svc.Create(context.Background(), "Logo refresh", "Modernize our mark", models.CategoryDesign, nil)
	if err == nil || !errors.Is(err, est.err) {
		t.Fatalf("expected estimate failure, got %v", err)
	}
	if got := svc.List(Filter{}); len(got) != 0 {
		t.Fatalf("failed request was posted anyway: %d entries", len(got))
	}
}

func TestBidValidation(t *testing.T) {
	est := &fakeEstimator{estimate: "ok"}
	svc := newTestPool(t, est)
	req, err := svc.Create(context.Background(), "Data cleanup", "Dedupe the export", models.CategoryWebData, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Bid(req.ID, "e1", "Sam K.", 0, "2 days"); err != ErrInvalidPrice {
		t.Fatalf("zero price: %v", err)
	}
	if err := svc.Bid(req.ID, "e1", "Sam K.", 120, "  "); err != ErrDeliveryRequired {
		t.Fatalf("blank delivery: %v", err)
	}
	if err := svc.Bid("missing", "e1", "Sam K.", 120, "2 days"); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("unknown request: %v", err)
	}
	if err := svc.Bid(req.ID, "e1", "Sam K.", 120, "2 days"); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if err := svc.Bid(req.ID, "e1", "Sam K.", 110, "1 day"); err != nil {
		t.Fatalf("second bid from same expert: %v", err)
	}

	got := svc.List(Filter{})[0]
	if len(got.Bids) != 2 {
		t.Fatalf("bids = %d, want 2", len(got.Bids))
	}
}

func TestFilterIsPureConjunction(t *testing.T) {
	est := &fakeEstimator{estimate: "ok"}
	svc := newTestPool(t, est)
	seed := []struct {
		title, desc string
		category    models.ServiceCategory
	}{
		{"Logo refresh", "Modernize the brand mark", models.CategoryDesign},
		{"Landing page", "Marketing site with CMS", models.CategoryProgramming},
		{"Brand video", "Thirty second brand spot", models.CategoryVideo},
	}
	for _, s := range seed {
		if _, err := svc.Create(context.Background(), s.title, s.desc, s.category, nil); err != nil {
			t.Fatalf("create %q: %v", s.title, err)
		}
	}

	if got := svc.List(Filter{Search: "BRAND"}); len(got) != 2 {
		t.Fatalf("search over title+description: got %d, want 2", len(got))
	}
	if got := svc.List(Filter{Category: models.CategoryVideo}); len(got) != 1 || got[0].Title != "Brand video" {
		t.Fatalf("category filter wrong: %+v", got)
	}
	if got := svc.List(Filter{Status: models.StatusCompleted}); len(got) != 0 {
		t.Fatalf("status filter matched %d open requests", len(got))
	}

	ab := svc.List(Filter{Search: "brand", Category: models.CategoryDesign})
	ba := svc.List(Filter{Category: models.CategoryDesign, Search: "brand"})
	if len(ab) != 1 || len(ba) != 1 || ab[0].ID != ba[0].ID {
		t.Fatalf("filter order changed the result: %d vs %d", len(ab), len(ba))
	}

	// Filtering never mutates the underlying list.
	if got := svc.List(Filter{}); len(got) != 3 {
		t.Fatalf("full list shrank to %d", len(got))
	}
}
