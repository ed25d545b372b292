package models

import "testing"

func TestRateForCoversEveryCategory(t *testing.T) {
	for _, category := range Categories {
		if rate := RateFor(category); rate <= 0 {
			t.Fatalf("category %s has no positive rate", category)
		}
	}
}

func TestRateForUnknownFallsBackToTextTier(t *testing.T) {
	if rate := RateFor("Quantum Plumbing"); rate != ServiceRates[CategoryText] {
		t.Fatalf("unknown category rate = %v, want text tier %v", rate, ServiceRates[CategoryText])
	}
	if rate := RateFor(""); rate != 15 {
		t.Fatalf("empty category rate = %v, want 15", rate)
	}
}

func TestRateTierOrdering(t *testing.T) {
	cases := map[ServiceCategory]float64{
		CategoryProgramming: 50,
		CategoryModeling3D:  50,
		CategoryWebData:     45,
		CategoryAnalysis:    45,
		CategoryVideo:       40,
		CategoryDesign:      30,
		CategoryText:        15,
	}
	for category, want := range cases {
		if got := RateFor(category); got != want {
			t.Fatalf("RateFor(%s) = %v, want %v", category, got, want)
		}
	}
}
