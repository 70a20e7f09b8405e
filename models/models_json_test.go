package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func sampleReport() *DuplicateRateReport {
	return &DuplicateRateReport{
		ID:        "report-1",
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		URLs:      []string{"https://example.com/a/1.html", "https://example.com/a/2.html", "https://example.com/b/3.html"},
		Pages: map[string]PageRecord{
			"https://example.com/a/1.html": {URL: "https://example.com/a/1.html", Success: true, Paragraphs: []string{"p1", "p2", "p3"}, TotalParagraphs: 3, Directory: "example.com/a"},
			"https://example.com/a/2.html": {URL: "https://example.com/a/2.html", Success: true, Paragraphs: []string{"p1"}, TotalParagraphs: 1, Directory: "example.com/a"},
			"https://example.com/b/3.html": {URL: "https://example.com/b/3.html", Success: false, Paragraphs: []string{}, Error: "fetch failed: HTTP 404", Directory: "example.com/b"},
		},
		DuplicateRates: map[string]float64{
			"https://example.com/a/1.html": 33.33,
			"https://example.com/a/2.html": 100,
			"https://example.com/b/3.html": 0,
		},
		DuplicateParagraphs: map[string][]DuplicateRecord{
			"https://example.com/a/1.html": {{OwningURL: "https://example.com/a/1.html", ParagraphExcerpt: "p1", SimilarToURL: "https://example.com/a/2.html", SimilarityScore: 100}},
			"https://example.com/a/2.html": {{OwningURL: "https://example.com/a/2.html", ParagraphExcerpt: "p1", SimilarToURL: "https://example.com/a/1.html", SimilarityScore: 100}},
			"https://example.com/b/3.html": {},
		},
		Stats: Summary{TotalURLs: 3, SuccessfulURLs: 2, HighDuplicateCount: 2, AverageDuplicateRate: 44.44, Threshold: 15, SimilarityThreshold: 0.65},
	}
}

// TestReportJSONRoundTrip verifies a persisted report reads back with the same rates
func TestReportJSONRoundTrip(t *testing.T) {
	original := sampleReport()

	jsonBytes, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Failed to marshal report: %v", err)
	}

	var decoded DuplicateRateReport
	if err := json.Unmarshal(jsonBytes, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal report: %v", err)
	}

	for url, rate := range original.DuplicateRates {
		if math.Abs(decoded.Rate(url)-rate) > 0.005 {
			t.Errorf("Rate(%s) = %v after round trip, want %v", url, decoded.Rate(url), rate)
		}
	}
	if len(decoded.Duplicates("https://example.com/a/1.html")) != 1 {
		t.Errorf("Expected 1 duplicate record for page 1 after round trip")
	}
	if decoded.Stats != original.Stats {
		t.Errorf("Stats = %+v, want %+v", decoded.Stats, original.Stats)
	}
	if !decoded.CreatedAt.Equal(original.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", decoded.CreatedAt, original.CreatedAt)
	}
}

// TestEmptyDuplicateListSerializesAsArray verifies zero-match URLs are present, not omitted
func TestEmptyDuplicateListSerializesAsArray(t *testing.T) {
	jsonBytes, err := json.Marshal(sampleReport())
	if err != nil {
		t.Fatalf("Failed to marshal report: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &raw); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}

	dups, ok := raw["duplicate_paragraphs"].(map[string]interface{})
	if !ok {
		t.Fatal("duplicate_paragraphs missing from JSON")
	}
	list, exists := dups["https://example.com/b/3.html"]
	if !exists {
		t.Fatal("URL without duplicates should still be present")
	}
	if arr, ok := list.([]interface{}); !ok || len(arr) != 0 {
		t.Errorf("Expected empty array for URL without duplicates, got %v", list)
	}
}

func TestDuplicatesNeverNil(t *testing.T) {
	r := &DuplicateRateReport{}
	if got := r.Duplicates("https://missing.example"); got == nil {
		t.Error("Duplicates should return an empty slice for unknown URLs")
	}
	if got := r.Rate("https://missing.example"); got != 0 {
		t.Errorf("Rate for unknown URL = %v, want 0", got)
	}
}

func TestHighDuplicateURLs(t *testing.T) {
	got := sampleReport().HighDuplicateURLs()
	want := []string{"https://example.com/a/1.html", "https://example.com/a/2.html"}
	if len(got) != len(want) {
		t.Fatalf("HighDuplicateURLs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("HighDuplicateURLs()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
