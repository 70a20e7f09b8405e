package models

import "time"

// PageRecord is the per-URL outcome of the fetch and extract phase
type PageRecord struct {
	URL             string   `json:"url"`
	Success         bool     `json:"success"`
	Paragraphs      []string `json:"paragraphs"`
	TotalParagraphs int      `json:"total_paragraphs"`
	Error           string   `json:"error,omitempty"` // Reason when Success is false
	Directory       string   `json:"directory"`       // host/path-prefix the page belongs to
	PublishDate     string   `json:"publish_date,omitempty"`
	Encoding        string   `json:"encoding,omitempty"` // Charset the body was decoded with
	Cached          bool     `json:"cached"`             // Served from the page cache instead of the network
}

// DuplicateRecord describes one paragraph of OwningURL that is similar to a paragraph of SimilarToURL
type DuplicateRecord struct {
	OwningURL        string  `json:"owning_url"`
	ParagraphIndex   int     `json:"paragraph_index"` // Position of the paragraph inside the owning page
	ParagraphExcerpt string  `json:"paragraph"`
	SimilarToURL     string  `json:"similar_to"`
	SimilarityScore  float64 `json:"similarity"` // 0-100, two decimals
}

// Summary holds corpus-wide statistics for one batch
type Summary struct {
	TotalURLs              int     `json:"total_urls"`
	SuccessfulURLs         int     `json:"successful_urls"`
	TotalParagraphs        int     `json:"total_paragraphs"`
	HighDuplicateCount     int     `json:"high_duplicate_count"`
	AverageDuplicateRate   float64 `json:"avg_duplicate_rate"`
	Threshold              float64 `json:"threshold"`            // High-duplicate rate threshold (percent)
	SimilarityThreshold    float64 `json:"similarity_threshold"` // Cosine floor used for pairs
	SimilarityPhaseSkipped bool    `json:"similarity_phase_skipped"`
	SkipReason             string  `json:"skip_reason,omitempty"`
}

// DirectorySummary rolls up duplicate rates for all URLs sharing a directory
type DirectorySummary struct {
	Directory            string  `json:"directory"`
	URLCount             int     `json:"url_count"`
	HighDuplicateCount   int     `json:"high_duplicate_count"`
	AverageDuplicateRate float64 `json:"avg_duplicate_rate"`
}

// DuplicateRateReport is the complete output of one duplicate-content batch
type DuplicateRateReport struct {
	ID                  string                       `json:"id"`
	CreatedAt           time.Time                    `json:"created_at"`
	ProcessingTime      float64                      `json:"processing_time_seconds"`
	URLs                []string                     `json:"urls"` // Input order
	Pages               map[string]PageRecord        `json:"pages"`
	DuplicateRates      map[string]float64           `json:"duplicate_rates"`
	DuplicateParagraphs map[string][]DuplicateRecord `json:"duplicate_paragraphs"`
	Directories         []DirectorySummary           `json:"directories"`
	Stats               Summary                      `json:"stats"`
}

// Rate returns the duplicate rate for url, 0.0 when the URL is not part of the report
func (r *DuplicateRateReport) Rate(url string) float64 {
	return r.DuplicateRates[url]
}

// Duplicates returns the duplicate records attributed to url, never nil
func (r *DuplicateRateReport) Duplicates(url string) []DuplicateRecord {
	if recs, ok := r.DuplicateParagraphs[url]; ok && recs != nil {
		return recs
	}
	return []DuplicateRecord{}
}

// HighDuplicateURLs returns URLs whose rate meets the report threshold, in input order
func (r *DuplicateRateReport) HighDuplicateURLs() []string {
	flagged := []string{}
	for _, u := range r.URLs {
		if r.DuplicateRates[u] >= r.Stats.Threshold {
			flagged = append(flagged, u)
		}
	}
	return flagged
}

// AnalyzeRequest is the body of a batch analysis request
type AnalyzeRequest struct {
	URLs       []string            `json:"urls"`
	FeedURL    string              `json:"feed_url,omitempty"`   // Optional RSS/Atom feed to seed URLs from
	Paragraphs map[string][]string `json:"paragraphs,omitempty"` // Optional pre-fetched paragraph sets keyed by URL
}

// ReportListItem is a lightweight view of a stored report
type ReportListItem struct {
	ID                   string    `json:"id"`
	CreatedAt            time.Time `json:"created_at"`
	TotalURLs            int       `json:"total_urls"`
	HighDuplicateCount   int       `json:"high_duplicate_count"`
	AverageDuplicateRate float64   `json:"avg_duplicate_rate"`
}

// URLHistoryEntry is one historical duplicate rate observation for a URL
type URLHistoryEntry struct {
	ReportID        string    `json:"report_id"`
	URL             string    `json:"url"`
	Success         bool      `json:"success"`
	TotalParagraphs int       `json:"total_paragraphs"`
	DuplicateRate   float64   `json:"duplicate_rate"`
	CreatedAt       time.Time `json:"created_at"`
}
