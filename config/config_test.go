package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	s := Default()

	require.NoError(t, s.Validate())
	assert.Equal(t, 15, s.RequestTimeoutSeconds)
	assert.Equal(t, 4, s.MaxConcurrentFetches)
	assert.Equal(t, 0.65, s.DuplicateSimilarityThreshold)
	assert.Equal(t, 15.0, s.HighDuplicateRateThresholdPercent)
	assert.Equal(t, 30, s.MinimumParagraphLength)
	assert.Contains(t, s.BoilerplateExclusionSubstrings, "免责声明")
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.yaml")
	content := `
duplicate_similarity_threshold: 0.8
boilerplate_exclusion_substrings:
  - "本文来源"
  - "责任编辑"
tokenizer: word
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.8, s.DuplicateSimilarityThreshold)
	assert.Equal(t, []string{"本文来源", "责任编辑"}, s.BoilerplateExclusionSubstrings)
	assert.Equal(t, TokenizerWord, s.Tokenizer)
	assert.Equal(t, 4, s.MaxConcurrentFetches)
	assert.Equal(t, 15, s.RequestTimeoutSeconds)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_concurrent_fetches: [not, a, number]"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SEO_REQUEST_TIMEOUT_SECONDS":          "30",
		"SEO_MAX_CONCURRENT_FETCHES":           "8",
		"SEO_DUPLICATE_SIMILARITY_THRESHOLD":   "0.9",
		"SEO_REQUESTS_PER_SECOND":              "2.5",
		"SEO_BOILERPLATE_EXCLUSION_SUBSTRINGS": "广告 | 赞助|",
		"SEO_TOKENIZER":                        "WORD",
		"SEO_MAX_BODY_BYTES":                   "2048",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	s := Default()
	require.NoError(t, s.ApplyEnv(lookup))

	assert.Equal(t, 30, s.RequestTimeoutSeconds)
	assert.Equal(t, 8, s.MaxConcurrentFetches)
	assert.Equal(t, 0.9, s.DuplicateSimilarityThreshold)
	assert.Equal(t, 2.5, s.RequestsPerSecond)
	assert.Equal(t, []string{"广告", "赞助"}, s.BoilerplateExclusionSubstrings)
	assert.Equal(t, TokenizerWord, s.Tokenizer)
	assert.Equal(t, int64(2048), s.MaxBodyBytes)
	assert.Equal(t, 15.0, s.HighDuplicateRateThresholdPercent)
}

func TestApplyEnvInvalid(t *testing.T) {
	s := Default()
	err := s.ApplyEnv(func(k string) (string, bool) {
		if k == "SEO_MAX_CONCURRENT_FETCHES" {
			return "many", true
		}
		return "", false
	})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
	}{
		{"zero timeout", func(s *Settings) { s.RequestTimeoutSeconds = 0 }},
		{"zero workers", func(s *Settings) { s.MaxConcurrentFetches = 0 }},
		{"threshold zero", func(s *Settings) { s.DuplicateSimilarityThreshold = 0 }},
		{"threshold above one", func(s *Settings) { s.DuplicateSimilarityThreshold = 1.1 }},
		{"rate above hundred", func(s *Settings) { s.HighDuplicateRateThresholdPercent = 101 }},
		{"negative length", func(s *Settings) { s.MinimumParagraphLength = -1 }},
		{"negative rps", func(s *Settings) { s.RequestsPerSecond = -1 }},
		{"zero body", func(s *Settings) { s.MaxBodyBytes = 0 }},
		{"unknown tokenizer", func(s *Settings) { s.Tokenizer = "bigram" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.modify(&s)
			assert.Error(t, s.Validate())
		})
	}

	s := Default()
	s.DuplicateSimilarityThreshold = 1
	assert.NoError(t, s.Validate())
}

func TestDerivedConfigs(t *testing.T) {
	s := Default()
	s.RequestTimeoutSeconds = 20
	s.MinimumParagraphLength = 10
	s.MaxConcurrentFetches = 6
	s.CacheTTLMinutes = 90

	sc := s.ScraperConfig()
	assert.Equal(t, 20*time.Second, sc.HTTPTimeout)
	assert.Equal(t, 10, sc.Extract.MinParagraphLength)
	assert.Equal(t, s.ContentSelectors, sc.Extract.ContentSelectors)

	ac := s.AnalyzerConfig()
	assert.Equal(t, 6, ac.Workers)
	assert.Equal(t, 0.65, ac.Detection.SimilarityThreshold)
	assert.Equal(t, 15.0, ac.Detection.HighDuplicateThreshold)
	assert.Equal(t, sc.Extract.Fingerprint(), ac.CacheScope)

	assert.Equal(t, 90*time.Minute, s.CacheTTL())
}

func TestCacheScopeFollowsExtractionSettings(t *testing.T) {
	s := Default()
	base := s.AnalyzerConfig().CacheScope

	s.MaxConcurrentFetches = 9
	s.DuplicateSimilarityThreshold = 0.8
	assert.Equal(t, base, s.AnalyzerConfig().CacheScope)

	s.BoilerplateExclusionSubstrings = append(s.BoilerplateExclusionSubstrings, "相关阅读")
	assert.NotEqual(t, base, s.AnalyzerConfig().CacheScope)

	s = Default()
	s.MinimumParagraphLength = 10
	assert.NotEqual(t, base, s.AnalyzerConfig().CacheScope)
}

func TestNewTokenizerWord(t *testing.T) {
	s := Default()
	s.Tokenizer = TokenizerWord

	tok, err := s.NewTokenizer()
	require.NoError(t, err)
	assert.Equal(t, []string{"duplicate", "content"}, tok.Tokenize("Duplicate content"))
}
