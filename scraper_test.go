package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<meta name="publishdate" content="2024-05-01">
	<title>示例文章</title>
</head>
<body>
	<nav><p>首页 新闻 财经 科技 体育 娱乐 汽车 房产 教育 旅游 健康 时尚</p></nav>
	<div class="content">
		<p>近年来，随着数字经济的快速发展，越来越多的企业开始重视网站内容的原创性与质量。</p>
		<p>搜索引擎对重复内容的识别能力不断增强，大量雷同的段落会直接影响页面的收录与排名表现。</p>
		<p>太短的段落</p>
	</div>
</body>
</html>`

func TestNew(t *testing.T) {
	s := New(DefaultConfig())

	if s == nil {
		t.Fatal("Expected scraper to be non-nil")
	}
	if s.httpClient == nil {
		t.Fatal("Expected httpClient to be non-nil")
	}
	if s.httpClient.Timeout != 15*time.Second {
		t.Errorf("Expected default timeout 15s, got %v", s.httpClient.Timeout)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	s := New(Config{})

	if s.config.HTTPTimeout != DefaultConfig().HTTPTimeout {
		t.Errorf("Expected HTTPTimeout default, got %v", s.config.HTTPTimeout)
	}
	if s.config.MaxBodyBytes != DefaultConfig().MaxBodyBytes {
		t.Errorf("Expected MaxBodyBytes default, got %d", s.config.MaxBodyBytes)
	}
}

func TestFetchSendsBrowserHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("User-Agent"), "Mozilla") {
			t.Errorf("Expected browser User-Agent, got %q", r.Header.Get("User-Agent"))
		}
		if !strings.HasPrefix(r.Header.Get("Accept-Language"), "zh-CN") {
			t.Errorf("Expected zh-CN Accept-Language, got %q", r.Header.Get("Accept-Language"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	result := New(DefaultConfig()).Fetch(context.Background(), server.URL)
	if !result.OK() {
		t.Fatalf("Expected successful fetch, got failure: %s", result.Failure)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", result.StatusCode)
	}
	if result.Encoding != "utf-8" {
		t.Errorf("Expected utf-8 encoding, got %q", result.Encoding)
	}
	if !strings.Contains(result.HTML, "数字经济") {
		t.Error("Expected decoded HTML to contain article text")
	}
}

func TestFetchFailures(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte("late"))
	}))
	defer slow.Close()

	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer notFound.Close()

	serverError := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer serverError.Close()

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name       string
		url        string
		wantStatus int
		contains   string
	}{
		{name: "404 status", url: notFound.URL, wantStatus: http.StatusNotFound, contains: "404"},
		{name: "503 status", url: serverError.URL, wantStatus: http.StatusServiceUnavailable, contains: "503"},
		{name: "timeout", url: slow.URL, contains: "failed to fetch URL"},
		{name: "connection refused", url: closedURL, contains: "failed to fetch URL"},
		{name: "malformed url", url: "://bad", contains: "failed to create request"},
	}

	s := New(Config{HTTPTimeout: 100 * time.Millisecond})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.Fetch(context.Background(), tt.url)
			if result.OK() {
				t.Fatal("Expected fetch to fail")
			}
			if result.HTML != "" {
				t.Errorf("Expected empty HTML on failure, got %d bytes", len(result.HTML))
			}
			if tt.wantStatus != 0 && result.StatusCode != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, result.StatusCode)
			}
			if !strings.Contains(result.Failure, tt.contains) {
				t.Errorf("Expected failure to contain %q, got %q", tt.contains, result.Failure)
			}
		})
	}
}

func TestFetchLimitsBodySize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(strings.Repeat("a", 4096)))
	}))
	defer server.Close()

	result := New(Config{MaxBodyBytes: 100}).Fetch(context.Background(), server.URL)
	if !result.OK() {
		t.Fatalf("Expected successful fetch, got failure: %s", result.Failure)
	}
	if len(result.HTML) != 100 {
		t.Errorf("Expected body truncated to 100 bytes, got %d", len(result.HTML))
	}
}

func TestDecodeBody(t *testing.T) {
	text := strings.Repeat("搜索引擎优化需要持续产出高质量的原创内容，重复的段落会降低网站在搜索结果中的权重。", 20)
	gbkBody, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte("<html><body><p>" + text + "</p></body></html>"))
	if err != nil {
		t.Fatalf("Failed to encode GBK fixture: %v", err)
	}

	tests := []struct {
		name         string
		body         []byte
		contentType  string
		wantEncoding string
	}{
		{
			name:         "declared gbk is trusted",
			body:         gbkBody,
			contentType:  "text/html; charset=GBK",
			wantEncoding: "gbk",
		},
		{
			name:        "missing charset is detected",
			body:        gbkBody,
			contentType: "text/html",
		},
		{
			name:        "default latin-1 declaration is ignored",
			body:        gbkBody,
			contentType: "text/html; charset=ISO-8859-1",
		},
		{
			name:         "utf-8 passes through",
			body:         []byte("<html><body><p>" + text + "</p></body></html>"),
			contentType:  "text/html; charset=utf-8",
			wantEncoding: "utf-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, enc := DecodeBody(tt.body, tt.contentType)
			if !strings.Contains(decoded, "搜索引擎优化") {
				t.Errorf("Expected decoded text to contain Chinese content, encoding %q", enc)
			}
			if tt.wantEncoding != "" && enc != tt.wantEncoding {
				t.Errorf("Expected encoding %q, got %q", tt.wantEncoding, enc)
			}
		})
	}
}

func TestDeclaredCharset(t *testing.T) {
	tests := []struct {
		contentType string
		expected    string
	}{
		{"text/html; charset=GB2312", "gb2312"},
		{"text/html;charset=utf-8", "utf-8"},
		{"text/html", ""},
		{"", ""},
		{"not a media type;;", ""},
	}

	for _, tt := range tests {
		if got := declaredCharset(tt.contentType); got != tt.expected {
			t.Errorf("declaredCharset(%q) = %q, want %q", tt.contentType, got, tt.expected)
		}
	}
}

func TestAnalyze(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/news/2024/article.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articleHTML))
	})
	mux.HandleFunc("/news/empty.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><div class="content"><p>短</p></div></body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := New(DefaultConfig())
	host := strings.TrimPrefix(server.URL, "http://")

	t.Run("successful page", func(t *testing.T) {
		record := s.Analyze(context.Background(), server.URL+"/news/2024/article.html")
		if !record.Success {
			t.Fatalf("Expected success, got error %q", record.Error)
		}
		if record.TotalParagraphs != 2 || len(record.Paragraphs) != 2 {
			t.Errorf("Expected 2 paragraphs, got %d (%v)", record.TotalParagraphs, record.Paragraphs)
		}
		if record.PublishDate != "2024-05-01" {
			t.Errorf("Expected publish date 2024-05-01, got %q", record.PublishDate)
		}
		if record.Directory != host+"/news/2024" {
			t.Errorf("Expected directory %s/news/2024, got %q", host, record.Directory)
		}
		if record.Encoding != "utf-8" {
			t.Errorf("Expected utf-8 encoding, got %q", record.Encoding)
		}
	})

	t.Run("no valid paragraphs", func(t *testing.T) {
		record := s.Analyze(context.Background(), server.URL+"/news/empty.html")
		if record.Success {
			t.Fatal("Expected failure for page without valid paragraphs")
		}
		if record.Error != ReasonNoParagraphs {
			t.Errorf("Expected error %q, got %q", ReasonNoParagraphs, record.Error)
		}
		if record.Paragraphs == nil || record.TotalParagraphs != 0 {
			t.Errorf("Expected empty non-nil paragraphs, got %v", record.Paragraphs)
		}
	})

	t.Run("fetch failure", func(t *testing.T) {
		record := s.Analyze(context.Background(), server.URL+"/missing")
		if record.Success {
			t.Fatal("Expected failure for 404 page")
		}
		if !strings.HasPrefix(record.Error, ReasonFetchFailed) {
			t.Errorf("Expected error to start with %q, got %q", ReasonFetchFailed, record.Error)
		}
		if record.Paragraphs == nil {
			t.Error("Expected non-nil paragraphs on failure")
		}
	})
}

func TestAnalyzeDocumentUsesExtractOptions(t *testing.T) {
	config := DefaultConfig()
	config.Extract.MinParagraphLength = 3
	s := New(config)

	record := s.AnalyzeDocument("https://example.com/a.html", `<html><body><article><p>四个汉字</p></article></body></html>`)
	if !record.Success {
		t.Fatalf("Expected success with lowered length floor, got %q", record.Error)
	}
	if record.Paragraphs[0] != "四个汉字" {
		t.Errorf("Unexpected paragraph %q", record.Paragraphs[0])
	}
}
