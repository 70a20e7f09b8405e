// Package urls reads the URL list of an audit batch from text lists or feeds.
package urls

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/mmcdole/gofeed"
)

// ReadList parses a newline-delimited URL list. Blank lines and lines starting
// with '#' are skipped; surrounding whitespace is trimmed.
func ReadList(r io.Reader) ([]string, error) {
	var list []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		list = append(list, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return list, nil
}

// ReadFile reads a URL list from path
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open URL list: %w", err)
	}
	defer f.Close()
	return ReadList(f)
}

// FromFeed returns the item links of an RSS or Atom feed in feed order.
// A nil client uses http.DefaultClient.
func FromFeed(ctx context.Context, client *http.Client, feedURL string) ([]string, error) {
	parser := gofeed.NewParser()
	if client != nil {
		parser.Client = client
	}

	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", feedURL, err)
	}

	links := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" && len(item.Links) > 0 {
			link = strings.TrimSpace(item.Links[0])
		}
		if link != "" {
			links = append(links, link)
		}
	}
	return links, nil
}

// Dedupe drops repeated entries, keeping the first occurrence
func Dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, u := range list {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// Validate checks that every entry is an absolute http(s) URL
func Validate(list []string) error {
	for _, raw := range list {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid URL %q: %w", raw, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid URL %q: must be an absolute http or https address", raw)
		}
	}
	return nil
}
