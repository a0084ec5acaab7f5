// Package parser extracts entry names from auto-generated HTML directory
// index pages.
package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Parser turns a directory index page into child entry names. Directory
// entries keep their trailing slash.
type Parser interface {
	Entries(body []byte) ([]string, error)
}

// New returns the goquery-backed parser.
func New() Parser {
	return indexParser{}
}

type indexParser struct{}

func (indexParser) Entries(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}

	var entries []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if name, ok := EntryName(href); ok {
			entries = append(entries, name)
		}
	})
	return entries, nil
}

// EntryName reduces an index href to the child name it points at. Parent
// links, sort links and links outside the listed directory are rejected.
func EntryName(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "?") || strings.HasPrefix(href, "#") {
		return "", false
	}

	u, err := url.Parse(href)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}

	p := u.Path
	if p == "" || p == "/" || p == "../" || p == ".." || strings.HasPrefix(p, "../") {
		return "", false
	}

	dir := strings.HasSuffix(p, "/")
	name := path.Base(strings.TrimSuffix(p, "/"))
	if name == "." || name == ".." || name == "/" || name == "" {
		return "", false
	}
	if dir {
		name += "/"
	}
	return name, true
}

var dateRe = regexp.MustCompile(`^\d{8}$`)

// IsDate reports whether s looks like a YYYYMMDD directory name.
func IsDate(s string) bool {
	return dateRe.MatchString(s)
}

// FilterDates keeps directory entries named like dates, without the trailing
// slash, deduplicated in the order encountered.
func FilterDates(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !strings.HasSuffix(entry, "/") {
			continue
		}
		name := strings.TrimSuffix(entry, "/")
		if !IsDate(name) {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// FilterFiles keeps file entries ending in ext (case-insensitive),
// deduplicated in the order encountered.
func FilterFiles(entries []string, ext string) []string {
	ext = strings.ToLower(ext)
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasSuffix(entry, "/") || !strings.HasSuffix(strings.ToLower(entry), ext) {
			continue
		}
		if _, ok := seen[entry]; ok {
			continue
		}
		seen[entry] = struct{}{}
		out = append(out, entry)
	}
	return out
}
