package jm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PhotoDetail is the parsed album metadata.
type PhotoDetail struct {
	ID          string
	Title       string
	Description string
	Tags        []string
	Authors     []string
	ChapterIDs  []string
	Views       string
}

// SearchResult is one row of a site search page.
type SearchResult struct {
	ID    string
	Title string
}

var idDigits = regexp.MustCompile(`\d+`)

// NormalizeID strips a JM/jm prefix and extracts the numeric album id.
// Returns "" when the input carries no digits.
func NormalizeID(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "JM"), "jm")
	return idDigits.FindString(s)
}

func parsePhotoDetail(data map[string]any) *PhotoDetail {
	detail := &PhotoDetail{
		ID:          NormalizeID(anyToString(data["id"])),
		Title:       strings.TrimSpace(anyToString(data["name"])),
		Description: strings.TrimSpace(anyToString(data["description"])),
		Tags:        anyToStringSlice(data["tags"]),
		Views:       anyToString(data["total_views"]),
	}
	detail.Authors = anyToStringSlice(data["author"])
	if len(detail.Authors) == 0 {
		detail.Authors = anyToStringSlice(data["authors"])
	}
	if series, ok := data["series"].([]any); ok {
		for _, item := range series {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if id := NormalizeID(anyToString(m["id"])); id != "" {
				detail.ChapterIDs = append(detail.ChapterIDs, id)
			}
		}
	}
	// A single-chapter album has an empty series list; the album id is
	// the chapter id then.
	if len(detail.ChapterIDs) == 0 && detail.ID != "" {
		detail.ChapterIDs = []string{detail.ID}
	}
	return detail
}

func parseSearchPage(data map[string]any) []SearchResult {
	// Searching an exact album id redirects instead of listing.
	if redirect := NormalizeID(anyToString(data["redirect_aid"])); redirect != "" {
		title := strings.TrimSpace(anyToString(data["name"]))
		return []SearchResult{{ID: redirect, Title: title}}
	}
	content, ok := data["content"].([]any)
	if !ok {
		return nil
	}
	out := make([]SearchResult, 0, len(content))
	for _, item := range content {
		row, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := NormalizeID(anyToString(row["id"]))
		if id == "" {
			continue
		}
		out = append(out, SearchResult{
			ID:    id,
			Title: strings.TrimSpace(anyToString(row["name"])),
		})
	}
	return out
}

func anyToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if float64(int64(t)) == t {
			return strconv.FormatInt(int64(t), 10)
		}
		return fmt.Sprintf("%v", t)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func anyToStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s := strings.TrimSpace(anyToString(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
