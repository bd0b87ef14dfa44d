package domain

import (
	"fmt"
	"strings"
	"time"
)

// SourceID names one of the known filter-list sources.
type SourceID string

const (
	SourceGeneral SourceID = "general"
	SourcePrivacy SourceID = "privacy"
	SourceCustom  SourceID = "custom"
)

// ParseSourceID converts a string into a SourceID (case-insensitive).
func ParseSourceID(s string) (SourceID, error) {
	switch id := SourceID(strings.ToLower(strings.TrimSpace(s))); id {
	case SourceGeneral, SourcePrivacy, SourceCustom:
		return id, nil
	default:
		return "", fmt.Errorf("unsupported source: %q", s)
	}
}

// Source describes where a filter list comes from. Sources without a URL
// are local-only.
type Source struct {
	ID   SourceID `json:"id"`
	File string   `json:"file"`
	URL  string   `json:"url,omitempty"`
}

// IsRemote reports whether the source is refreshed over the network.
func (s Source) IsRemote() bool { return s.URL != "" }

// Validate checks required fields.
func (s Source) Validate() error {
	if _, err := ParseSourceID(string(s.ID)); err != nil {
		return err
	}
	if strings.TrimSpace(s.File) == "" {
		return fmt.Errorf("source %s: file must not be empty", s.ID)
	}
	return nil
}

// SourceMeta records fetch state for a source across restarts.
type SourceMeta struct {
	ETag                string    `json:"etag,omitempty"`
	LastModified        string    `json:"last_modified,omitempty"`
	LastAttempt         time.Time `json:"last_attempt"`
	LastSuccess         time.Time `json:"last_success"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	Lines               int       `json:"lines"`
}

// Stale reports whether the last successful fetch is older than interval as
// of now. A source that never succeeded is stale.
func (m SourceMeta) Stale(now time.Time, interval time.Duration) bool {
	if m.LastSuccess.IsZero() {
		return true
	}
	return now.Sub(m.LastSuccess) >= interval
}

// SourceStatus is a reporting view combining a source and its metadata.
type SourceStatus struct {
	Source
	Meta SourceMeta `json:"meta"`
}
