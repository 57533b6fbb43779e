// Package fingerprint reads the JSON report produced by an external
// web-technology fingerprinting crawler. Only the detected-technology
// entries are extracted; the rest of the report is ignored.
package fingerprint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrNoTechnologies indicates the report is valid JSON but does not carry the
// expected top-level technologies field.
var ErrNoTechnologies = errors.New("report has no technologies field")

// Category tags a technology, e.g. "javascript-libraries" or "CMS".
// Fingerprinting tools emit categories either as objects with a slug or as
// plain strings; both forms are accepted.
type Category struct {
	ID   int    `json:"id,omitempty"`
	Slug string `json:"slug"`
	Name string `json:"name,omitempty"`
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Slug = s
		return nil
	}

	type category Category
	var obj category
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*c = Category(obj)
	return nil
}

// Technology is one detected-technology entry from the fingerprinting report.
type Technology struct {
	Name       string     `json:"name"`
	Version    string     `json:"version"`
	Confidence int        `json:"confidence"`
	Categories []Category `json:"categories"`
}

// HasCategory reports whether any of the technology's category slugs equals slug.
func (t Technology) HasCategory(slug string) bool {
	for _, c := range t.Categories {
		if c.Slug == slug {
			return true
		}
	}
	return false
}

// Report is the subset of the fingerprinting output this tool consumes.
type Report struct {
	Technologies []Technology `json:"technologies"`
}

// Load reads and parses a fingerprinting report from path. It fails when the
// file is missing or unreadable, when the content is not valid JSON, or when
// the top-level technologies field is absent.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}

	// An empty technologies array unmarshals to a non-nil slice, so nil
	// means the field was missing entirely.
	if rep.Technologies == nil {
		return nil, ErrNoTechnologies
	}

	return &rep, nil
}
