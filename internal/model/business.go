// Package model defines the core data types shared across the segmentation pipeline.
package model

import "strings"

// BusinessModel describes who the business sells to.
type BusinessModel string

const (
	BusinessModelB2B  BusinessModel = "b2b"
	BusinessModelB2C  BusinessModel = "b2c"
	BusinessModelBoth BusinessModel = "both"
)

// ParseBusinessModel normalizes free-form input ("B2B", "b2c", "Both") into a
// BusinessModel. Unrecognized values default to both.
func ParseBusinessModel(s string) BusinessModel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "b2b":
		return BusinessModelB2B
	case "b2c":
		return BusinessModelB2C
	default:
		return BusinessModelBoth
	}
}

// BusinessInput is the structured questionnaire output that seeds a pipeline run.
type BusinessInput struct {
	CompanyName       string        `json:"company_name"`
	Industry          string        `json:"industry"`
	BusinessModel     BusinessModel `json:"business_model"`
	Description       string        `json:"description"`
	TargetDescription string        `json:"target_description,omitempty"`
	Geography         string        `json:"geography,omitempty"`
	KnownCompetitors  []string      `json:"known_competitors,omitempty"`
}

// Sufficient reports whether the input carries enough signal for targeted
// query generation. Insufficient input degrades to generic templates rather
// than failing the run.
func (b BusinessInput) Sufficient() bool {
	return strings.TrimSpace(b.Industry) != ""
}

// DocumentContext is pre-extracted text and basic statistics from
// user-supplied files, treated as a Tier 2 equivalent pseudo-source.
type DocumentContext struct {
	Summary    string   `json:"summary"`
	Text       string   `json:"text"`
	Keywords   []string `json:"keywords,omitempty"`
	FileCount  int      `json:"file_count"`
	DataPoints int      `json:"data_points"`
}
