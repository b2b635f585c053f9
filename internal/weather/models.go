package weather

import (
	"fmt"
	"strings"
)

// SubjectKind tells which provider endpoint serves a subject.
type SubjectKind string

const (
	SubjectRegion  SubjectKind = "region"
	SubjectCountry SubjectKind = "country"
)

// Separator closes every report block.
var Separator = strings.Repeat("=", 140) + "\n\n\n"

// Subject is one fetch target: a region code or a country code.
type Subject struct {
	Kind SubjectKind `json:"kind" validate:"oneof=region country"`
	Code string      `json:"code" validate:"required"`
}

// Key returns a canonical label for logs and run status.
func (s Subject) Key() string {
	return string(s.Kind) + ":" + s.Code
}

// Entry is one dated forecast line of a report.
type Entry struct {
	Date string `json:"date"`
	Text string `json:"text"`
}

// ReportRecord is the result of one successful fetch.
type ReportRecord struct {
	Kind SubjectKind `json:"kind"`
	// Label is the subject as echoed by the provider (region name or country abbreviation).
	Label       string  `json:"label"`
	GeneratedAt string  `json:"generatedAt"` // YYYY-MM-DD
	Entries     []Entry `json:"entries"`
}

// Header returns the first line of the record's block.
func (r ReportRecord) Header() string {
	if r.Kind == SubjectCountry {
		return fmt.Sprintf("* Métricas do país, abreviação: %s\n", r.Label)
	}
	return fmt.Sprintf("* Métricas da região %s\n", r.Label)
}

// Block renders the record as the text unit written to the report and relayed.
func (r ReportRecord) Block() string {
	var sb strings.Builder
	sb.WriteString(r.Header())
	for _, e := range r.Entries {
		fmt.Fprintf(&sb, "    - Data: %s\n    - %s\n\n", e.Date, e.Text)
	}
	sb.WriteString(Separator)
	return sb.String()
}

// SplitBlocks splits report content back into its blocks, newest first.
func SplitBlocks(content string) []string {
	var blocks []string
	for content != "" {
		i := strings.Index(content, Separator)
		if i < 0 {
			blocks = append(blocks, content)
			break
		}
		end := i + len(Separator)
		blocks = append(blocks, content[:end])
		content = content[end:]
	}
	return blocks
}
