// Package document extracts text and basic statistics from user-supplied
// files (CSV, XLSX, plain text, markdown) into a DocumentContext pseudo-source
// for the pipeline.
package document

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/segment-cli/internal/model"
)

// MaxTextChars caps the combined extracted text so one giant upload cannot
// blow the context budget downstream.
const MaxTextChars = 100_000

const maxKeywords = 15

// Extract reads every supported file and folds them into one DocumentContext.
// Unsupported extensions are an error; unreadable files are not silently
// skipped because the user explicitly supplied them.
func Extract(paths []string) (*model.DocumentContext, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	var parts []string
	dataPoints := 0
	for _, path := range paths {
		text, points, err := extractOne(path)
		if err != nil {
			return nil, err
		}
		parts = append(parts, fmt.Sprintf("--- %s ---\n%s", filepath.Base(path), text))
		dataPoints += points
	}

	combined := strings.Join(parts, "\n\n")
	if len(combined) > MaxTextChars {
		combined = combined[:MaxTextChars]
	}

	doc := &model.DocumentContext{
		Summary:    summarize(combined),
		Text:       combined,
		Keywords:   topKeywords(combined, maxKeywords),
		FileCount:  len(paths),
		DataPoints: dataPoints,
	}

	zap.L().Info("documents extracted",
		zap.Int("files", doc.FileCount),
		zap.Int("data_points", doc.DataPoints),
		zap.Int("chars", len(doc.Text)),
	)
	return doc, nil
}

func extractOne(path string) (string, int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return extractCSV(path)
	case ".xlsx":
		return extractXLSX(path)
	case ".txt", ".md", ".markdown":
		return extractText(path)
	default:
		return "", 0, eris.Errorf("document: unsupported file type %s", filepath.Ext(path))
	}
}

func extractCSV(path string) (string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, eris.Wrapf(err, "document: open %s", path)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return "", 0, eris.Wrapf(err, "document: parse csv %s", path)
	}
	return renderRows(rows)
}

func extractXLSX(path string) (string, int, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return "", 0, eris.Wrapf(err, "document: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return "", 0, nil
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		var cells []string
		for _, cell := range row.Cells {
			cells = append(cells, cell.String())
		}
		rows = append(rows, cells)
	}
	return renderRows(rows)
}

func extractText(path string) (string, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, eris.Wrapf(err, "document: read %s", path)
	}
	text := string(data)
	return text, countNumbers(strings.Fields(text)), nil
}

// renderRows flattens tabular data into pipe-separated lines and counts the
// numeric cells as data points.
func renderRows(rows [][]string) (string, int, error) {
	var sb strings.Builder
	points := 0
	for _, row := range rows {
		sb.WriteString(strings.Join(row, " | "))
		sb.WriteByte('\n')
		points += countNumbers(row)
	}
	return sb.String(), points, nil
}

func countNumbers(fields []string) int {
	n := 0
	for _, f := range fields {
		f = strings.Trim(f, "$%,()")
		f = strings.ReplaceAll(f, ",", "")
		if f == "" {
			continue
		}
		if _, err := strconv.ParseFloat(f, 64); err == nil {
			n++
		}
	}
	return n
}

// summarize keeps the leading slice of the text as a cheap abstract.
func summarize(text string) string {
	const limit = 500
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if idx := strings.LastIndexByte(cut, ' '); idx > limit/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}

// topKeywords returns the most frequent meaningful words, lowercased, ties
// broken alphabetically for determinism.
func topKeywords(text string, limit int) []string {
	counts := make(map[string]int)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()[]|-")
		if len(word) < 4 || keywordStopWords[word] {
			continue
		}
		if _, err := strconv.ParseFloat(word, 64); err == nil {
			continue
		}
		counts[word]++
	}

	type wc struct {
		word  string
		count int
	}
	ranked := make([]wc, 0, len(counts))
	for w, c := range counts {
		ranked = append(ranked, wc{w, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.word
	}
	return out
}

var keywordStopWords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"will": true, "been": true, "were": true, "their": true, "there": true,
	"which": true, "about": true, "would": true, "could": true, "should": true,
	"these": true, "those": true, "other": true, "more": true, "most": true,
	"than": true, "then": true, "them": true, "they": true, "when": true,
	"what": true, "your": true, "into": true, "over": true, "also": true,
}
