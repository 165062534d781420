// Package csvparse reads bank CSV exports with unknown schemas. It detects
// the encoding and delimiter, then yields the header list plus every row as
// an ordered header-to-cell mapping for downstream column detection.
package csvparse

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"fjacquet/csv-hledger/internal/errs"

	"github.com/sirupsen/logrus"
)

// SampleRowCount is how many leading rows are exposed for column detection.
const SampleRowCount = 10

var log = logrus.New()

// SetLogger sets a custom logger for this package.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// Row is one CSV data row keyed by header name. Cell order follows the
// header order of the parse result that produced it.
type Row struct {
	Line  int
	Cells map[string]string
}

// Get returns the trimmed cell value for a header, or "" when absent.
func (r Row) Get(header string) string {
	return strings.TrimSpace(r.Cells[header])
}

// ParseResult holds everything extracted from one CSV file.
type ParseResult struct {
	Headers           []string
	Rows              []Row
	SampleRows        []Row
	TotalRowCount     int
	DetectedDelimiter string
	DetectedEncoding  string
	Errors            []*errs.ParseError
}

// Parse reads the full CSV stream. Malformed lines are recorded as parse
// errors and skipped; they never abort the file.
func Parse(r io.Reader, fileName string) (*ParseResult, error) {
	log.WithField("file", fileName).Info("Parsing CSV file")

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading CSV input: %w", err)
	}

	encoding := "UTF-8"
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		encoding = "UTF-8 with BOM"
		data = data[3:]
	}

	delimiter := detectDelimiter(data)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("CSV file has no headers: %w", err)
	}
	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = strings.TrimSpace(h)
	}

	result := &ParseResult{
		Headers:           headers,
		DetectedDelimiter: delimiterName(delimiter),
		DetectedEncoding:  encoding,
	}

	line := 1
	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, &errs.ParseError{
				Line:    line,
				Message: err.Error(),
			})
			continue
		}

		if len(record) < len(headers) {
			result.Errors = append(result.Errors, &errs.ParseError{
				Line:    line,
				Message: fmt.Sprintf("expected %d fields, got %d", len(headers), len(record)),
			})
			continue
		}

		cells := make(map[string]string, len(headers))
		for i, h := range headers {
			cells[h] = record[i]
		}
		result.Rows = append(result.Rows, Row{Line: line, Cells: cells})
	}

	result.TotalRowCount = len(result.Rows)
	if len(result.Rows) > SampleRowCount {
		result.SampleRows = result.Rows[:SampleRowCount]
	} else {
		result.SampleRows = result.Rows
	}

	log.WithFields(logrus.Fields{
		"file":      fileName,
		"rows":      result.TotalRowCount,
		"headers":   len(headers),
		"errors":    len(result.Errors),
		"delimiter": result.DetectedDelimiter,
	}).Info("CSV parse completed")

	return result, nil
}

// detectDelimiter counts candidate delimiters over the first few non-blank
// lines and keeps the one with the highest consistent count.
func detectDelimiter(data []byte) rune {
	var lines []string
	for _, l := range strings.SplitN(string(data), "\n", 7) {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
		if len(lines) == 5 {
			break
		}
	}
	if len(lines) == 0 {
		return ','
	}

	best := ','
	bestCount := 0
	for _, candidate := range []rune{',', ';', '\t'} {
		count := strings.Count(lines[0], string(candidate))
		if count == 0 {
			continue
		}
		consistent := true
		for _, l := range lines[1:] {
			if strings.Count(l, string(candidate)) != count {
				consistent = false
				break
			}
		}
		if consistent && count > bestCount {
			best = candidate
			bestCount = count
		}
	}
	return best
}

func delimiterName(delimiter rune) string {
	switch delimiter {
	case ',':
		return "Comma"
	case ';':
		return "Semicolon"
	case '\t':
		return "Tab"
	default:
		return string(delimiter)
	}
}
