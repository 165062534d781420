// Package detect scores CSV headers against field-type patterns and sample
// data to produce a column mapping without any user configuration.
package detect

import (
	"regexp"
	"sort"
	"strings"

	"fjacquet/csv-hledger/internal/csvparse"
	"fjacquet/csv-hledger/internal/dateutils"
	"fjacquet/csv-hledger/internal/models"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// SetLogger sets a custom logger for this package.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// DefaultThreshold is the minimum confidence for a field to count as detected.
const DefaultThreshold = 0.7

// Result is the outcome of one detection run.
type Result struct {
	Mapping                   models.ColumnMapping
	ConfidenceScores          map[string]float64
	Warnings                  []string
	AllRequiredFieldsDetected bool
}

// Engine performs heuristic column detection. Detection is deterministic:
// the same headers and sample rows always yield the same result.
type Engine struct {
	threshold float64
}

// NewEngine creates an Engine with the given detection threshold. A zero
// threshold falls back to DefaultThreshold.
func NewEngine(threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{threshold: threshold}
}

var amountPattern = regexp.MustCompile(`^[\($€£]?-?\d{1,3}([.,]\d{3})*[.,]?\d{0,2}\)?$`)

// Per-field header pattern tables. Exact matches use the weight table below;
// substring matches are discounted by 10%.
var columnPatterns = map[string][]string{
	models.FieldDate: {
		"date", "transaction date", "post date", "posting date", "effective date",
		"value date", "datum", "fecha", "trans date", "tran date",
	},
	models.FieldDescription: {
		"description", "payee", "merchant", "memo", "details", "transaction description",
		"beschreibung", "descripción", "vendor", "name", "trans description",
	},
	models.FieldAmount: {
		"amount", "transaction amount", "betrag", "monto", "value", "amt",
	},
	models.FieldDebit: {
		"debit", "withdrawal", "outflow", "payment", "withdrawals", "paid out", "expense",
	},
	models.FieldCredit: {
		"credit", "deposit", "inflow", "receipt", "deposits", "paid in", "income",
	},
	models.FieldBalance: {
		"balance", "running balance", "running bal", "running bal.", "available balance",
		"current balance", "saldo", "bal", "ending balance",
	},
}

var confidenceWeights = map[string]map[string]float64{
	models.FieldDate: {
		"date": 1.0, "transaction date": 0.95, "post date": 0.9, "datum": 0.85,
	},
	models.FieldDescription: {
		"description": 1.0, "payee": 0.95, "merchant": 0.9, "memo": 0.85,
	},
	models.FieldAmount: {
		"amount": 1.0, "transaction amount": 0.95, "betrag": 0.9,
	},
	models.FieldDebit: {
		"debit": 1.0, "withdrawal": 0.95, "outflow": 0.9,
	},
	models.FieldCredit: {
		"credit": 1.0, "deposit": 0.95, "inflow": 0.9,
	},
	models.FieldBalance: {
		"balance": 1.0, "running balance": 0.95, "saldo": 0.9,
	},
}

// DetectColumns maps headers to field types. It never returns an error: on an
// internal failure it returns an empty result with a manual-mapping warning so
// the caller always has a fallback path.
func (e *Engine) DetectColumns(headers []string, sampleRows []csvparse.Row) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Column detection failed")
			result = &Result{
				Mapping:          models.ColumnMapping{},
				ConfidenceScores: map[string]float64{},
				Warnings:         []string{"Column detection failed. Please map columns manually."},
			}
		}
	}()

	log.WithFields(logrus.Fields{
		"headers": len(headers),
		"samples": len(sampleRows),
	}).Debug("Starting column detection")

	result = &Result{
		Mapping:          models.ColumnMapping{},
		ConfidenceScores: map[string]float64{},
	}

	claimed := map[string]bool{}

	dateHeader, dateScore := e.bestCandidate(headers, sampleRows, models.FieldDate, claimed, validateDateColumn)
	addDetection(result, claimed, dateHeader, models.FieldDate, dateScore)

	amountHeader, amountScore := e.bestCandidate(headers, sampleRows, models.FieldAmount, claimed, validateAmountColumn)
	addDetection(result, claimed, amountHeader, models.FieldAmount, amountScore)

	descHeader, descScore := e.bestCandidate(headers, sampleRows, models.FieldDescription, claimed, validateTextColumn)
	if descHeader == "" {
		descHeader, descScore = fallbackDescription(headers, sampleRows, claimed)
	}
	addDetection(result, claimed, descHeader, models.FieldDescription, descScore)

	memoHeader, memoScore := e.bestCandidate(headers, sampleRows, models.FieldMemo, claimed, validateTextColumn)
	addDetection(result, claimed, memoHeader, models.FieldMemo, memoScore)

	// Split debit/credit columns stand in for a missing amount column; their
	// averaged score becomes the synthetic amount confidence.
	if amountHeader == "" {
		debitHeader, debitScore := e.bestCandidate(headers, sampleRows, models.FieldDebit, claimed, validateAmountColumn)
		addDetection(result, claimed, debitHeader, models.FieldDebit, debitScore)

		creditHeader, creditScore := e.bestCandidate(headers, sampleRows, models.FieldCredit, claimed, validateAmountColumn)
		addDetection(result, claimed, creditHeader, models.FieldCredit, creditScore)

		if debitHeader != "" || creditHeader != "" {
			result.ConfidenceScores[models.FieldAmount] = (debitScore + creditScore) / 2
		}
	}

	balanceHeader, balanceScore := e.bestCandidate(headers, sampleRows, models.FieldBalance, claimed, validateAmountColumn)
	addDetection(result, claimed, balanceHeader, models.FieldBalance, balanceScore)

	dateConfidence := result.ConfidenceScores[models.FieldDate]
	amountConfidence := result.ConfidenceScores[models.FieldAmount]

	if dateConfidence < e.threshold {
		result.Warnings = append(result.Warnings,
			"Date column not detected with sufficient confidence. Please verify column mapping.")
	}
	if amountConfidence < e.threshold {
		result.Warnings = append(result.Warnings,
			"Amount column not detected with sufficient confidence. Please verify column mapping.")
	}
	result.AllRequiredFieldsDetected = dateConfidence >= e.threshold && amountConfidence >= e.threshold

	log.WithFields(logrus.Fields{
		"detected":    len(result.Mapping),
		"allRequired": result.AllRequiredFieldsDetected,
	}).Debug("Column detection completed")

	return result
}

// bestCandidate scores every unclaimed header for a field type and returns
// the winner. Final score is the mean of header-name confidence and the
// fraction of sample cells that validate as the field type.
func (e *Engine) bestCandidate(
	headers []string,
	sampleRows []csvparse.Row,
	fieldType string,
	claimed map[string]bool,
	validate func(string, []csvparse.Row) float64,
) (string, float64) {
	patternField := fieldType
	if fieldType == models.FieldMemo {
		patternField = models.FieldDescription
	}

	best := ""
	bestScore := 0.0
	for _, header := range headers {
		if claimed[header] {
			continue
		}
		headerScore := headerConfidence(header, patternField)
		if headerScore == 0 {
			continue
		}
		score := (headerScore + validate(header, sampleRows)) / 2
		if score > bestScore {
			best = header
			bestScore = score
		}
	}
	return best, bestScore
}

func addDetection(result *Result, claimed map[string]bool, header, fieldType string, score float64) {
	if header == "" || score == 0 {
		return
	}
	result.Mapping[header] = fieldType
	result.ConfidenceScores[fieldType] = score
	claimed[header] = true
}

// headerConfidence scores a header name against the pattern table for a
// field type. Exact matches use the weight table; substring matches take the
// pattern weight discounted by 10%.
func headerConfidence(header, fieldType string) float64 {
	patterns, ok := columnPatterns[fieldType]
	if !ok {
		return 0
	}
	weights := confidenceWeights[fieldType]

	normalized := strings.ToLower(strings.TrimSpace(header))

	for _, pattern := range patterns {
		if normalized == pattern {
			if w, ok := weights[pattern]; ok {
				return w
			}
			return 1.0
		}
	}

	for _, pattern := range patterns {
		if strings.Contains(normalized, pattern) {
			weight := 0.8
			if w, ok := weights[pattern]; ok {
				weight = w
			}
			return weight * 0.9
		}
	}

	return 0
}

func validateDateColumn(header string, sampleRows []csvparse.Row) float64 {
	valid, total := 0, 0
	for _, row := range sampleRows {
		value := row.Get(header)
		if value == "" {
			continue
		}
		total++
		if dateutils.IsDate(value) {
			valid++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(valid) / float64(total)
}

func validateAmountColumn(header string, sampleRows []csvparse.Row) float64 {
	valid, total := 0, 0
	for _, row := range sampleRows {
		value := row.Get(header)
		if value == "" {
			continue
		}
		total++
		normalized := strings.NewReplacer("$", "", "€", "", "£", "").Replace(value)
		if amountPattern.MatchString(normalized) {
			valid++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(valid) / float64(total)
}

// validateTextColumn counts cells that look like free text: not an amount,
// not a date, longer than two characters.
func validateTextColumn(header string, sampleRows []csvparse.Row) float64 {
	text, total := 0, 0
	for _, row := range sampleRows {
		value := row.Get(header)
		if value == "" {
			continue
		}
		total++
		_, amountErr := models.ParseAmount(value)
		if amountErr != nil && !dateutils.IsDate(value) && len(value) > 2 {
			text++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(text) / float64(total)
}

// fallbackDescription picks the unclaimed column with the longest average
// cell length (over 5 chars) at a fixed reduced confidence, signalling a
// heuristic guess rather than a pattern match.
func fallbackDescription(headers []string, sampleRows []csvparse.Row, claimed map[string]bool) (string, float64) {
	type candidate struct {
		header    string
		avgLength float64
	}
	var candidates []candidate
	for _, header := range headers {
		if claimed[header] {
			continue
		}
		totalLength, count := 0, 0
		for _, row := range sampleRows {
			if value := row.Get(header); value != "" {
				totalLength += len(value)
				count++
			}
		}
		if count == 0 {
			continue
		}
		avg := float64(totalLength) / float64(count)
		if avg > 5 {
			candidates = append(candidates, candidate{header, avg})
		}
	}
	if len(candidates) == 0 {
		return "", 0
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].avgLength > candidates[j].avgLength
	})
	return candidates[0].header, 0.6
}
