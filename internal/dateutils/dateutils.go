// Package dateutils provides date parsing for bank CSV exports.
package dateutils

import (
	"fmt"
	"strings"
	"time"
)

// DateLayoutISO is the canonical layout used in the ledger file.
const DateLayoutISO = "2006-01-02"

// Formats lists the layouts tried when parsing CSV dates, ordered by
// observed frequency across bank exports. ISO first, then US, then European.
var Formats = []string{
	DateLayoutISO,
	"1/2/2006",
	"01/02/2006",
	"2.1.2006",
	"02.01.2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// Parse attempts each known layout in order and returns the first success.
func Parse(value string) (time.Time, error) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range Formats {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", value)
}

// IsDate reports whether the value parses with any known layout.
func IsDate(value string) bool {
	_, err := Parse(value)
	return err == nil
}
