package workflow

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	poPrefix    = "PO-"
	poSeqDigits = 6
	poSeqMax    = 999999
)

// POYearPrefix is the common prefix of every order number issued in year.
func POYearPrefix(year int) string {
	return fmt.Sprintf("%s%d-", poPrefix, year)
}

// FormatPONumber renders PO-<year>-<6 digit seq>.
func FormatPONumber(year, seq int) string {
	return fmt.Sprintf("%s%0*d", POYearPrefix(year), poSeqDigits, seq)
}

// ParsePONumber splits an order number into its year and sequence.
func ParsePONumber(s string) (year, seq int, err error) {
	if !strings.HasPrefix(s, poPrefix) {
		return 0, 0, fmt.Errorf("po number %q: missing prefix", s)
	}
	parts := strings.Split(strings.TrimPrefix(s, poPrefix), "-")
	if len(parts) != 2 || len(parts[1]) != poSeqDigits {
		return 0, 0, fmt.Errorf("po number %q: malformed", s)
	}
	if year, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, fmt.Errorf("po number %q: bad year: %w", s, err)
	}
	if seq, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("po number %q: bad sequence: %w", s, err)
	}
	return year, seq, nil
}

// NextPOSequence returns the sequence after the highest of existing (numbers of year) and floor.
// Numbers from other years or that do not parse are ignored.
func NextPOSequence(year int, existing []string, floor int) (int, error) {
	max := floor
	for _, n := range existing {
		y, seq, err := ParsePONumber(n)
		if err != nil || y != year {
			continue
		}
		if seq > max {
			max = seq
		}
	}
	if max >= poSeqMax {
		return 0, fmt.Errorf("po sequence for %d exhausted", year)
	}
	return max + 1, nil
}
