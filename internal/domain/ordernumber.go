package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	orderNumberPrefix = "ORD-"
	orderDayLayout    = "20060102"
	orderSeqDigits    = 6
)

// OrderNumberPrefix is the prefix shared by every order number of day,
// e.g. "ORD-20250101-".
func OrderNumberPrefix(day time.Time) string {
	return orderNumberPrefix + day.Format(orderDayLayout) + "-"
}

// FormatOrderNumber renders ORD-YYYYMMDD-NNNNNN.
func FormatOrderNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s%0*d", OrderNumberPrefix(day), orderSeqDigits, seq)
}

// ParseOrderNumber splits an order number into its day and sequence.
func ParseOrderNumber(s string) (time.Time, int, error) {
	rest, ok := strings.CutPrefix(s, orderNumberPrefix)
	if !ok {
		return time.Time{}, 0, fmt.Errorf("order number %q: missing prefix", s)
	}
	dayPart, seqPart, ok := strings.Cut(rest, "-")
	if !ok || len(dayPart) != len(orderDayLayout) || len(seqPart) != orderSeqDigits {
		return time.Time{}, 0, fmt.Errorf("order number %q: malformed", s)
	}
	day, err := time.Parse(orderDayLayout, dayPart)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("order number %q: %w", s, err)
	}
	seq, err := strconv.Atoi(seqPart)
	if err != nil || seq < 0 {
		return time.Time{}, 0, fmt.Errorf("order number %q: bad sequence", s)
	}
	return day, seq, nil
}

// NextOrderSequence returns one past the highest sequence among existing
// numbers issued on day, or 1 when there are none. Numbers from other days
// and malformed values are ignored.
func NextOrderSequence(day time.Time, existing []string) int {
	prefix := OrderNumberPrefix(day)
	highest := 0
	for _, number := range existing {
		if !strings.HasPrefix(number, prefix) {
			continue
		}
		_, seq, err := ParseOrderNumber(number)
		if err != nil {
			continue
		}
		if seq > highest {
			highest = seq
		}
	}
	return highest + 1
}

// NextOrderNumber formats the number following existing for day.
func NextOrderNumber(day time.Time, existing []string) string {
	return FormatOrderNumber(day, NextOrderSequence(day, existing))
}
