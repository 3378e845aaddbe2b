package service

import (
	"fmt"
	"time"
)

// dateOnly truncates a timestamp to its UTC calendar day. Scheduled dates
// are stored and compared at day granularity.
func dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func formatAmount(amount int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", currency, amount/100, amount%100)
}
