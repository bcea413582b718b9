package billing

import "time"

// =============================================================================
// BILLING PERIOD - Month label derived from the latest reading
// =============================================================================

const periodLayout = "2006-01"

// PeriodLabel returns the billing period a reading belongs to.
// Exactly one bill may exist per (account, period) pair.
func PeriodLabel(t time.Time) string {
	return t.UTC().Format(periodLayout)
}

// ParsePeriod parses a period label back into the first day of the month.
func ParsePeriod(label string) (time.Time, error) {
	return time.Parse(periodLayout, label)
}

// DueDate computes the payment deadline from the bill date.
func DueDate(billDate time.Time, graceDays int) time.Time {
	return billDate.AddDate(0, 0, graceDays)
}
