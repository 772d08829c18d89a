// Package refund computes how much of a booking is returned when the guest cancels.
package refund

import (
	"math"
	"time"
)

const millisPerDay = 86400000

// DaysLeft counts whole days until reference, rounding any partial day up.
// Zero or negative once the reference has passed.
func DaysLeft(reference, now time.Time) int {
	ms := reference.Sub(now).Milliseconds()
	return int(math.Ceil(float64(ms) / millisPerDay))
}

// Percentage maps days left before the booked date to the refundable share.
func Percentage(daysLeft int) int {
	switch {
	case daysLeft >= 7:
		return 100
	case daysLeft == 6:
		return 75
	case daysLeft == 5:
		return 50
	case daysLeft == 4:
		return 25
	default:
		return 0
	}
}

// Amount returns percentage of total, rounded to 2 decimals.
func Amount(total float64, percentage int) float64 {
	return math.Round(total*float64(percentage)) / 100
}

type Quote struct {
	DaysLeft   int
	Percentage int
	Amount     float64
}

func Compute(total float64, reference, now time.Time) Quote {
	days := DaysLeft(reference, now)
	pct := Percentage(days)
	return Quote{DaysLeft: days, Percentage: pct, Amount: Amount(total, pct)}
}
