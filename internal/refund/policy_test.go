package refund

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPercentage_Tiers(t *testing.T) {
	cases := map[int]int{
		30: 100,
		7:  100,
		6:  75,
		5:  50,
		4:  25,
		3:  0,
		0:  0,
		-2: 0,
	}
	for days, want := range cases {
		assert.Equal(t, want, Percentage(days), "daysLeft=%d", days)
	}
}

func TestPercentage_NonIncreasing(t *testing.T) {
	prev := Percentage(60)
	for d := 59; d >= -5; d-- {
		p := Percentage(d)
		assert.LessOrEqual(t, p, prev, "daysLeft=%d", d)
		prev = p
	}
}

func TestDaysLeft_RoundsPartialDayUp(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 7, DaysLeft(now.Add(6*24*time.Hour+time.Millisecond), now))
	assert.Equal(t, 6, DaysLeft(now.Add(6*24*time.Hour), now))
	assert.Equal(t, 1, DaysLeft(now.Add(time.Minute), now))
	assert.Equal(t, 0, DaysLeft(now, now))
	assert.Equal(t, 0, DaysLeft(now.Add(-time.Hour), now))
	assert.Equal(t, -1, DaysLeft(now.Add(-25*time.Hour), now))
}

func TestAmount(t *testing.T) {
	assert.Equal(t, 7500.0, Amount(10000, 75))
	assert.Equal(t, 0.0, Amount(10000, 0))
	assert.Equal(t, 333.33, Amount(1333.33, 25))
	assert.Equal(t, 1999.99, Amount(1999.99, 100))
}

func TestCompute(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	checkIn := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)

	q := Compute(12000, checkIn, now)

	assert.Equal(t, 5, q.DaysLeft)
	assert.Equal(t, 50, q.Percentage)
	assert.Equal(t, 6000.0, q.Amount)
}
