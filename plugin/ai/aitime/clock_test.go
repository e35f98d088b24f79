package aitime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeOfDayOf(t *testing.T) {
	tests := []struct {
		hour int
		want TimeOfDay
	}{
		{hour: 0, want: Night},
		{hour: 4, want: Night},
		{hour: 5, want: Morning},
		{hour: 11, want: Morning},
		{hour: 12, want: Afternoon},
		{hour: 16, want: Afternoon},
		{hour: 17, want: Evening},
		{hour: 20, want: Evening},
		{hour: 21, want: Night},
		{hour: 23, want: Night},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TimeOfDayOf(tt.hour), "hour %d", tt.hour)
	}
}

func TestInHourWindow(t *testing.T) {
	t.Run("wrap-around window", func(t *testing.T) {
		assert.True(t, InHourWindow(23, 23, 7))
		assert.True(t, InHourWindow(2, 23, 7))
		assert.False(t, InHourWindow(7, 23, 7))
		assert.False(t, InHourWindow(14, 23, 7))
	})

	t.Run("same-day window", func(t *testing.T) {
		assert.True(t, InHourWindow(19, 18, 22))
		assert.False(t, InHourWindow(22, 18, 22))
	})

	t.Run("empty window", func(t *testing.T) {
		assert.False(t, InHourWindow(5, 5, 5))
	})
}

func TestDescribe(t *testing.T) {
	friday := time.Date(2026, 10, 16, 19, 30, 0, 0, time.UTC)
	assert.Equal(t, "friday evening", Describe(friday))
	assert.True(t, IsWeekend(friday))
	assert.False(t, IsWeekend(friday.AddDate(0, 0, -3)))
}

func TestFakeClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)
	c.Advance(35 * time.Minute)
	assert.Equal(t, start.Add(35*time.Minute), c.Now())
	c.Set(start)
	assert.Equal(t, start, c.Now())
	assert.Equal(t, Clock(SystemClock{}), OrSystem(nil))
}
