package types

import (
	"fmt"
	"math"
	"time"
)

// TicksPerSecond is the resolution of transport timecodes (100ns units)
const TicksPerSecond = 10000000

// TicksPerDay rolls timecodes over every 24 hours
const TicksPerDay = 864000000000

type Timecode struct {
	Hours   int
	Minutes int
	Seconds int
	Frames  int
}

// TimecodeFromTicks converts a 100ns tick count into a timecode at rate,
// rolling over at 24 hours.
func TimecodeFromTicks(ticks int64, rate FrameRate) Timecode {
	ticks %= TicksPerDay
	if ticks < 0 {
		ticks += TicksPerDay
	}
	seconds := float64(ticks) / TicksPerSecond
	whole := int(seconds)

	tc := Timecode{
		Hours:   whole / 3600,
		Minutes: (whole / 60) % 60,
		Seconds: whole % 60,
	}
	if fps := rate.Float64(); fps > 0 {
		tc.Frames = int(math.Floor((seconds-float64(whole))*fps + 1e-6))
		if limit := int(math.Ceil(fps)); tc.Frames >= limit {
			tc.Frames = limit - 1
		}
	}
	return tc
}

// TicksOfDay returns the time of day of t in 100ns ticks.
func TicksOfDay(t time.Time) int64 {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return int64(t.Sub(midnight) / 100)
}

func (tc Timecode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", tc.Hours, tc.Minutes, tc.Seconds, tc.Frames)
}
