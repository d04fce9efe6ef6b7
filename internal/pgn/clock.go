package pgn

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	clockRegex       = regexp.MustCompile(`\[%clk\s+([0-9:.]+)\]`)
	timeControlRegex = regexp.MustCompile(`^(\d+)(?:\+(\d+))?$`)
)

// spentToleranceMS absorbs clock rounding; anything more negative is discarded.
const spentToleranceMS = -50

// TimeControl is a parsed "base[+increment]" time control in seconds.
type TimeControl struct {
	Base      int
	Increment int
}

// ParseTimeControl parses "300", "300+2" and similar. Unknown formats such as
// "?", "-" or correspondence "1/259200" report false.
func ParseTimeControl(value string) (TimeControl, bool) {
	v := strings.TrimSpace(value)
	if v == "" || v == "?" || v == "-" || strings.Contains(v, "/") {
		return TimeControl{}, false
	}
	m := timeControlRegex.FindStringSubmatch(v)
	if m == nil {
		return TimeControl{}, false
	}
	base, err := strconv.Atoi(m[1])
	if err != nil {
		return TimeControl{}, false
	}
	var inc int
	if m[2] != "" {
		if inc, err = strconv.Atoi(m[2]); err != nil {
			return TimeControl{}, false
		}
	}
	return TimeControl{Base: base, Increment: inc}, true
}

// ParseClock converts "H:MM:SS(.f)" or "MM:SS(.f)" to seconds.
func ParseClock(value string) (float64, bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return 0, false
	}
	hours := 0
	if len(parts) == 3 {
		if hours, err = strconv.Atoi(parts[0]); err != nil {
			return 0, false
		}
	}
	if hours < 0 || minutes < 0 || seconds < 0 {
		return 0, false
	}
	return float64(hours*3600+minutes*60) + seconds, true
}

// clockFromComment extracts the [%clk ...] reading from a move comment.
func clockFromComment(comment string) (float64, bool) {
	m := clockRegex.FindStringSubmatch(comment)
	if m == nil {
		return 0, false
	}
	return ParseClock(m[1])
}

// clockTracker derives per-move time spent from successive clock readings.
type clockTracker struct {
	increment *float64
	prev      [2]*float64 // indexed by 0=white, 1=black
}

// newClockTracker starts with no previous reading for either side, so the
// first move of each colour has no time spent.
func newClockTracker(tc TimeControl, known bool) *clockTracker {
	t := &clockTracker{}
	if known {
		t.increment = ptr(float64(tc.Increment))
	}
	return t
}

// observe records a clock reading for a side and returns the time spent in ms
// when it can be computed.
func (t *clockTracker) observe(white bool, clock *float64) *int {
	side := 1
	if white {
		side = 0
	}
	if clock == nil {
		t.prev[side] = nil
		return nil
	}
	if t.increment == nil {
		t.prev[side] = ptr(*clock)
		return nil
	}

	prev := t.prev[side]
	t.prev[side] = ptr(*clock)
	if prev == nil {
		return nil
	}
	spent := int(math.Round((*prev + *t.increment - *clock) * 1000))
	if spent < spentToleranceMS {
		return nil
	}
	spent = max(spent, 0)
	return &spent
}

func ptr[T any](v T) *T { return &v }
