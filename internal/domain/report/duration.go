package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Durations are encoded as wholeHours.minuteCode where the fractional part
// is one of ten codes standing for minutes: .10 = 10m ... .55 = 55m.
const (
	minMinuteCode = 10
	maxMinuteCode = 55
)

// NormalizeDuration validates and snaps a duration input to the encoding.
// An empty input means "no value" and returns nil. The fractional part is
// rounded to the nearest 0.05 and clamped into the valid code range; values
// above .55 roll over into the next whole hour.
func NormalizeDuration(raw string) (*float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid duration %q", raw)
	}
	if v < 0 {
		return nil, fmt.Errorf("duration must not be negative")
	}

	hours := math.Floor(v)
	frac := v - hours

	var out float64
	switch {
	case frac < 0.025:
		out = hours
	case frac > 0.555:
		out = hours + 1
	default:
		// Nearest multiple of 5 in hundredths, clamped to the code range.
		code := int(math.Round(frac*20)) * 5
		if code < minMinuteCode {
			code = minMinuteCode
		}
		if code > maxMinuteCode {
			code = maxMinuteCode
		}
		out = hours + float64(code)/100
	}
	return &out, nil
}

// DailyWorkload is the session load score: perceived exertion times total
// training time.
func DailyWorkload(rpe, skillDuration, strengthConditioningDuration float64) float64 {
	return rpe * (skillDuration + strengthConditioningDuration)
}

// ACWR is the acute:chronic workload ratio. Undefined (nil) when there is no
// chronic workload to divide by.
func ACWR(acute, chronic float64) *float64 {
	if chronic <= 0 {
		return nil
	}
	ratio := acute / chronic
	return &ratio
}
