package strategy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsupportedTimeframe marks a timeframe whose unit or count cannot be
// parsed. It indicates a corrupt definition, so it is surfaced, not defaulted.
var ErrUnsupportedTimeframe = errors.New("unsupported timeframe")

// defaultTimeframeMinutes applies when a condition omits its timeframe.
const defaultTimeframeMinutes = 1440 // 1 day

// TimeframeMinutes parses "90m", "4h", "1d" into a positive minute count.
func TimeframeMinutes(tf string) (int, error) {
	tf = strings.ToLower(strings.TrimSpace(tf))
	if tf == "" {
		return defaultTimeframeMinutes, nil
	}
	unit := tf[len(tf)-1]
	n, err := strconv.Atoi(strings.TrimSpace(tf[:len(tf)-1]))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedTimeframe, tf)
	}
	switch unit {
	case 'm':
		return n, nil
	case 'h':
		return n * 60, nil
	case 'd':
		return n * 1440, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedTimeframe, tf)
	}
}

// RenderTimeframe renders a minute count using the coarsest unit that
// represents it exactly: 90 stays "90m", 120 becomes "2h", 2880 becomes "2d".
func RenderTimeframe(minutes int) string {
	switch {
	case minutes%1440 == 0:
		return fmt.Sprintf("%dd", minutes/1440)
	case minutes%60 == 0:
		return fmt.Sprintf("%dh", minutes/60)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// ResolveTimeframe returns the minimum timeframe across every entry and exit
// condition of the definition; conditions without a timeframe count as one
// day. The result decides how much history a pass must fetch.
func ResolveTimeframe(def Definition) (string, error) {
	min := 0
	consider := func(conds []Condition) error {
		for _, c := range conds {
			minutes, err := TimeframeMinutes(c.Timeframe)
			if err != nil {
				return err
			}
			if min == 0 || minutes < min {
				min = minutes
			}
		}
		return nil
	}
	if err := consider(def.EntryConditions); err != nil {
		return "", err
	}
	if err := consider(def.ExitConditions); err != nil {
		return "", err
	}
	if min == 0 {
		min = defaultTimeframeMinutes
	}
	return RenderTimeframe(min), nil
}
