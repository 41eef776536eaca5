package strategy

import (
	"errors"
	"fmt"

	"genstrat/internal/indicator"
	"genstrat/internal/logger"
)

// ErrUnsupportedOperator marks an operator outside > < == >= <=. Like a bad
// timeframe it means the definition is corrupt, so it is returned to the
// caller rather than folded into a false signal.
var ErrUnsupportedOperator = errors.New("unsupported operator")

// Evaluator turns a condition list into a boolean signal against one asset's
// per-pass indicator cache.
type Evaluator struct {
	cache *indicator.Cache
}

func NewEvaluator(cache *indicator.Cache) *Evaluator {
	return &Evaluator{cache: cache}
}

// Evaluate ANDs all conditions. An empty list is vacuously true. A missing or
// empty indicator series fails closed: the signal is false and the cause is
// logged, because a trading signal must always resolve to a boolean.
// Configuration errors (unknown operator, unresolvable indicator) are
// returned instead.
func (e *Evaluator) Evaluate(conds []Condition) (bool, error) {
	if e == nil || e.cache == nil {
		return false, fmt.Errorf("evaluator not initialized")
	}
	for i, cond := range conds {
		current, ok, err := e.lastSample(cond.Indicator, cond.Params)
		if err != nil {
			return false, err
		}
		if !ok {
			logger.Warnf("evaluate: no data for indicator=%s asset=%s condition=%d, signal=false",
				cond.Indicator, e.cache.Window().Asset, i)
			return false, nil
		}
		target := cond.Value
		if cond.ValueIndicator != "" {
			refVal, refOK, err := e.lastSample(cond.ValueIndicator, nil)
			if err != nil {
				return false, err
			}
			if !refOK {
				logger.Warnf("evaluate: no data for reference indicator=%s asset=%s condition=%d, signal=false",
					cond.ValueIndicator, e.cache.Window().Asset, i)
				return false, nil
			}
			target = refVal
		}
		hold, err := compare(current, cond.Operator, target)
		if err != nil {
			return false, err
		}
		if !hold {
			return false, nil
		}
	}
	return true, nil
}

// lastSample resolves the latest value of an indicator series. The bool is
// false when the series is empty or could not be computed transiently;
// configuration errors come back as err.
func (e *Evaluator) lastSample(name string, params map[string]float64) (float64, bool, error) {
	series, err := e.cache.GetOrCompute(name, params)
	if err != nil {
		if errors.Is(err, indicator.ErrUnsupportedIndicator) {
			return 0, false, err
		}
		logger.Warnf("evaluate: computing indicator=%s failed: %v", name, err)
		return 0, false, nil
	}
	if len(series) == 0 {
		return 0, false, nil
	}
	return series[len(series)-1], true, nil
}

func compare(current float64, operator string, target float64) (bool, error) {
	switch operator {
	case ">":
		return current > target, nil
	case "<":
		return current < target, nil
	case "==":
		return current == target, nil
	case ">=":
		return current >= target, nil
	case "<=":
		return current <= target, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnsupportedOperator, operator)
	}
}
