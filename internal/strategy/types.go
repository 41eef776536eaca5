package strategy

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Market types a definition may target.
const (
	MarketSpot    = "spot"
	MarketFutures = "futures"
	MarketMargin  = "margin"
)

// Definition is one declarative strategy. It is immutable for the duration of
// an evaluation cycle; the engine only reads it.
type Definition struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	MarketType      string          `json:"market_type"`
	Assets          []string        `json:"assets"`
	EntryConditions []Condition     `json:"entry_conditions"`
	ExitConditions  []Condition     `json:"exit_conditions"`
	TradeParameters TradeParameters `json:"trade_parameters"`
	RiskParameters  RiskParameters  `json:"risk_parameters"`
	Active          bool            `json:"active"`
}

type TradeParameters struct {
	Leverage     float64 `json:"leverage"`
	OrderType    string  `json:"order_type"`
	PositionSize float64 `json:"position_size"`
}

type RiskParameters struct {
	StopLossPct     float64 `json:"stop_loss_pct"`
	TakeProfitPct   float64 `json:"take_profit_pct"`
	TrailingStopPct float64 `json:"trailing_stop_pct"`
}

// Condition compares an indicator's latest value against a threshold or
// against another indicator's latest value.
type Condition struct {
	Indicator string             `json:"indicator"`
	Params    map[string]float64 `json:"indicator_parameters,omitempty"`
	Operator  string             `json:"operator"`
	// Exactly one of Value / ValueIndicator is the comparison target;
	// ValueIndicator wins when non-empty.
	Value          float64 `json:"value,omitempty"`
	ValueIndicator string  `json:"value_indicator,omitempty"`
	Timeframe      string  `json:"timeframe,omitempty"`
}

// UnmarshalJSON accepts "value" as a number, a numeric string, or an
// indicator-reference string. Interpreted strategies come back from the LLM
// with all three shapes.
func (c *Condition) UnmarshalJSON(data []byte) error {
	type alias Condition
	aux := struct {
		*alias
		Value json.RawMessage `json:"value,omitempty"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Value) == 0 {
		return nil
	}
	var num float64
	if err := json.Unmarshal(aux.Value, &num); err == nil {
		c.Value = num
		return nil
	}
	var str string
	if err := json.Unmarshal(aux.Value, &str); err != nil {
		return err
	}
	str = strings.TrimSpace(str)
	if parsed, err := strconv.ParseFloat(str, 64); err == nil {
		c.Value = parsed
		return nil
	}
	c.ValueIndicator = str
	return nil
}

// MarshalJSON renders "value" as the indicator reference when one is set and
// as a plain number otherwise, so a stored definition round-trips through the
// schema check.
func (c Condition) MarshalJSON() ([]byte, error) {
	type alias Condition
	aux := struct {
		alias
		Value          any    `json:"value"`
		ValueIndicator string `json:"value_indicator,omitempty"`
	}{alias: alias(c)}
	aux.ValueIndicator = ""
	if c.ValueIndicator != "" {
		aux.Value = c.ValueIndicator
	} else {
		aux.Value = c.Value
	}
	return json.Marshal(aux)
}

// AssetsUpper returns the normalized asset list.
func (d Definition) AssetsUpper() []string {
	out := make([]string, 0, len(d.Assets))
	for _, a := range d.Assets {
		a = strings.ToUpper(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}
