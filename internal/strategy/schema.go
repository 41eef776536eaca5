package strategy

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// definitionSchema guards interpreted strategy JSON before it reaches the
// evaluator. The LLM interpreter is free-form; this is the contract.
const definitionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "market_type", "assets", "entry_conditions", "exit_conditions"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "title": {"type": "string"},
    "market_type": {"enum": ["spot", "futures", "margin"]},
    "assets": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 1}
    },
    "entry_conditions": {"type": "array", "items": {"$ref": "#/$defs/condition"}},
    "exit_conditions": {"type": "array", "items": {"$ref": "#/$defs/condition"}},
    "trade_parameters": {
      "type": "object",
      "properties": {
        "leverage": {"type": "number", "minimum": 0},
        "order_type": {"type": "string"},
        "position_size": {"type": "number", "minimum": 0}
      }
    },
    "risk_parameters": {
      "type": "object",
      "properties": {
        "stop_loss_pct": {"type": "number", "minimum": 0},
        "take_profit_pct": {"type": "number", "minimum": 0},
        "trailing_stop_pct": {"type": "number", "minimum": 0}
      }
    }
  },
  "$defs": {
    "condition": {
      "type": "object",
      "required": ["indicator", "operator", "value"],
      "properties": {
        "indicator": {"type": "string", "minLength": 1},
        "indicator_parameters": {
          "type": "object",
          "additionalProperties": {"type": "number"}
        },
        "operator": {"enum": [">", "<", "==", ">=", "<="]},
        "value": {"type": ["number", "string"]},
        "timeframe": {"type": "string", "pattern": "^[1-9][0-9]*[mhd]$"}
      }
    }
  }
}`

var compiledDefinitionSchema = jsonschema.MustCompileString("strategy-definition.json", definitionSchema)

// ValidateDefinitionJSON schema-checks a raw definition document.
func ValidateDefinitionJSON(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("definition is not valid JSON: %w", err)
	}
	if err := compiledDefinitionSchema.Validate(doc); err != nil {
		return fmt.Errorf("definition rejected by schema: %w", err)
	}
	return nil
}

// ParseDefinition validates and decodes a raw definition document.
func ParseDefinition(raw []byte) (Definition, error) {
	if err := ValidateDefinitionJSON(raw); err != nil {
		return Definition{}, err
	}
	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return Definition{}, err
	}
	return def, nil
}
