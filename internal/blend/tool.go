package blend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tailorblend/consultant-api/internal/openai"
)

// ToolName is how the model addresses the blend creation tool.
const ToolName = "create_personalized_blend"

const toolDescription = "Create a personalized supplement blend in the TailorBlend production " +
	"system. Call this only after the consultation is complete: profile gathered, ingredients " +
	"selected with dosages, base mix chosen. Returns the product URL, price, and nutritional " +
	"information to present to the user."

// toolParameters mirrors the Request fields the model must supply.
var toolParameters = json.RawMessage(`{
  "type": "object",
  "properties": {
    "user_first_name": {"type": "string"},
    "user_last_name": {"type": "string"},
    "user_email": {"type": "string"},
    "user_gender": {"type": "string", "enum": ["Male", "Female", "Other"]},
    "user_age": {"type": "integer"},
    "blend_description": {"type": "string", "description": "Brief purpose, e.g. 'Energy and focus support'"},
    "formulation_notes": {"type": "string", "description": "Reasoning behind the ingredient selection"},
    "blend_name": {"type": "string", "description": "Personalized name, e.g. 'John's Energy Formula'"},
    "base_mix_id": {"type": "integer", "description": "1=Shake (Whey), 2=Drink, 6=Nutriblend-F, 8=Shake (Vegan)"},
    "max_price": {"type": "number", "description": "Maximum price in ZAR, default 3000"},
    "number_of_servings": {"type": "integer", "description": "Servings per container, default 30"},
    "add_mix_ids": {"type": "array", "items": {"type": "integer"}},
    "ingredients": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "ingredientId": {"type": "integer"},
          "name": {"type": "string"},
          "amount": {"type": "number", "description": "Amount in the unit listed in the database"},
          "description": {"type": "string"}
        },
        "required": ["ingredientId", "name", "amount"],
        "additionalProperties": false
      }
    }
  },
  "required": ["user_first_name", "user_last_name", "user_email", "user_gender", "user_age",
               "blend_description", "formulation_notes", "blend_name", "base_mix_id"],
  "additionalProperties": false
}`)

// Definition declares the tool to the model.
func (c *Creator) Definition() openai.Tool {
	return openai.FunctionTool(ToolName, toolDescription, toolParameters)
}

// Invoke runs one tool call. The returned string is the JSON-encoded Result
// handed back to the model.
func (c *Creator) Invoke(ctx context.Context, arguments json.RawMessage) (string, error) {
	var req Request
	if err := json.Unmarshal(arguments, &req); err != nil {
		return "", fmt.Errorf("parse %s arguments: %w", ToolName, err)
	}

	out, err := json.Marshal(c.Create(ctx, req))
	if err != nil {
		return "", fmt.Errorf("encode %s result: %w", ToolName, err)
	}
	return string(out), nil
}
