package orchestrator

import "encoding/json"

// JSON schemas constraining the specialists' structured outputs. They mirror
// the domain types the results unmarshal into.

var supplementRecommendationSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "ingredients": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "dosage": {"type": "number"},
          "unit": {"type": "string"},
          "rationale": {"type": "string"},
          "estimated_cost": {"type": "number"}
        },
        "required": ["name", "dosage", "unit", "rationale"],
        "additionalProperties": false
      }
    },
    "delivery_constraints": {"type": "array", "items": {"type": "string"}},
    "total_estimated_cost": {"type": "number"},
    "clinical_rationale": {"type": "string"},
    "safety_notes": {"type": "string"}
  },
  "required": ["ingredients", "total_estimated_cost", "clinical_rationale"],
  "additionalProperties": false
}`)

var formulationConfigSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "base_mix": {
      "type": "object",
      "properties": {
        "base_mix_id": {"type": "integer"},
        "base_mix_name": {"type": "string"},
        "rationale": {"type": "string"}
      },
      "required": ["base_mix_id", "base_mix_name", "rationale"],
      "additionalProperties": false
    },
    "add_mixes": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "add_mix_type": {"type": "string"},
          "add_mix_id": {"type": "integer"},
          "add_mix_name": {"type": "string"}
        },
        "required": ["add_mix_type", "add_mix_id", "add_mix_name"],
        "additionalProperties": false
      }
    },
    "ingredients": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "dosage": {"type": "number"},
          "unit": {"type": "string"},
          "rationale": {"type": "string"},
          "estimated_cost": {"type": "number"}
        },
        "required": ["name", "dosage", "unit", "rationale"],
        "additionalProperties": false
      }
    },
    "delivery_format": {"type": "string"},
    "user_instructions": {"type": "string"},
    "formulation_rationale": {"type": "string"}
  },
  "required": ["base_mix", "add_mixes", "ingredients", "delivery_format", "user_instructions", "formulation_rationale"],
  "additionalProperties": false
}`)
