package loader

// documentSchema is the JSON schema of a definition document.
var documentSchema = map[string]any{
	"type":     "object",
	"required": []string{"id", "activities"},
	"properties": map[string]any{
		"id":          map[string]any{"type": "string", "minLength": 1},
		"name":        map[string]any{"type": "string"},
		"description": map[string]any{"type": "string"},
		"variables":   map[string]any{"type": "object"},
		"activities": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":                 "object",
				"required":             []string{"id", "type"},
				"additionalProperties": false,
				"properties": map[string]any{
					"id":   map[string]any{"type": "string", "minLength": 1},
					"name": map[string]any{"type": "string"},
					"type": map[string]any{"type": "string", "minLength": 1},
					"fields": map[string]any{
						"type": "object",
						"additionalProperties": map[string]any{
							"oneOf": []any{
								map[string]any{"type": "string"},
								map[string]any{
									"type":                 "object",
									"required":             []string{"syntax"},
									"additionalProperties": false,
									"properties": map[string]any{
										"syntax": map[string]any{"type": "string", "minLength": 1},
										"text":   map[string]any{"type": "string"},
									},
								},
							},
						},
					},
				},
			},
		},
		"connections": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"required":             []string{"source", "target"},
				"additionalProperties": false,
				"properties": map[string]any{
					"id":      map[string]any{"type": "string"},
					"source":  map[string]any{"type": "string", "minLength": 1},
					"outcome": map[string]any{"type": "string"},
					"target":  map[string]any{"type": "string", "minLength": 1},
				},
			},
		},
	},
	"additionalProperties": false,
}
