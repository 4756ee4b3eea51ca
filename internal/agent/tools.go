package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"renterchat/internal/catalog"
	"renterchat/internal/llm"
	"renterchat/internal/logging"
)

const (
	toolCheckAvailability = "check_availability"
	toolCheckPetPolicy    = "check_pet_policy"
	toolGetPricing        = "get_pricing"
)

// toolDefinitions describes the three leasing tools offered to the model.
func toolDefinitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        toolCheckAvailability,
			Description: "Check apartment unit availability by community and bedroom count",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"community_id": map[string]interface{}{
						"type":        "string",
						"description": "Community identifier (e.g., 'sunset-ridge')",
					},
					"bedrooms": map[string]interface{}{
						"type":        "integer",
						"description": "Number of bedrooms required",
						"minimum":     1,
						"maximum":     4,
					},
				},
				"required": []string{"community_id", "bedrooms"},
			},
		},
		{
			Name:        toolCheckPetPolicy,
			Description: "Check pet policy for a specific community and pet type",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"community_id": map[string]interface{}{
						"type":        "string",
						"description": "Community identifier (e.g., 'sunset-ridge')",
					},
					"pet_type": map[string]interface{}{
						"type":        "string",
						"description": "Type of pet (e.g., 'cat', 'dog', 'bird', 'fish', 'small_pet')",
					},
				},
				"required": []string{"community_id", "pet_type"},
			},
		},
		{
			Name:        toolGetPricing,
			Description: "Get pricing information for a specific unit and move-in date",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"community_id": map[string]interface{}{
						"type":        "string",
						"description": "Community identifier",
					},
					"unit_id": map[string]interface{}{
						"type":        "string",
						"description": "Unit identifier (e.g., '12B')",
					},
					"move_in_date": map[string]interface{}{
						"type":        "string",
						"format":      "date",
						"description": "Desired move-in date (YYYY-MM-DD)",
					},
				},
				"required": []string{"community_id", "unit_id", "move_in_date"},
			},
		},
	}
}

// executeTool runs one tool call against the catalog and returns a JSON
// payload for the model. Lookup misses come back as structured not-found
// results; only genuinely broken input (bad date, unknown tool) is an error.
func (c *Coordinator) executeTool(ctx context.Context, name string, input map[string]interface{}) (string, error) {
	switch name {
	case toolCheckAvailability:
		communityID := stringArg(input, "community_id")
		bedrooms := intArg(input, "bedrooms")
		logging.Tools("check_availability: community_id=%s bedrooms=%d", communityID, bedrooms)

		units := c.catalog.AvailableUnits(communityID, bedrooms)
		if len(units) == 0 {
			return marshalResult(map[string]interface{}{
				"available": false,
				"message":   fmt.Sprintf("No %d-bedroom units available in %s", bedrooms, communityID),
				"units":     []catalog.Unit{},
			})
		}
		return marshalResult(map[string]interface{}{
			"available":    true,
			"count":        len(units),
			"units":        units,
			"community_id": communityID,
			"bedrooms":     bedrooms,
		})

	case toolCheckPetPolicy:
		communityID := stringArg(input, "community_id")
		petType := stringArg(input, "pet_type")
		logging.Tools("check_pet_policy: community_id=%s pet_type=%s", communityID, petType)

		res := c.catalog.PetPolicy(ctx, communityID, petType)
		return marshalResult(map[string]interface{}{
			"community_id": communityID,
			"pet_type":     petType,
			"matched_type": res.MatchedType,
			"allowed":      res.Policy.Allowed,
			"fee":          res.Policy.Fee,
			"deposit":      res.Policy.Deposit,
			"monthly_rent": res.Policy.MonthlyRent,
			"restrictions": res.Policy.Restrictions,
			"notes":        res.Policy.Notes,
		})

	case toolGetPricing:
		communityID := stringArg(input, "community_id")
		unitID := stringArg(input, "unit_id")
		moveInDate := stringArg(input, "move_in_date")
		logging.Tools("get_pricing: community_id=%s unit_id=%s move_in_date=%s", communityID, unitID, moveInDate)

		quote, err := c.catalog.Pricing(communityID, unitID, moveInDate)
		if err != nil {
			return "", err
		}
		if quote == nil {
			return marshalResult(map[string]interface{}{
				"error":     fmt.Sprintf("Unit %s not found in %s", unitID, communityID),
				"available": false,
			})
		}
		return marshalResult(quote)

	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

func marshalResult(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(data), nil
}

func stringArg(input map[string]interface{}, key string) string {
	if v, ok := input[key].(string); ok {
		return v
	}
	return ""
}

// intArg tolerates the float64 that encoding/json produces for numbers.
func intArg(input map[string]interface{}, key string) int {
	switch v := input[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
