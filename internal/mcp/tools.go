package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"renterchat/internal/catalog"
	"renterchat/internal/logging"
)

// AvailabilityTool handles the check_availability MCP tool.
type AvailabilityTool struct {
	catalog *catalog.Store
}

// NewAvailabilityTool creates the tool over the catalog store.
func NewAvailabilityTool(store *catalog.Store) *AvailabilityTool {
	return &AvailabilityTool{catalog: store}
}

// Definition returns the MCP tool definition for registration.
func (t *AvailabilityTool) Definition() mcp.Tool {
	return mcp.NewTool("check_availability",
		mcp.WithDescription("Check apartment unit availability by community and bedroom count"),
		mcp.WithString("community_id",
			mcp.Required(),
			mcp.Description("Community identifier (e.g., 'sunset-ridge')"),
		),
		mcp.WithNumber("bedrooms",
			mcp.Required(),
			mcp.Description("Number of bedrooms required"),
			mcp.Min(1),
			mcp.Max(4),
		),
	)
}

// Handle processes a check_availability call.
func (t *AvailabilityTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	communityID := req.GetString("community_id", "")
	bedrooms := req.GetInt("bedrooms", 0)
	logging.Tools("mcp check_availability: community_id=%s bedrooms=%d", communityID, bedrooms)

	units := t.catalog.AvailableUnits(communityID, bedrooms)
	if len(units) == 0 {
		return jsonResult(map[string]interface{}{
			"available": false,
			"message":   fmt.Sprintf("No %d-bedroom units available in %s", bedrooms, communityID),
			"units":     []catalog.Unit{},
		})
	}
	return jsonResult(map[string]interface{}{
		"available":    true,
		"count":        len(units),
		"units":        units,
		"community_id": communityID,
		"bedrooms":     bedrooms,
	})
}

// PetPolicyTool handles the check_pet_policy MCP tool.
type PetPolicyTool struct {
	catalog *catalog.Store
}

// NewPetPolicyTool creates the tool over the catalog store.
func NewPetPolicyTool(store *catalog.Store) *PetPolicyTool {
	return &PetPolicyTool{catalog: store}
}

// Definition returns the MCP tool definition for registration.
func (t *PetPolicyTool) Definition() mcp.Tool {
	return mcp.NewTool("check_pet_policy",
		mcp.WithDescription("Check pet policy for a specific community and pet type"),
		mcp.WithString("community_id",
			mcp.Required(),
			mcp.Description("Community identifier (e.g., 'sunset-ridge')"),
		),
		mcp.WithString("pet_type",
			mcp.Required(),
			mcp.Description("Type of pet. Free-form phrasings like 'kitten' resolve to the nearest known type."),
		),
	)
}

// Handle processes a check_pet_policy call.
func (t *PetPolicyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	communityID := req.GetString("community_id", "")
	petType := req.GetString("pet_type", "")
	logging.Tools("mcp check_pet_policy: community_id=%s pet_type=%s", communityID, petType)

	res := t.catalog.PetPolicy(ctx, communityID, petType)
	return jsonResult(map[string]interface{}{
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
}

// PricingTool handles the get_pricing MCP tool.
type PricingTool struct {
	catalog *catalog.Store
}

// NewPricingTool creates the tool over the catalog store.
func NewPricingTool(store *catalog.Store) *PricingTool {
	return &PricingTool{catalog: store}
}

// Definition returns the MCP tool definition for registration.
func (t *PricingTool) Definition() mcp.Tool {
	return mcp.NewTool("get_pricing",
		mcp.WithDescription("Get pricing information for a specific unit and move-in date"),
		mcp.WithString("community_id",
			mcp.Required(),
			mcp.Description("Community identifier"),
		),
		mcp.WithString("unit_id",
			mcp.Required(),
			mcp.Description("Unit identifier (e.g., '12B')"),
		),
		mcp.WithString("move_in_date",
			mcp.Required(),
			mcp.Description("Desired move-in date (YYYY-MM-DD)"),
		),
	)
}

// Handle processes a get_pricing call.
func (t *PricingTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	communityID := req.GetString("community_id", "")
	unitID := req.GetString("unit_id", "")
	moveInDate := req.GetString("move_in_date", "")
	logging.Tools("mcp get_pricing: community_id=%s unit_id=%s move_in_date=%s", communityID, unitID, moveInDate)

	quote, err := t.catalog.Pricing(communityID, unitID, moveInDate)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if quote == nil {
		return jsonResult(map[string]interface{}{
			"error":     fmt.Sprintf("Unit %s not found in %s", unitID, communityID),
			"available": false,
		})
	}
	return jsonResult(quote)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
