package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renterchat/internal/catalog"
)

func testStore(t *testing.T) *catalog.Store {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"communities.json": `{"sunset-ridge": {"name": "Sunset Ridge", "location": "Downtown", "amenities": ["pool"]}}`,
		"units.json": `{"sunset-ridge": [
			{"unit_id": "12B", "bedrooms": 2, "bathrooms": 2, "sqft": 1100, "floor": 12,
			 "available_date": "2026-07-15", "base_rent": 2400, "available": true}
		]}`,
		"pet_policies.json": `{"sunset-ridge": {"cats": {"allowed": true, "fee": 50, "deposit": 200, "monthly_rent": 25}}}`,
		"specials.json":     `[{"name": "Summer Special", "discount_type": "percentage", "amount": 10}]`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}

	store, err := catalog.NewStore(context.Background(), catalog.NewJSONProvider(dir))
	require.NoError(t, err)
	return store
}

// newRequest builds a CallToolRequest with the given arguments.
func newRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestAvailabilityToolHandle(t *testing.T) {
	tool := NewAvailabilityTool(testStore(t))

	result, err := tool.Handle(context.Background(), newRequest(map[string]interface{}{
		"community_id": "sunset-ridge",
		"bedrooms":     float64(2),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload struct {
		Available bool           `json:"available"`
		Count     int            `json:"count"`
		Units     []catalog.Unit `json:"units"`
	}
	require.NoError(t, json.Unmarshal([]byte(getResultText(result)), &payload))
	assert.True(t, payload.Available)
	require.Equal(t, 1, payload.Count)
	assert.Equal(t, "12B", payload.Units[0].UnitID)
}

func TestAvailabilityToolNoUnits(t *testing.T) {
	tool := NewAvailabilityTool(testStore(t))

	result, err := tool.Handle(context.Background(), newRequest(map[string]interface{}{
		"community_id": "sunset-ridge",
		"bedrooms":     float64(4),
	}))
	require.NoError(t, err)

	text := getResultText(result)
	assert.Contains(t, text, `"available": false`)
	assert.Contains(t, text, "No 4-bedroom units available")
}

func TestPetPolicyToolHandle(t *testing.T) {
	tool := NewPetPolicyTool(testStore(t))

	result, err := tool.Handle(context.Background(), newRequest(map[string]interface{}{
		"community_id": "sunset-ridge",
		"pet_type":     "cats",
	}))
	require.NoError(t, err)

	var payload struct {
		Allowed bool    `json:"allowed"`
		Fee     float64 `json:"fee"`
	}
	require.NoError(t, json.Unmarshal([]byte(getResultText(result)), &payload))
	assert.True(t, payload.Allowed)
	assert.Equal(t, float64(50), payload.Fee)
}

func TestPetPolicyToolUnknownCommunity(t *testing.T) {
	tool := NewPetPolicyTool(testStore(t))

	result, err := tool.Handle(context.Background(), newRequest(map[string]interface{}{
		"community_id": "nowhere",
		"pet_type":     "cats",
	}))
	require.NoError(t, err)
	assert.Contains(t, getResultText(result), "Community not found")
}

func TestPricingToolHandle(t *testing.T) {
	tool := NewPricingTool(testStore(t))

	result, err := tool.Handle(context.Background(), newRequest(map[string]interface{}{
		"community_id": "sunset-ridge",
		"unit_id":      "12B",
		"move_in_date": "2026-07-01",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var quote catalog.PricingQuote
	require.NoError(t, json.Unmarshal([]byte(getResultText(result)), &quote))
	assert.Equal(t, float64(2400), quote.Pricing.BaseRent)
	assert.Equal(t, []int{6, 12, 15}, quote.LeaseTerms)
}

func TestPricingToolUnknownUnit(t *testing.T) {
	tool := NewPricingTool(testStore(t))

	result, err := tool.Handle(context.Background(), newRequest(map[string]interface{}{
		"community_id": "sunset-ridge",
		"unit_id":      "99Z",
		"move_in_date": "2026-07-01",
	}))
	require.NoError(t, err)
	assert.Contains(t, getResultText(result), "Unit 99Z not found")
}

func TestPricingToolBadDate(t *testing.T) {
	tool := NewPricingTool(testStore(t))

	result, err := tool.Handle(context.Background(), newRequest(map[string]interface{}{
		"community_id": "sunset-ridge",
		"unit_id":      "12B",
		"move_in_date": "next month",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestNewRegistersTools(t *testing.T) {
	s := New("renterchat", "test", testStore(t))
	assert.NotNil(t, s)
}
