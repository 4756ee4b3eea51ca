package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"renterchat/internal/llm"
	"renterchat/internal/logging"
)

// Extractor pulls housing preferences out of a single message using a
// fast, cheap model. Failures degrade to "nothing learned".
type Extractor struct {
	client llm.Client
}

// NewExtractor creates an extractor over the given model client.
func NewExtractor(client llm.Client) *Extractor {
	return &Extractor{client: client}
}

// Extract analyzes one message (with optional conversation context) and
// returns any clearly stated preferences. A model response that is not
// valid JSON is treated as an empty extraction, not an error; only
// transport failures surface as errors.
func (e *Extractor) Extract(ctx context.Context, message, convContext string) (Preferences, error) {
	prompt := buildExtractionPrompt(message, convContext)

	raw, err := e.client.Complete(ctx, prompt)
	if err != nil {
		return Preferences{}, fmt.Errorf("preference extraction call: %w", err)
	}

	text := stripFences(strings.TrimSpace(raw))

	var extracted Preferences
	if err := json.Unmarshal([]byte(text), &extracted); err != nil {
		logging.Get(logging.CategoryPrefs).Warn("extraction returned non-JSON, ignoring: %v (raw: %.120s)", err, text)
		return Preferences{}, nil
	}

	if fields := extracted.Fields(); len(fields) > 0 {
		logging.Prefs("extracted %v from message", fields)
	}
	return extracted, nil
}

// stripFences unwraps a markdown-fenced code block, which some models emit
// despite the JSON-only instruction.
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func buildExtractionPrompt(message, convContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract housing preferences from this message. Return ONLY valid JSON.\n\n")
	fmt.Fprintf(&b, "Message: %q\n", message)
	if convContext != "" {
		fmt.Fprintf(&b, "Context: %q\n", convContext)
	}
	b.WriteString(`
Extract these preferences (only include if clearly mentioned):
- bedrooms (int): Number of bedrooms needed
- bathrooms (int): Number of bathrooms needed
- max_rent (int): Maximum rent budget in dollars
- min_sqft (int): Minimum square footage
- max_sqft (int): Maximum square footage
- move_in_date (string): Move-in date in YYYY-MM-DD format
- has_pets (bool): Whether they have pets
- pet_types (list): Types of pets (e.g., ["dog", "cat"])
- amenity_priorities (list): Important amenities (e.g., ["gym", "pool", "parking"])
- floor_preferences (string): "high", "low", "ground", or "any"
- budget_conscious (bool): If they mention budget concerns
- urgency_level (string): "urgent", "flexible", or "browsing"
- noise_sensitivity (string): "high", "medium", or "low"
- preferred_communities (list): Community names mentioned

Rules:
1. Only extract preferences that are CLEARLY stated
2. Don't infer unstated preferences
3. Return empty object {} if no clear preferences found
4. Use exact values mentioned (don't round numbers)
5. For pet_types, use singular forms: ["dog", "cat", "bird", "fish"]

Examples:
"I need a 2-bedroom apartment" -> {"bedrooms": 2}
"My budget is $2500" -> {"max_rent": 2500}
"I have a dog and cat" -> {"has_pets": true, "pet_types": ["dog", "cat"]}
"I need to move ASAP" -> {"urgency_level": "urgent"}
"No pets" -> {"has_pets": false}
"I'm interested in Sunset Ridge" -> {"preferred_communities": ["Sunset Ridge"]}
"Do you have units at Oak Valley Apartments?" -> {"preferred_communities": ["Oak Valley Apartments"]}
"I need to move in July" -> {"move_in_date": "2026-07-01"}
"Looking to move by March 15th" -> {"move_in_date": "2026-03-15"}

Return JSON only:`)
	return b.String()
}
