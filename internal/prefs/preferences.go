// Package prefs models learned client housing preferences and extracts
// them from conversation with a small, cheap model. Extraction is a side
// effect of recording a message: it may fail or return nothing, and the
// conversation proceeds either way.
package prefs

import (
	"sort"
	"strings"
)

// Preferences holds everything learned about what a client wants. Scalar
// fields are pointers so "not yet learned" is distinct from a zero value.
type Preferences struct {
	Bedrooms             *int     `json:"bedrooms,omitempty"`
	Bathrooms            *int     `json:"bathrooms,omitempty"`
	MaxRent              *int     `json:"max_rent,omitempty"`
	MinSqft              *int     `json:"min_sqft,omitempty"`
	MaxSqft              *int     `json:"max_sqft,omitempty"`
	MoveInDate           *string  `json:"move_in_date,omitempty"`
	HasPets              *bool    `json:"has_pets,omitempty"`
	PetTypes             []string `json:"pet_types,omitempty"`
	AmenityPriorities    []string `json:"amenity_priorities,omitempty"`
	FloorPreferences     *string  `json:"floor_preferences,omitempty"`
	BudgetConscious      *bool    `json:"budget_conscious,omitempty"`
	UrgencyLevel         *string  `json:"urgency_level,omitempty"`
	NoiseSensitivity     *string  `json:"noise_sensitivity,omitempty"`
	PreferredCommunities []string `json:"preferred_communities,omitempty"`
}

// IsEmpty reports whether nothing has been learned yet.
func (p Preferences) IsEmpty() bool {
	return len(p.Known()) == 0
}

// Known returns the learned fields as a map, omitting everything unset.
// The agent injects this into conversation context.
func (p Preferences) Known() map[string]interface{} {
	known := make(map[string]interface{})
	if p.Bedrooms != nil {
		known["bedrooms"] = *p.Bedrooms
	}
	if p.Bathrooms != nil {
		known["bathrooms"] = *p.Bathrooms
	}
	if p.MaxRent != nil {
		known["max_rent"] = *p.MaxRent
	}
	if p.MinSqft != nil {
		known["min_sqft"] = *p.MinSqft
	}
	if p.MaxSqft != nil {
		known["max_sqft"] = *p.MaxSqft
	}
	if p.MoveInDate != nil {
		known["move_in_date"] = *p.MoveInDate
	}
	if p.HasPets != nil {
		known["has_pets"] = *p.HasPets
	}
	if len(p.PetTypes) > 0 {
		known["pet_types"] = p.PetTypes
	}
	if len(p.AmenityPriorities) > 0 {
		known["amenity_priorities"] = p.AmenityPriorities
	}
	if p.FloorPreferences != nil {
		known["floor_preferences"] = *p.FloorPreferences
	}
	if p.BudgetConscious != nil {
		known["budget_conscious"] = *p.BudgetConscious
	}
	if p.UrgencyLevel != nil {
		known["urgency_level"] = *p.UrgencyLevel
	}
	if p.NoiseSensitivity != nil {
		known["noise_sensitivity"] = *p.NoiseSensitivity
	}
	if len(p.PreferredCommunities) > 0 {
		known["preferred_communities"] = p.PreferredCommunities
	}
	return known
}

// Merge overlays extracted onto p and returns the result plus the
// confidence score for every field the extraction touched. Scalars are
// overwritten, list fields are set-unioned so repeated extractions are
// idempotent. p itself is not mutated.
func (p Preferences) Merge(extracted Preferences, sourceMessage string) (Preferences, map[string]float64) {
	merged := p
	scores := make(map[string]float64)

	score := func(field string) {
		scores[field] = Confidence(field, sourceMessage)
	}

	if extracted.Bedrooms != nil {
		merged.Bedrooms = extracted.Bedrooms
		score("bedrooms")
	}
	if extracted.Bathrooms != nil {
		merged.Bathrooms = extracted.Bathrooms
		score("bathrooms")
	}
	if extracted.MaxRent != nil {
		merged.MaxRent = extracted.MaxRent
		score("max_rent")
	}
	if extracted.MinSqft != nil {
		merged.MinSqft = extracted.MinSqft
		score("min_sqft")
	}
	if extracted.MaxSqft != nil {
		merged.MaxSqft = extracted.MaxSqft
		score("max_sqft")
	}
	if extracted.MoveInDate != nil {
		merged.MoveInDate = extracted.MoveInDate
		score("move_in_date")
	}
	if extracted.HasPets != nil {
		merged.HasPets = extracted.HasPets
		score("has_pets")
	}
	// List fields only count as learned when the union is non-empty:
	// extractions of blank entries must not leave a confidence score
	// behind a nil field.
	if len(extracted.PetTypes) > 0 {
		merged.PetTypes = unionLists(p.PetTypes, extracted.PetTypes)
		if len(merged.PetTypes) > 0 {
			score("pet_types")
		}
	}
	if len(extracted.AmenityPriorities) > 0 {
		merged.AmenityPriorities = unionLists(p.AmenityPriorities, extracted.AmenityPriorities)
		if len(merged.AmenityPriorities) > 0 {
			score("amenity_priorities")
		}
	}
	if extracted.FloorPreferences != nil {
		merged.FloorPreferences = extracted.FloorPreferences
		score("floor_preferences")
	}
	if extracted.BudgetConscious != nil {
		merged.BudgetConscious = extracted.BudgetConscious
		score("budget_conscious")
	}
	if extracted.UrgencyLevel != nil {
		merged.UrgencyLevel = extracted.UrgencyLevel
		score("urgency_level")
	}
	if extracted.NoiseSensitivity != nil {
		merged.NoiseSensitivity = extracted.NoiseSensitivity
		score("noise_sensitivity")
	}
	if len(extracted.PreferredCommunities) > 0 {
		merged.PreferredCommunities = unionLists(p.PreferredCommunities, extracted.PreferredCommunities)
		if len(merged.PreferredCommunities) > 0 {
			score("preferred_communities")
		}
	}

	return merged, scores
}

// unionLists merges two lists preserving first-seen order, dropping
// duplicates case-insensitively.
func unionLists(current, incoming []string) []string {
	seen := make(map[string]bool, len(current)+len(incoming))
	var out []string
	for _, lists := range [][]string{current, incoming} {
		for _, v := range lists {
			key := strings.ToLower(strings.TrimSpace(v))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, v)
		}
	}
	return out
}

// Confidence scores how certain an extraction is, based on how explicitly
// the field is mentioned in the source message.
func Confidence(field, message string) float64 {
	lower := strings.ToLower(message)

	switch field {
	case "bedrooms":
		if strings.Contains(lower, "bedroom") || strings.Contains(lower, "bed") {
			return 0.95
		}
	case "max_rent":
		if strings.Contains(message, "$") || strings.Contains(lower, "budget") {
			return 0.90
		}
	case "has_pets":
		if containsAny(lower, "pet", "dog", "cat", "animal") {
			return 0.95
		}
	case "urgency_level":
		if containsAny(lower, "asap", "urgent", "immediately", "soon") {
			return 0.90
		}
		if containsAny(lower, "flexible", "no rush", "browsing") {
			return 0.85
		}
		return 0.70
	case "move_in_date":
		if containsAny(lower, "move", "available", "date") {
			return 0.85
		}
	case "budget_conscious", "noise_sensitivity":
		return 0.70
	}

	return 0.80
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Fields returns the sorted list of known field names, for diagnostics.
func (p Preferences) Fields() []string {
	known := p.Known()
	fields := make([]string, 0, len(known))
	for f := range known {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
