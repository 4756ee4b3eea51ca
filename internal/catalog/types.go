// Package catalog holds the apartment inventory: communities, units, pet
// policies, and running specials. Data is loaded through a Provider into an
// immutable Snapshot; the Store swaps snapshots atomically so readers never
// observe a half-loaded catalog.
package catalog

// Community describes a single apartment community.
type Community struct {
	Name      string   `json:"name"`
	Location  string   `json:"location"`
	Amenities []string `json:"amenities"`
}

// Unit is a single rentable apartment within a community.
type Unit struct {
	UnitID        string  `json:"unit_id"`
	Bedrooms      int     `json:"bedrooms"`
	Bathrooms     float64 `json:"bathrooms"`
	Sqft          int     `json:"sqft"`
	Description   string  `json:"description"`
	Floor         int     `json:"floor"`
	AvailableDate string  `json:"available_date"`
	BaseRent      float64 `json:"base_rent"`
	Available     bool    `json:"available"`
}

// PetPolicy describes whether and under what terms a pet type is allowed.
// Fields beyond Allowed are zero-valued when the policy forbids the pet.
type PetPolicy struct {
	Allowed      bool     `json:"allowed"`
	Fee          float64  `json:"fee,omitempty"`
	Deposit      float64  `json:"deposit,omitempty"`
	MonthlyRent  float64  `json:"monthly_rent,omitempty"`
	MaxPets      int      `json:"max_pets,omitempty"`
	WeightLimit  int      `json:"weight_limit,omitempty"`
	Restrictions []string `json:"restrictions,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

// Special is a promotional offer. DiscountType is one of "percentage",
// "first_month_free", or "flat_discount".
type Special struct {
	Name         string  `json:"name"`
	DiscountType string  `json:"discount_type"`
	Amount       float64 `json:"amount"`
	Expires      string  `json:"expires,omitempty"`
}

// Snapshot is one consistent view of the full catalog. Snapshots are
// immutable after construction; Reload builds a new one and swaps it in.
type Snapshot struct {
	Communities map[string]Community            `json:"communities"`
	Units       map[string][]Unit               `json:"units"`
	PetPolicies map[string]map[string]PetPolicy `json:"pet_policies"`
	Specials    []Special                       `json:"specials"`
}

// UnitCount returns the total number of units across all communities.
func (s *Snapshot) UnitCount() int {
	n := 0
	for _, units := range s.Units {
		n += len(units)
	}
	return n
}

// AppliedSpecial records one discount that was applied to a quote.
type AppliedSpecial struct {
	Name     string  `json:"name"`
	Discount float64 `json:"discount"`
	Type     string  `json:"type"`
}

// Fees groups the recurring and one-time charges on a quote.
type Fees struct {
	BaseRent        float64 `json:"base_rent"`
	EffectiveRent   float64 `json:"effective_rent"`
	SecurityDeposit float64 `json:"security_deposit"`
	ApplicationFee  float64 `json:"application_fee"`
	AdminFee        float64 `json:"admin_fee"`
}

// PricingQuote is the full pricing breakdown for one unit and move-in date.
type PricingQuote struct {
	CommunityID   string           `json:"community_id"`
	UnitID        string           `json:"unit_id"`
	UnitDetails   Unit             `json:"unit_details"`
	MoveInDate    string           `json:"move_in_date"`
	Pricing       Fees             `json:"pricing"`
	Specials      []AppliedSpecial `json:"specials"`
	LeaseTerms    []int            `json:"lease_terms"`
	AvailableDate string           `json:"available_date"`
}

// Standard one-time fees charged on every lease.
const (
	ApplicationFee = 75
	AdminFee       = 150
)

// LeaseTerms lists the lease lengths (in months) offered on every unit.
func LeaseTerms() []int { return []int{6, 12, 15} }
