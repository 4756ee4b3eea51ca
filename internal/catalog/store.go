package catalog

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"renterchat/internal/fuzzy"
	"renterchat/internal/logging"
)

// extraSpecialChance is the probability that one non-summer special is
// attached to a quote in addition to any date-based discount.
const extraSpecialChance = 0.3

// Store serves catalog queries against the current snapshot. All reads go
// through an atomic pointer, so a reload never blocks or tears a query.
type Store struct {
	provider Provider
	snap     atomic.Pointer[Snapshot]

	matcher *fuzzy.Matcher // nil when fuzzy matching is disabled

	rngMu sync.Mutex
	rng   *rand.Rand
}

// StoreOption customizes Store construction.
type StoreOption func(*Store)

// WithMatcher attaches a fuzzy matcher used to resolve unrecognized pet
// types against the catalog's known ones.
func WithMatcher(m *fuzzy.Matcher) StoreOption {
	return func(s *Store) { s.matcher = m }
}

// WithRand overrides the randomness source used for promotional specials.
// Tests pass a seeded source to make quotes deterministic.
func WithRand(r *rand.Rand) StoreOption {
	return func(s *Store) { s.rng = r }
}

// NewStore loads the initial snapshot from provider and returns a ready
// store. A failed initial load is an error; the caller is expected to treat
// it as fatal.
func NewStore(ctx context.Context, provider Provider, opts ...StoreOption) (*Store, error) {
	s := &Store{
		provider: provider,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Reload(ctx); err != nil {
		return nil, fmt.Errorf("initial catalog load: %w", err)
	}
	return s, nil
}

// Reload loads a fresh snapshot and swaps it in atomically. On failure the
// previous snapshot stays in place and the error is returned.
func (s *Store) Reload(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryCatalog, "catalog load")
	snap, err := s.provider.Load(ctx)
	timer.Stop()
	if err != nil {
		logging.Get(logging.CategoryCatalog).Error("catalog load from %s failed: %v", s.provider.Source(), err)
		return err
	}

	s.snap.Store(snap)
	logging.Catalog("catalog loaded from %s: %d communities, %d units, %d specials",
		s.provider.Source(), len(snap.Communities), snap.UnitCount(), len(snap.Specials))

	if s.matcher != nil {
		if err := s.matcher.BuildIndex(ctx, snap.PetVocabulary()); err != nil {
			// Degraded mode: exact lookups still work without the index.
			logging.Get(logging.CategoryCatalog).Warn("pet type index build failed, fuzzy matching disabled: %v", err)
		}
		s.matcher.ClearCache()
	}
	return nil
}

// Snapshot returns the current catalog view. Callers must not mutate it.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// PetVocabulary returns the sorted union of pet type keys across all
// community policies. This is the vocabulary the fuzzy matcher indexes.
func (s *Snapshot) PetVocabulary() []string {
	seen := make(map[string]bool)
	for _, policies := range s.PetPolicies {
		for petType := range policies {
			seen[petType] = true
		}
	}
	vocab := make([]string, 0, len(seen))
	for petType := range seen {
		vocab = append(vocab, petType)
	}
	sort.Strings(vocab)
	return vocab
}

// AvailableUnits returns units in the community that are available and have
// exactly the requested bedroom count. An unknown community yields an empty
// slice, not an error.
func (s *Store) AvailableUnits(communityID string, bedrooms int) []Unit {
	snap := s.Snapshot()
	units, ok := snap.Units[communityID]
	if !ok {
		logging.Get(logging.CategoryCatalog).Warn("community %s not found in inventory", communityID)
		return nil
	}

	var available []Unit
	for _, u := range units {
		if u.Available && u.Bedrooms == bedrooms {
			available = append(available, u)
		}
	}
	logging.Catalog("found %d available %d-bedroom units in %s", len(available), bedrooms, communityID)
	return available
}

// PolicyResult is the answer to a pet policy lookup, including how the
// requested pet type was resolved.
type PolicyResult struct {
	CommunityID string    `json:"community_id"`
	PetType     string    `json:"pet_type"`
	MatchedType string    `json:"matched_type,omitempty"`
	MatchScore  float64   `json:"match_score,omitempty"`
	Policy      PetPolicy `json:"policy"`
}

// PetPolicy looks up the policy for petType in the given community. When the
// exact key is missing, the fuzzy matcher (if available) resolves phrasings
// like "kitten" or "golden retriever" to a catalog pet type. A failed or
// below-threshold match falls back to a not-defined policy listing the
// community's known pet types.
func (s *Store) PetPolicy(ctx context.Context, communityID, petType string) PolicyResult {
	snap := s.Snapshot()
	result := PolicyResult{CommunityID: communityID, PetType: petType}

	policies, ok := snap.PetPolicies[communityID]
	if !ok {
		logging.Get(logging.CategoryCatalog).Warn("pet policies not found for community %s", communityID)
		result.Policy = PetPolicy{Allowed: false, Notes: "Community not found"}
		return result
	}

	key := strings.ToLower(strings.TrimSpace(petType))
	if policy, ok := policies[key]; ok {
		logging.Catalog("pet policy for %s in %s: allowed=%v", key, communityID, policy.Allowed)
		result.MatchedType = key
		result.Policy = policy
		return result
	}

	// Exact miss: try to resolve the phrasing against the catalog vocabulary.
	if s.matcher != nil && s.matcher.Enabled() {
		matched, score, err := s.matcher.Match(ctx, key)
		if err != nil {
			logging.Get(logging.CategoryMatch).Warn("pet type match for %q failed: %v", key, err)
		} else if matched != "" {
			if policy, ok := policies[matched]; ok {
				logging.Match("resolved pet type %q -> %q (score %.3f)", key, matched, score)
				result.MatchedType = matched
				result.MatchScore = score
				result.Policy = policy
				return result
			}
			// Matched a type another community defines but this one doesn't.
			logging.MatchDebug("pet type %q matched %q, not defined in %s", key, matched, communityID)
		}
	}

	known := make([]string, 0, len(policies))
	for k := range policies {
		known = append(known, k)
	}
	sort.Strings(known)
	result.Policy = PetPolicy{
		Allowed: false,
		Notes:   fmt.Sprintf("Policy for %s not defined. Known pet types: %s", petType, strings.Join(known, ", ")),
	}
	return result
}

// Pricing builds a quote for the given unit and move-in date. Unknown
// communities or units return nil. Move-ins during June through August get
// the Summer Special; every quote independently has a 30% chance of one
// additional non-summer special.
func (s *Store) Pricing(communityID, unitID, moveInDate string) (*PricingQuote, error) {
	snap := s.Snapshot()
	units, ok := snap.Units[communityID]
	if !ok {
		logging.Get(logging.CategoryCatalog).Warn("community %s not found for pricing lookup", communityID)
		return nil, nil
	}

	var unit *Unit
	for i := range units {
		if units[i].UnitID == unitID {
			unit = &units[i]
			break
		}
	}
	if unit == nil {
		logging.Get(logging.CategoryCatalog).Warn("unit %s not found in community %s", unitID, communityID)
		return nil, nil
	}

	moveIn, err := time.Parse("2006-01-02", moveInDate)
	if err != nil {
		return nil, fmt.Errorf("invalid move-in date %q: %w", moveInDate, err)
	}

	baseRent := unit.BaseRent
	effectiveRent := baseRent
	var applied []AppliedSpecial

	if moveIn.Month() >= time.June && moveIn.Month() <= time.August {
		for _, special := range snap.Specials {
			if special.Name != "Summer Special" {
				continue
			}
			discount := baseRent * special.Amount / 100
			effectiveRent -= discount
			applied = append(applied, AppliedSpecial{
				Name:     special.Name,
				Discount: discount,
				Type:     "monthly_discount",
			})
			logging.Catalog("applied Summer Special: $%.2f discount on %s", discount, unitID)
			break
		}
	}

	if extra := s.pickExtraSpecial(snap); extra != nil {
		switch extra.DiscountType {
		case "first_month_free":
			applied = append(applied, AppliedSpecial{
				Name:     extra.Name,
				Discount: baseRent,
				Type:     "first_month_free",
			})
		case "flat_discount":
			applied = append(applied, AppliedSpecial{
				Name:     extra.Name,
				Discount: extra.Amount,
				Type:     "move_in_credit",
			})
		}
	}

	quote := &PricingQuote{
		CommunityID: communityID,
		UnitID:      unitID,
		UnitDetails: *unit,
		MoveInDate:  moveInDate,
		Pricing: Fees{
			BaseRent:        baseRent,
			EffectiveRent:   effectiveRent,
			SecurityDeposit: baseRent, // one month's rent
			ApplicationFee:  ApplicationFee,
			AdminFee:        AdminFee,
		},
		Specials:      applied,
		LeaseTerms:    LeaseTerms(),
		AvailableDate: unit.AvailableDate,
	}
	logging.Catalog("pricing for %s/%s: base=$%.2f effective=$%.2f specials=%d",
		communityID, unitID, baseRent, effectiveRent, len(applied))
	return quote, nil
}

// pickExtraSpecial rolls the 30% chance and picks one non-summer special.
func (s *Store) pickExtraSpecial(snap *Snapshot) *Special {
	var others []Special
	for _, special := range snap.Specials {
		if special.Name != "Summer Special" {
			others = append(others, special)
		}
	}
	if len(others) == 0 {
		return nil
	}

	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	if s.rng.Float64() >= extraSpecialChance {
		return nil
	}
	pick := others[s.rng.Intn(len(others))]
	return &pick
}

// CommunityInfo returns details about a community, or false if unknown.
func (s *Store) CommunityInfo(communityID string) (Community, bool) {
	c, ok := s.Snapshot().Communities[communityID]
	return c, ok
}

// Communities returns the sorted list of known community IDs.
func (s *Store) Communities() []string {
	snap := s.Snapshot()
	ids := make([]string, 0, len(snap.Communities))
	for id := range snap.Communities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Specials returns a copy of the current specials list.
func (s *Store) Specials() []Special {
	snap := s.Snapshot()
	out := make([]Special, len(snap.Specials))
	copy(out, snap.Specials)
	return out
}
