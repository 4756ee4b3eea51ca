package catalog

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renterchat/internal/fuzzy"
)

// fixedSource forces deterministic special rolls. Float64 derives from
// Int63, so v=0 always lands under the 30% threshold and 1<<62 (0.5)
// always lands above it.
type fixedSource struct{ v int64 }

func (s *fixedSource) Int63() int64 { return s.v }
func (s *fixedSource) Seed(int64)   {}

func alwaysSpecialRand() *rand.Rand { return rand.New(&fixedSource{v: 0}) }
func neverSpecialRand() *rand.Rand  { return rand.New(&fixedSource{v: 1 << 62}) }

// stubEngine returns canned unit vectors keyed by text.
type stubEngine struct {
	vectors map[string][]float32
	calls   int
}

func (s *stubEngine) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls++
	if vec, ok := s.vectors[text]; ok {
		return vec, nil
	}
	return []float32{0, 0, 1}, nil
}

func (s *stubEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (s *stubEngine) Dimensions() int { return 3 }
func (s *stubEngine) Name() string    { return "stub" }

func newTestStore(t *testing.T, opts ...StoreOption) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), NewJSONProvider("testdata"), opts...)
	require.NoError(t, err)
	return store
}

func TestAvailableUnits(t *testing.T) {
	store := newTestStore(t)

	units := store.AvailableUnits("sunset-ridge", 2)
	require.Len(t, units, 1, "unavailable 2-bedroom must be filtered out")
	assert.Equal(t, "12B", units[0].UnitID)

	assert.Len(t, store.AvailableUnits("sunset-ridge", 1), 1)
	assert.Empty(t, store.AvailableUnits("sunset-ridge", 4))
	assert.Empty(t, store.AvailableUnits("no-such-place", 2))
}

func TestPetPolicyExact(t *testing.T) {
	store := newTestStore(t)

	res := store.PetPolicy(context.Background(), "sunset-ridge", "cats")
	assert.True(t, res.Policy.Allowed)
	assert.Equal(t, float64(50), res.Policy.Fee)
	assert.Equal(t, "cats", res.MatchedType)

	// Lookup is case and whitespace tolerant.
	res = store.PetPolicy(context.Background(), "sunset-ridge", " Dogs ")
	assert.True(t, res.Policy.Allowed)
	assert.Equal(t, 60, res.Policy.WeightLimit)
}

func TestPetPolicyUnknownCommunity(t *testing.T) {
	store := newTestStore(t)

	res := store.PetPolicy(context.Background(), "no-such-place", "cats")
	assert.False(t, res.Policy.Allowed)
	assert.Equal(t, "Community not found", res.Policy.Notes)
}

func TestPetPolicyUnknownTypeWithoutMatcher(t *testing.T) {
	store := newTestStore(t)

	res := store.PetPolicy(context.Background(), "sunset-ridge", "iguana")
	assert.False(t, res.Policy.Allowed)
	assert.Contains(t, res.Policy.Notes, "Policy for iguana not defined")
	assert.Contains(t, res.Policy.Notes, "cats, dogs")
}

func TestPetPolicyFuzzyResolution(t *testing.T) {
	engine := &stubEngine{vectors: map[string][]float32{
		"cats":   {1, 0, 0},
		"dogs":   {0, 1, 0},
		"kitten": {0.95, 0.05, 0},
	}}
	matcher := fuzzy.NewMatcher(engine, 0.6)
	store := newTestStore(t, WithMatcher(matcher))

	res := store.PetPolicy(context.Background(), "sunset-ridge", "kitten")
	assert.True(t, res.Policy.Allowed)
	assert.Equal(t, "cats", res.MatchedType)
	assert.Greater(t, res.MatchScore, 0.6)

	// An unrelated term stays unresolved and reports the known types.
	res = store.PetPolicy(context.Background(), "sunset-ridge", "tarantula")
	assert.False(t, res.Policy.Allowed)
	assert.Contains(t, res.Policy.Notes, "Known pet types")
}

func TestPetPolicyExactHitSkipsMatcher(t *testing.T) {
	engine := &stubEngine{vectors: map[string][]float32{
		"cats": {1, 0, 0},
		"dogs": {0, 1, 0},
	}}
	matcher := fuzzy.NewMatcher(engine, 0.6)
	store := newTestStore(t, WithMatcher(matcher))

	indexCalls := engine.calls // vocabulary embedding during load
	store.PetPolicy(context.Background(), "sunset-ridge", "cats")
	assert.Equal(t, indexCalls, engine.calls, "exact hit must not call the embedding engine")
}

func TestPricingSummerSpecial(t *testing.T) {
	store := newTestStore(t, WithRand(neverSpecialRand()))

	quote, err := store.Pricing("sunset-ridge", "12B", "2026-07-01")
	require.NoError(t, err)
	require.NotNil(t, quote)

	assert.Equal(t, float64(2400), quote.Pricing.BaseRent)
	assert.Equal(t, float64(2160), quote.Pricing.EffectiveRent, "10%% off base rent")
	assert.Equal(t, float64(2400), quote.Pricing.SecurityDeposit)
	assert.Equal(t, float64(75), quote.Pricing.ApplicationFee)
	assert.Equal(t, float64(150), quote.Pricing.AdminFee)
	assert.Equal(t, []int{6, 12, 15}, quote.LeaseTerms)
	assert.Equal(t, "2026-07-15", quote.AvailableDate)

	require.Len(t, quote.Specials, 1)
	assert.Equal(t, "Summer Special", quote.Specials[0].Name)
	assert.Equal(t, float64(240), quote.Specials[0].Discount)
	assert.Equal(t, "monthly_discount", quote.Specials[0].Type)
}

func TestPricingWinterHasNoSummerSpecial(t *testing.T) {
	store := newTestStore(t, WithRand(neverSpecialRand()))

	quote, err := store.Pricing("sunset-ridge", "12B", "2026-12-01")
	require.NoError(t, err)
	require.NotNil(t, quote)
	assert.Equal(t, quote.Pricing.BaseRent, quote.Pricing.EffectiveRent)
	assert.Empty(t, quote.Specials)
}

func TestPricingExtraSpecial(t *testing.T) {
	store := newTestStore(t, WithRand(alwaysSpecialRand()))

	quote, err := store.Pricing("sunset-ridge", "12B", "2026-12-01")
	require.NoError(t, err)
	require.Len(t, quote.Specials, 1)

	// First-month-free discounts one full month of base rent but does not
	// change the recurring effective rent.
	assert.Equal(t, "Look and Lease", quote.Specials[0].Name)
	assert.Equal(t, "first_month_free", quote.Specials[0].Type)
	assert.Equal(t, float64(2400), quote.Specials[0].Discount)
	assert.Equal(t, float64(2400), quote.Pricing.EffectiveRent)
}

func TestPricingUnknownTargets(t *testing.T) {
	store := newTestStore(t)

	quote, err := store.Pricing("no-such-place", "12B", "2026-07-01")
	require.NoError(t, err)
	assert.Nil(t, quote)

	quote, err = store.Pricing("sunset-ridge", "99Z", "2026-07-01")
	require.NoError(t, err)
	assert.Nil(t, quote)
}

func TestPricingInvalidDate(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Pricing("sunset-ridge", "12B", "July 1st")
	assert.Error(t, err)
}

func TestReloadSwapsSnapshot(t *testing.T) {
	dir := t.TempDir()
	copyTestdata(t, dir)

	store, err := NewStore(context.Background(), NewJSONProvider(dir))
	require.NoError(t, err)
	assert.Len(t, store.AvailableUnits("sunset-ridge", 2), 1)

	// Mark every sunset-ridge unit unavailable and reload.
	units := `{"sunset-ridge": [{"unit_id": "12B", "bedrooms": 2, "base_rent": 2400, "available": false, "available_date": "2026-07-15"}], "oak-valley": []}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "units.json"), []byte(units), 0644))
	require.NoError(t, store.Reload(context.Background()))

	assert.Empty(t, store.AvailableUnits("sunset-ridge", 2))
}

func TestReloadFailureKeepsSnapshot(t *testing.T) {
	dir := t.TempDir()
	copyTestdata(t, dir)

	store, err := NewStore(context.Background(), NewJSONProvider(dir))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "units.json"), []byte(`{broken`), 0644))
	assert.Error(t, store.Reload(context.Background()))

	// Previous snapshot still serves queries.
	assert.Len(t, store.AvailableUnits("sunset-ridge", 2), 1)
}

func TestCommunityAccessors(t *testing.T) {
	store := newTestStore(t)

	assert.Equal(t, []string{"oak-valley", "sunset-ridge"}, store.Communities())

	info, ok := store.CommunityInfo("oak-valley")
	require.True(t, ok)
	assert.Equal(t, "Oak Valley", info.Name)

	_, ok = store.CommunityInfo("nowhere")
	assert.False(t, ok)

	assert.Len(t, store.Specials(), 3)
}

func TestPetVocabulary(t *testing.T) {
	store := newTestStore(t)
	assert.Equal(t, []string{"cats", "dogs"}, store.Snapshot().PetVocabulary())
}

func copyTestdata(t *testing.T, dir string) {
	t.Helper()
	for _, name := range []string{"communities.json", "units.json", "pet_policies.json", "specials.json"} {
		data, err := os.ReadFile(filepath.Join("testdata", name))
		require.NoError(t, err, fmt.Sprintf("read fixture %s", name))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
	}
}
