package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"renterchat/internal/config"
)

// Provider loads the four catalog collections from a backing source.
// Implementations must be safe for repeated Load calls (hot reload).
type Provider interface {
	// Load reads all four collections and returns a fresh Snapshot.
	Load(ctx context.Context) (*Snapshot, error)
	// Source describes where the data comes from, for logging.
	Source() string
}

// NewProvider builds a Provider from catalog configuration.
func NewProvider(cfg config.CatalogConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "json":
		return NewJSONProvider(cfg.DataDir), nil
	case "sqlite":
		return NewSQLiteProvider(cfg.DatabasePath)
	default:
		return nil, fmt.Errorf("unsupported catalog provider: %s", cfg.Provider)
	}
}

// JSONProvider reads the catalog from four JSON files in a data directory:
// communities.json, units.json, pet_policies.json, and specials.json.
type JSONProvider struct {
	dataDir string
}

// NewJSONProvider creates a JSON file provider rooted at dataDir.
func NewJSONProvider(dataDir string) *JSONProvider {
	return &JSONProvider{dataDir: dataDir}
}

func (p *JSONProvider) Source() string {
	return fmt.Sprintf("json:%s", p.dataDir)
}

// Load reads the four data files concurrently. Any missing or malformed
// file fails the whole load; the Store treats that as fatal on startup and
// as a skipped reload afterward.
func (p *JSONProvider) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.readFile(gctx, "communities.json", &snap.Communities) })
	g.Go(func() error { return p.readFile(gctx, "units.json", &snap.Units) })
	g.Go(func() error { return p.readFile(gctx, "pet_policies.json", &snap.PetPolicies) })
	g.Go(func() error { return p.readFile(gctx, "specials.json", &snap.Specials) })

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (p *JSONProvider) readFile(ctx context.Context, name string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(p.dataDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}
