package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLiteProvider reads the catalog from a SQLite database. Row payloads are
// stored as JSON documents so the schema stays aligned with the JSON files:
//
//	communities(id TEXT PRIMARY KEY, doc TEXT)
//	units(community_id TEXT, doc TEXT)
//	pet_policies(community_id TEXT, pet_type TEXT, doc TEXT)
//	specials(doc TEXT)
type SQLiteProvider struct {
	db   *sql.DB
	path string
}

// NewSQLiteProvider opens the database at path.
func NewSQLiteProvider(path string) (*SQLiteProvider, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite catalog provider requires a database path")
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	return &SQLiteProvider{db: db, path: path}, nil
}

func (p *SQLiteProvider) Source() string {
	return fmt.Sprintf("sqlite:%s", p.path)
}

// Close releases the database handle.
func (p *SQLiteProvider) Close() error {
	return p.db.Close()
}

// Load reads all four collections in one transaction so the snapshot is
// consistent even if the database is being updated concurrently.
func (p *SQLiteProvider) Load(ctx context.Context) (*Snapshot, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin catalog read: %w", err)
	}
	defer tx.Rollback()

	snap := &Snapshot{
		Communities: make(map[string]Community),
		Units:       make(map[string][]Unit),
		PetPolicies: make(map[string]map[string]PetPolicy),
	}

	if err := p.loadCommunities(ctx, tx, snap); err != nil {
		return nil, err
	}
	if err := p.loadUnits(ctx, tx, snap); err != nil {
		return nil, err
	}
	if err := p.loadPetPolicies(ctx, tx, snap); err != nil {
		return nil, err
	}
	if err := p.loadSpecials(ctx, tx, snap); err != nil {
		return nil, err
	}

	return snap, nil
}

func (p *SQLiteProvider) loadCommunities(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, doc FROM communities`)
	if err != nil {
		return fmt.Errorf("query communities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return fmt.Errorf("scan community: %w", err)
		}
		var c Community
		if err := json.Unmarshal([]byte(doc), &c); err != nil {
			return fmt.Errorf("parse community %s: %w", id, err)
		}
		snap.Communities[id] = c
	}
	return rows.Err()
}

func (p *SQLiteProvider) loadUnits(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	rows, err := tx.QueryContext(ctx, `SELECT community_id, doc FROM units`)
	if err != nil {
		return fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var communityID, doc string
		if err := rows.Scan(&communityID, &doc); err != nil {
			return fmt.Errorf("scan unit: %w", err)
		}
		var u Unit
		if err := json.Unmarshal([]byte(doc), &u); err != nil {
			return fmt.Errorf("parse unit in %s: %w", communityID, err)
		}
		snap.Units[communityID] = append(snap.Units[communityID], u)
	}
	return rows.Err()
}

func (p *SQLiteProvider) loadPetPolicies(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	rows, err := tx.QueryContext(ctx, `SELECT community_id, pet_type, doc FROM pet_policies`)
	if err != nil {
		return fmt.Errorf("query pet policies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var communityID, petType, doc string
		if err := rows.Scan(&communityID, &petType, &doc); err != nil {
			return fmt.Errorf("scan pet policy: %w", err)
		}
		var policy PetPolicy
		if err := json.Unmarshal([]byte(doc), &policy); err != nil {
			return fmt.Errorf("parse pet policy %s/%s: %w", communityID, petType, err)
		}
		if snap.PetPolicies[communityID] == nil {
			snap.PetPolicies[communityID] = make(map[string]PetPolicy)
		}
		snap.PetPolicies[communityID][petType] = policy
	}
	return rows.Err()
}

func (p *SQLiteProvider) loadSpecials(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	rows, err := tx.QueryContext(ctx, `SELECT doc FROM specials`)
	if err != nil {
		return fmt.Errorf("query specials: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return fmt.Errorf("scan special: %w", err)
		}
		var s Special
		if err := json.Unmarshal([]byte(doc), &s); err != nil {
			return fmt.Errorf("parse special: %w", err)
		}
		snap.Specials = append(snap.Specials, s)
	}
	return rows.Err()
}
