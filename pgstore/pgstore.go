// Package pgstore persists named assets in a relational store with
// content-hash versioning and an append-only history. It is the durable
// fallback behind the remote asset API and the target of the resolver's
// write-through.
//
// One Store serves one owner: every row it touches carries the store's
// (owner_category, owner_key), and (owner_key, asset_key) is unique, so
// there is at most one live asset row per key at any time. A row is
// snapshotted into asset_history if and only if an update actually changes
// the content hash; rewriting identical content is a no-op.
//
// The SQL is written for PostgreSQL. Open connects through lib/pq and hands
// back a store that owns the pool; callers that manage their own *sql.DB use
// New instead and keep pool tuning to themselves.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq" // registers the "postgres" driver for Open

	"github.com/unkn0wn-root/confcascade"
)

// DefaultCategory is assigned when StoreAsset is called without one.
const DefaultCategory = "default"

// Asset is the current state of one stored asset.
type Asset struct {
	ID            int64
	OwnerCategory string
	OwnerKey      string
	AssetKey      string
	AssetCategory string
	Description   string
	Content       string
	ContentHash   string
	CreatedAt     time.Time
}

// AssetSummary is Asset metadata without the content payload; the hash is
// kept so operators can detect drift against the remote copy cheaply.
type AssetSummary struct {
	ID            int64
	OwnerCategory string
	OwnerKey      string
	AssetKey      string
	AssetCategory string
	Description   string
	ContentHash   string
	CreatedAt     time.Time
}

// HistoryEntry is an immutable snapshot of an asset taken immediately
// before an update replaced its content. AssetID weakly references the
// asset row it superseded.
type HistoryEntry struct {
	ID            int64
	AssetID       int64
	OwnerCategory string
	OwnerKey      string
	AssetKey      string
	AssetCategory string
	Description   string
	Content       string
	ContentHash   string
	CreatedAt     time.Time
}

// StoreOptions tune a single StoreAsset call.
type StoreOptions struct {
	Category    string // "" => DefaultCategory
	Description string
}

// Store reads and writes assets scoped to one owner.
type Store struct {
	db            *sql.DB
	ownerCategory string
	ownerKey      string
	log           confcascade.Logger
	ownsDB        bool

	mu         sync.Mutex
	schemaDone bool
	schemaErr  error

	closeOnce sync.Once
	closeErr  error
}

var _ confcascade.DurableStore = (*Store)(nil)

type Config struct {
	DB       *sql.DB // required
	OwnerKey string  // required; identifies this service's assets
	// OwnerCategory groups owners (e.g. "service"); defaults to "service".
	OwnerCategory string
	Logger        confcascade.Logger
	// OwnsDB: set true only if this store exclusively owns the pool, so
	// Close tears it down.
	OwnsDB bool
}

func New(cfg Config) (*Store, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("pgstore: db is required")
	}
	if cfg.OwnerKey == "" {
		return nil, fmt.Errorf("pgstore: owner key is required")
	}
	log := cfg.Logger
	if log == nil {
		log = confcascade.NopLogger{}
	}
	return &Store{
		db:            cfg.DB,
		ownerCategory: coalesceStr(cfg.OwnerCategory, "service"),
		ownerKey:      cfg.OwnerKey,
		log:           log,
		ownsDB:        cfg.OwnsDB,
	}, nil
}

// Open connects to PostgreSQL via lib/pq and returns a store that owns the
// resulting pool, so Close tears it down. cfg.DB and cfg.OwnsDB are ignored.
func Open(ctx context.Context, dsn string, cfg Config) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	cfg.DB = db
	cfg.OwnsDB = true
	s, err := New(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS asset (
		id BIGSERIAL PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		owner_category TEXT NOT NULL,
		asset_category TEXT NOT NULL DEFAULT 'default',
		owner_key TEXT NOT NULL,
		asset_key TEXT NOT NULL,
		description TEXT,
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		UNIQUE (owner_key, asset_key)
	)`,
	`CREATE TABLE IF NOT EXISTS asset_history (
		id BIGSERIAL PRIMARY KEY,
		asset_id BIGINT NOT NULL REFERENCES asset(id),
		created_at TIMESTAMPTZ NOT NULL,
		owner_category TEXT NOT NULL,
		asset_category TEXT NOT NULL,
		owner_key TEXT NOT NULL,
		asset_key TEXT NOT NULL,
		description TEXT,
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_asset_owner_key ON asset (owner_key)`,
	`CREATE INDEX IF NOT EXISTS idx_asset_asset_key ON asset (asset_key)`,
	`CREATE INDEX IF NOT EXISTS idx_asset_asset_category ON asset (asset_category)`,
	`CREATE INDEX IF NOT EXISTS idx_asset_owner_category ON asset (owner_category)`,
	`CREATE INDEX IF NOT EXISTS idx_asset_history_asset_id ON asset_history (asset_id)`,
}

// EnsureSchema creates the asset tables and indexes. Safe to call on every
// construction: the DDL executes once per store instance and later calls
// return the recorded outcome. A schema failure is fatal to the instance -
// every data operation afterwards refuses with the same error rather than
// proceeding uninitialized.
func (s *Store) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schemaDone {
		return s.schemaErr
	}
	s.schemaDone = true
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.schemaErr = &StoreError{Op: OpSchema, Err: err}
			s.log.Error("schema creation failed", confcascade.Fields{"err": err})
			return s.schemaErr
		}
	}
	s.log.Debug("schema ensured", confcascade.Fields{"owner": s.ownerKey})
	return nil
}

func (s *Store) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schemaDone && s.schemaErr != nil {
		return s.schemaErr
	}
	return nil
}

const assetColumns = `id, created_at, owner_category, asset_category, owner_key, asset_key, description, content, content_hash`

// GetAsset looks the asset up by key within this store's owner. A missing
// row is (nil, nil), never an error.
func (s *Store) GetAsset(ctx context.Context, key string) (*Asset, error) {
	return s.GetAssetInCategory(ctx, key, "")
}

// GetAssetInCategory is GetAsset additionally filtered by asset category.
func (s *Store) GetAssetInCategory(ctx context.Context, key, category string) (*Asset, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	a, err := s.getAsset(ctx, s.db, key, category, false)
	if err != nil && !errors.Is(err, ErrMalformedAsset) {
		return nil, &StoreError{Op: OpRead, Err: err}
	}
	return a, err
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getAsset(ctx context.Context, q rowQuerier, key, category string, forUpdate bool) (*Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM asset WHERE owner_key = $1 AND asset_key = $2`
	args := []any{s.ownerKey, key}
	if category != "" {
		query += ` AND asset_category = $3`
		args = append(args, category)
	}
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		a           Asset
		description sql.NullString
		content     sql.NullString
	)
	err := q.QueryRowContext(ctx, query, args...).Scan(
		&a.ID,
		&a.CreatedAt,
		&a.OwnerCategory,
		&a.AssetCategory,
		&a.OwnerKey,
		&a.AssetKey,
		&description,
		&content,
		&a.ContentHash,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !content.Valid {
		return nil, fmt.Errorf("pgstore: asset %q: %w", key, ErrMalformedAsset)
	}
	a.Description = description.String
	a.Content = content.String
	return &a, nil
}

// StoreAsset transactionally upserts content under key. A new key inserts;
// an existing key with different content snapshots the old row into
// asset_history and updates in place; identical content does nothing.
func (s *Store) StoreAsset(ctx context.Context, key, content string, opts StoreOptions) error {
	if err := s.ready(); err != nil {
		return err
	}
	category := coalesceStr(opts.Category, DefaultCategory)
	hash := confcascade.ContentHash(content)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: OpStore, Err: err}
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	existing, err := s.getAsset(ctx, tx, key, "", true)
	if err != nil {
		return &StoreError{Op: OpStore, Err: err}
	}

	switch {
	case existing == nil:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO asset (owner_category, asset_category, owner_key, asset_key, description, content, content_hash)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.ownerCategory, category, s.ownerKey, key,
			nullable(opts.Description), content, hash,
		)
		if err != nil {
			return &StoreError{Op: OpStore, Err: err}
		}
		s.log.Info("asset created", confcascade.Fields{"key": key, "hash": hash})

	case existing.ContentHash == hash:
		// unchanged content: no history row, no created_at bump
		s.log.Debug("asset unchanged, skipping write", confcascade.Fields{"key": key, "hash": hash})

	default:
		// snapshot the pre-update row verbatim, then replace in place
		_, err = tx.ExecContext(ctx,
			`INSERT INTO asset_history (asset_id, created_at, owner_category, asset_category, owner_key, asset_key, description, content, content_hash)
			 SELECT id, created_at, owner_category, asset_category, owner_key, asset_key, description, content, content_hash
			 FROM asset WHERE id = $1`,
			existing.ID,
		)
		if err != nil {
			return &StoreError{Op: OpStore, Err: err}
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE asset SET content = $1, content_hash = $2, description = $3, asset_category = $4, created_at = now() WHERE id = $5`,
			content, hash, nullable(opts.Description), category, existing.ID,
		)
		if err != nil {
			return &StoreError{Op: OpStore, Err: err}
		}
		s.log.Info("asset updated", confcascade.Fields{
			"key":     key,
			"oldHash": existing.ContentHash,
			"newHash": hash,
		})
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Op: OpStore, Err: err}
	}
	return nil
}

// ListAssets returns metadata for this owner's assets, newest first.
// Category "" lists every category.
func (s *Store) ListAssets(ctx context.Context, category string) ([]AssetSummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := `SELECT id, created_at, owner_category, asset_category, owner_key, asset_key, description, content_hash
		FROM asset WHERE owner_key = $1`
	args := []any{s.ownerKey}
	if category != "" {
		query += ` AND asset_category = $2`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{Op: OpRead, Err: err}
	}
	defer rows.Close()

	var out []AssetSummary
	for rows.Next() {
		var (
			a           AssetSummary
			description sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.CreatedAt, &a.OwnerCategory, &a.AssetCategory,
			&a.OwnerKey, &a.AssetKey, &description, &a.ContentHash); err != nil {
			return nil, &StoreError{Op: OpRead, Err: err}
		}
		a.Description = description.String
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: OpRead, Err: err}
	}
	return out, nil
}

// GetAssetHistory returns the superseded versions of an asset, most recent
// first, joined through the asset's current (owner_key, asset_key).
func (s *Store) GetAssetHistory(ctx context.Context, key string) ([]HistoryEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT h.id, h.asset_id, h.created_at, h.owner_category, h.asset_category, h.owner_key, h.asset_key, h.description, h.content, h.content_hash
		 FROM asset_history h
		 JOIN asset a ON a.id = h.asset_id
		 WHERE a.owner_key = $1 AND a.asset_key = $2
		 ORDER BY h.id DESC`,
		s.ownerKey, key,
	)
	if err != nil {
		return nil, &StoreError{Op: OpRead, Err: err}
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			h           HistoryEntry
			description sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.AssetID, &h.CreatedAt, &h.OwnerCategory, &h.AssetCategory,
			&h.OwnerKey, &h.AssetKey, &description, &h.Content, &h.ContentHash); err != nil {
			return nil, &StoreError{Op: OpRead, Err: err}
		}
		h.Description = description.String
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: OpRead, Err: err}
	}
	return out, nil
}

// DeleteAsset removes an asset and its history in one transaction,
// reporting whether the asset existed. History rows go first to satisfy the
// reference to the asset row.
func (s *Store) DeleteAsset(ctx context.Context, key string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, &StoreError{Op: OpDelete, Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`DELETE FROM asset_history WHERE asset_id IN (SELECT id FROM asset WHERE owner_key = $1 AND asset_key = $2)`,
		s.ownerKey, key,
	)
	if err != nil {
		return false, &StoreError{Op: OpDelete, Err: err}
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM asset WHERE owner_key = $1 AND asset_key = $2`,
		s.ownerKey, key,
	)
	if err != nil {
		return false, &StoreError{Op: OpDelete, Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, &StoreError{Op: OpDelete, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return false, &StoreError{Op: OpDelete, Err: err}
	}
	if affected > 0 {
		s.log.Info("asset deleted", confcascade.Fields{"key": key})
	}
	return affected > 0, nil
}

// Close releases the pool when this store owns it. Idempotent.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.ownsDB {
			s.closeErr = s.db.Close()
		}
	})
	return s.closeErr
}

// LoadContent implements confcascade.DurableStore.
func (s *Store) LoadContent(ctx context.Context, key, category string) (string, bool, error) {
	a, err := s.GetAssetInCategory(ctx, key, category)
	if err != nil {
		return "", false, err
	}
	if a == nil {
		return "", false, nil
	}
	return a.Content, true, nil
}

// StoreContent implements confcascade.DurableStore.
func (s *Store) StoreContent(ctx context.Context, key, content, category string) error {
	return s.StoreAsset(ctx, key, content, StoreOptions{Category: category})
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func coalesceStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
