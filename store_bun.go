package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

const (
	credentialKeyToken    = "access_token"
	credentialKeySnapshot = "session_snapshot"

	credentialOpTimeout = 2 * time.Second
)

type credentialRecord struct {
	bun.BaseModel `bun:"table:session_credentials,alias:cred"`
	Key           string     `bun:"key,pk" json:"key"`
	Value         string     `bun:"value,notnull" json:"value,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// CredentialCache is the durable store behind both the TokenStore and the
// SnapshotStore: one keyed-row sqlite table, token and snapshot under
// separate keys, surviving process restarts the way a browser's cookie plus
// persisted store pair would.
//
// TokenStore reads stay synchronous and local (a sqlite lookup, never a
// network round-trip), so any API wrapper can pull the bearer token while
// building a request.
type CredentialCache struct {
	db     *bun.DB
	logger Logger
}

// CredentialCacheOption customizes the cache.
type CredentialCacheOption func(*CredentialCache)

// WithCredentialCacheLogger overrides the cache logger.
func WithCredentialCacheLogger(logger Logger) CredentialCacheOption {
	return func(c *CredentialCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCredentialCache prepares the backing table and returns the cache.
func NewCredentialCache(ctx context.Context, db *bun.DB, opts ...CredentialCacheOption) (*CredentialCache, error) {
	c := &CredentialCache{
		db:     db,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if _, err := db.NewCreateTable().
		Model((*credentialRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to prepare credential table")
	}

	return c, nil
}

var _ TokenStore = (*CredentialCache)(nil)
var _ SnapshotStore = (*CredentialCache)(nil)

// Get implements TokenStore. Read failures degrade to "no token": the
// reconciliation pass fails safe on top of this.
func (c *CredentialCache) Get() string {
	value, err := c.read(credentialKeyToken)
	if err != nil {
		c.logger.Warn("token read failed: %v", err)
		return ""
	}
	return value
}

// Set implements TokenStore.
func (c *CredentialCache) Set(token string) {
	if err := c.write(credentialKeyToken, token); err != nil {
		c.logger.Error("token write failed: %v", err)
	}
}

// Remove implements TokenStore.
func (c *CredentialCache) Remove() {
	if err := c.delete(credentialKeyToken); err != nil {
		c.logger.Error("token remove failed: %v", err)
	}
}

// Load implements SnapshotStore.
func (c *CredentialCache) Load() (*Snapshot, error) {
	value, err := c.read(credentialKeySnapshot)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read session snapshot")
	}
	if value == "" {
		return nil, nil
	}

	snap := &Snapshot{}
	if err := json.Unmarshal([]byte(value), snap); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "corrupt session snapshot")
	}
	return snap, nil
}

// Save implements SnapshotStore.
func (c *CredentialCache) Save(snap Snapshot) error {
	value, err := json.Marshal(snap)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode session snapshot")
	}
	if err := c.write(credentialKeySnapshot, string(value)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session snapshot")
	}
	return nil
}

// Clear implements SnapshotStore.
func (c *CredentialCache) Clear() error {
	if err := c.delete(credentialKeySnapshot); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear session snapshot")
	}
	return nil
}

func (c *CredentialCache) read(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), credentialOpTimeout)
	defer cancel()

	rec := &credentialRecord{}
	err := c.db.NewSelect().
		Model(rec).
		Where("?TableAlias.key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.Value, nil
}

func (c *CredentialCache) write(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), credentialOpTimeout)
	defer cancel()

	now := time.Now()
	rec := &credentialRecord{Key: key, Value: value, UpdatedAt: &now}
	_, err := c.db.NewInsert().
		Model(rec).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (c *CredentialCache) delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), credentialOpTimeout)
	defer cancel()

	_, err := c.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	return err
}
