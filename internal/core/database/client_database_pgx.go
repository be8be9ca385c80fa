package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/markdave123-py/smartdoc/internal/config"
	"github.com/markdave123-py/smartdoc/internal/core"
	"github.com/markdave123-py/smartdoc/internal/models"
)

var _ core.SessionStore = (*DatabaseClient)(nil)

// DatabaseClient stores sessions as JSONB rows in Postgres. The API key is
// kept out of the JSON and sealed into its own column.
type DatabaseClient struct {
	db     *sql.DB
	sealer *sealer
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn := cfg.DatabaseURL
	if cfg.SslCertPath != "" {
		if _, err := os.Stat(cfg.SslCertPath); err != nil {
			return nil, fmt.Errorf("ssl cert not accessible at %q: %w", cfg.SslCertPath, err)
		}
		u, err := url.Parse(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		q := u.Query()
		q.Set("sslmode", "verify-ca")
		q.Set("sslrootcert", cfg.SslCertPath)
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	seal, err := newSealer(cfg.SessionSecret)
	if err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET unset; stored API keys will not survive a restart")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	logger.Info("postgres session store ready")

	return &DatabaseClient{db: db, sealer: seal}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *DatabaseClient) Get(ctx context.Context, id string) (*models.Session, error) {
	const q = `SELECT data, credential FROM sessions WHERE id = $1`

	var raw, box []byte
	err := c.db.QueryRowContext(ctx, q, id).Scan(&raw, &box)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.decode(id, raw, box)
}

func (c *DatabaseClient) decode(id string, raw, box []byte) (*models.Session, error) {
	var s models.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	cred, err := c.sealer.open(id, box)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	s.Credential = cred
	return &s, nil
}

func (c *DatabaseClient) Save(ctx context.Context, sess *models.Session) error {
	if sess == nil || sess.ID == "" {
		return errors.New("nil session")
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	box, err := c.sealer.seal(sess.ID, sess.Credential)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO sessions (id, data, credential, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET data = EXCLUDED.data, credential = EXCLUDED.credential, updated_at = EXCLUDED.updated_at
	`
	_, err = c.db.ExecContext(ctx, q, sess.ID, raw, box, sess.CreatedAt, sess.UpdatedAt)
	return err
}

func (c *DatabaseClient) Delete(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (c *DatabaseClient) Expired(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id FROM sessions WHERE updated_at < $1`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (c *DatabaseClient) DeleteIdle(ctx context.Context, id string, before time.Time) (*models.Session, error) {
	const q = `DELETE FROM sessions WHERE id = $1 AND updated_at < $2 RETURNING data, credential`

	var raw, box []byte
	err := c.db.QueryRowContext(ctx, q, id, before).Scan(&raw, &box)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.decode(id, raw, box)
}
