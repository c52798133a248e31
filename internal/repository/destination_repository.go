package repository

import (
	"context"
	"errors"
	"strings"

	"market-sentry/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// errNoDatabase is returned by write operations when the service runs
// without Postgres. Reads degrade to empty results instead so the webhook
// and scan paths keep their uniform behavior.
var errNoDatabase = errors.New("no database configured")

// DestinationRepository owns the servers/channels tables: which chat channel a
// (server, ticker, signal type) binding delivers to, plus the per-server
// enable flag and shared secret.
type DestinationRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewDestinationRepository(pool PgxPool, tracer trace.Tracer) *DestinationRepository {
	return &DestinationRepository{pool: pool, tracer: tracer}
}

func (r *DestinationRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "destination-repo.run-migrations")
	defer span.End()

	if r.pool == nil {
		return errNoDatabase
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS servers (
			server_id BIGINT PRIMARY KEY,
			alerts_on BOOLEAN DEFAULT TRUE,
			secret TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS channels (
			id SERIAL PRIMARY KEY,
			channel_id BIGINT NOT NULL,
			server_id BIGINT NOT NULL,
			ticker VARCHAR(50) NOT NULL,
			signal_type VARCHAR(50) DEFAULT 'NONE',
			UNIQUE (server_id, ticker, signal_type)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_channels_ticker_signal ON channels (ticker, signal_type)`,
	}
	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// LookupDestination resolves the channel bound by one server for a ticker and
// signal type. Returns nil with no error when nothing is bound.
func (r *DestinationRepository) LookupDestination(ctx context.Context, serverID int64, ticker, signalType string) (*domain.Destination, error) {
	_, span := r.tracer.Start(ctx, "destination-repo.lookup-destination")
	defer span.End()

	if r.pool == nil {
		return nil, nil
	}

	row := r.pool.QueryRow(ctx,
		`SELECT channel_id FROM channels
		 WHERE server_id = $1 AND ticker = $2 AND signal_type = $3`,
		serverID, strings.ToUpper(ticker), strings.ToUpper(signalType),
	)

	var channelID int64
	if err := row.Scan(&channelID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.Destination{
		ChannelID:  channelID,
		ServerID:   serverID,
		Ticker:     strings.ToUpper(ticker),
		SignalType: strings.ToUpper(signalType),
	}, nil
}

// ListDestinationsForSignal returns every enabled destination subscribed to a
// ticker for a signal type. The default (NONE) binding also receives advanced
// signals so a server without per-signal channels still gets its alerts.
func (r *DestinationRepository) ListDestinationsForSignal(ctx context.Context, ticker, signalType string) ([]domain.Destination, error) {
	_, span := r.tracer.Start(ctx, "destination-repo.list-destinations")
	defer span.End()

	if r.pool == nil {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT c.channel_id, c.server_id, c.ticker, c.signal_type
		 FROM channels c
		 JOIN servers s ON s.server_id = c.server_id
		 WHERE c.ticker = $1
		   AND (c.signal_type = $2 OR c.signal_type = 'NONE')
		   AND s.alerts_on = TRUE
		 ORDER BY c.server_id, c.channel_id`,
		strings.ToUpper(ticker), strings.ToUpper(signalType),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Destination
	for rows.Next() {
		var d domain.Destination
		if err := rows.Scan(&d.ChannelID, &d.ServerID, &d.Ticker, &d.SignalType); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetSecret returns the shared secret for a server, or "" when none is set
// or the server is unknown.
func (r *DestinationRepository) GetSecret(ctx context.Context, serverID int64) (string, error) {
	_, span := r.tracer.Start(ctx, "destination-repo.get-secret")
	defer span.End()

	if r.pool == nil {
		return "", nil
	}

	row := r.pool.QueryRow(ctx, `SELECT COALESCE(secret, '') FROM servers WHERE server_id = $1`, serverID)

	var secret string
	if err := row.Scan(&secret); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return secret, nil
}

// AlertsEnabled reports the enable flag for a server. Unknown servers are
// disabled.
func (r *DestinationRepository) AlertsEnabled(ctx context.Context, serverID int64) (bool, error) {
	_, span := r.tracer.Start(ctx, "destination-repo.alerts-enabled")
	defer span.End()

	if r.pool == nil {
		return false, nil
	}

	row := r.pool.QueryRow(ctx, `SELECT alerts_on FROM servers WHERE server_id = $1`, serverID)

	var enabled bool
	if err := row.Scan(&enabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return enabled, nil
}

// SetChannel binds a ticker (and optional advanced signal type) to a channel,
// creating the server row on first use.
func (r *DestinationRepository) SetChannel(ctx context.Context, serverID, channelID int64, ticker, signalType string) error {
	_, span := r.tracer.Start(ctx, "destination-repo.set-channel")
	defer span.End()

	if r.pool == nil {
		return errNoDatabase
	}
	if err := r.ensureServer(ctx, serverID); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO channels (channel_id, server_id, ticker, signal_type)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (server_id, ticker, signal_type) DO UPDATE
		 SET channel_id = EXCLUDED.channel_id`,
		channelID, serverID, strings.ToUpper(ticker), normalizeSignalType(signalType),
	)
	return err
}

// RemoveChannel deletes a binding and reports whether it existed.
func (r *DestinationRepository) RemoveChannel(ctx context.Context, serverID int64, ticker, signalType string) (bool, error) {
	_, span := r.tracer.Start(ctx, "destination-repo.remove-channel")
	defer span.End()

	if r.pool == nil {
		return false, errNoDatabase
	}

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM channels WHERE server_id = $1 AND ticker = $2 AND signal_type = $3`,
		serverID, strings.ToUpper(ticker), normalizeSignalType(signalType),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetSecret stores a server secret; empty input clears it.
func (r *DestinationRepository) SetSecret(ctx context.Context, serverID int64, secret string) error {
	_, span := r.tracer.Start(ctx, "destination-repo.set-secret")
	defer span.End()

	if r.pool == nil {
		return errNoDatabase
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO servers (server_id, secret)
		 VALUES ($1, NULLIF($2, ''))
		 ON CONFLICT (server_id) DO UPDATE
		 SET secret = EXCLUDED.secret`,
		serverID, strings.TrimSpace(secret),
	)
	return err
}

// ToggleAlerts flips a server's enable flag and returns the new value.
func (r *DestinationRepository) ToggleAlerts(ctx context.Context, serverID int64) (bool, error) {
	_, span := r.tracer.Start(ctx, "destination-repo.toggle-alerts")
	defer span.End()

	if r.pool == nil {
		return false, errNoDatabase
	}
	if err := r.ensureServer(ctx, serverID); err != nil {
		return false, err
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE servers SET alerts_on = NOT alerts_on WHERE server_id = $1 RETURNING alerts_on`,
		serverID,
	)
	var enabled bool
	if err := row.Scan(&enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

// ListChannels returns every binding a server owns.
func (r *DestinationRepository) ListChannels(ctx context.Context, serverID int64) ([]domain.Destination, error) {
	_, span := r.tracer.Start(ctx, "destination-repo.list-channels")
	defer span.End()

	if r.pool == nil {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT channel_id, server_id, ticker, signal_type
		 FROM channels WHERE server_id = $1
		 ORDER BY ticker, signal_type`,
		serverID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Destination
	for rows.Next() {
		var d domain.Destination
		if err := rows.Scan(&d.ChannelID, &d.ServerID, &d.Ticker, &d.SignalType); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DestinationRepository) ensureServer(ctx context.Context, serverID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO servers (server_id) VALUES ($1) ON CONFLICT (server_id) DO NOTHING`,
		serverID,
	)
	return err
}

func normalizeSignalType(signalType string) string {
	v := strings.ToUpper(strings.TrimSpace(signalType))
	if v == "" {
		return domain.DefaultSignalType
	}
	return v
}
