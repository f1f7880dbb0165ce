package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fieldroute/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Migrate creates the tables if they do not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trips (
			id uuid PRIMARY KEY,
			tenant_id text NOT NULL,
			rep_id text,
			name text,
			notes text,
			version int NOT NULL DEFAULT 1,
			status text NOT NULL,
			start_label text,
			start_lat double precision NOT NULL,
			start_lng double precision NOT NULL,
			start_at timestamptz NOT NULL,
			dwell_minutes double precision NOT NULL DEFAULT 30,
			total_km double precision NOT NULL DEFAULT 0,
			total_minutes double precision NOT NULL DEFAULT 0,
			optimized_at timestamptz,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS trips_tenant_idx ON trips (tenant_id, id)`,
		`CREATE TABLE IF NOT EXISTS trip_stops (
			id uuid PRIMARY KEY,
			trip_id uuid NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
			tenant_id text NOT NULL,
			account_id text,
			label text,
			lat double precision NOT NULL,
			lng double precision NOT NULL,
			stop_order int NOT NULL,
			leg_km double precision NOT NULL DEFAULT 0,
			leg_minutes double precision NOT NULL DEFAULT 0,
			leg_source text,
			estimated_arrival timestamptz,
			status text NOT NULL DEFAULT 'pending',
			completed_at timestamptz,
			UNIQUE (trip_id, stop_order)
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id uuid PRIMARY KEY,
			tenant_id text NOT NULL,
			url text NOT NULL,
			events jsonb NOT NULL,
			secret text
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_deliveries (
			id uuid PRIMARY KEY,
			tenant_id text NOT NULL,
			subscription_id uuid,
			event_type text NOT NULL,
			url text NOT NULL,
			secret text,
			payload bytea NOT NULL,
			status text NOT NULL DEFAULT 'pending',
			attempts int NOT NULL DEFAULT 0,
			next_attempt_at timestamptz NOT NULL DEFAULT now(),
			dedup_key text,
			last_error text,
			response_code int,
			latency_ms int,
			delivered_at timestamptz,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now(),
			UNIQUE (tenant_id, event_type, url, dedup_key)
		)`,
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (p *Postgres) CreateTrip(ctx context.Context, t model.Trip) (model.Trip, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = model.TripStatusPlanned
	}
	t.Version = 1
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Trip{}, err
	}
	defer func() { _ = tx.Rollback() }()
	err = tx.QueryRowContext(ctx, `INSERT INTO trips (id, tenant_id, rep_id, name, notes, version, status, start_label, start_lat, start_lng, start_at, dwell_minutes, total_km, total_minutes, optimized_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15) RETURNING created_at, updated_at`,
		t.ID, t.TenantID, nullIfEmpty(t.RepID), nullIfEmpty(t.Name), nullIfEmpty(t.Notes), t.Version, t.Status, nullIfEmpty(t.Start.Label), t.Start.Lat, t.Start.Lng, t.StartAt, t.DwellMinutes, t.TotalKm, t.TotalMinutes, t.OptimizedAt).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return model.Trip{}, err
	}
	if err := insertStops(ctx, tx, t.TenantID, t.ID, t.Stops); err != nil {
		return model.Trip{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Trip{}, err
	}
	return t, nil
}

func insertStops(ctx context.Context, tx *sql.Tx, tenantID, tripID string, stops []model.TripStop) error {
	for _, s := range stops {
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO trip_stops (id, trip_id, tenant_id, account_id, label, lat, lng, stop_order, leg_km, leg_minutes, leg_source, estimated_arrival, status, completed_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			s.ID, tripID, tenantID, nullIfEmpty(s.AccountID), nullIfEmpty(s.Location.Label), s.Location.Lat, s.Location.Lng, s.StopOrder, s.LegKm, s.LegMinutes, nullIfEmpty(s.LegSource), s.EstimatedArrival, s.Status, s.CompletedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) GetTrip(ctx context.Context, tenantID, tripID string) (model.Trip, error) {
	var t model.Trip
	var optimizedAt sql.NullTime
	row := p.db.QueryRowContext(ctx, `SELECT id::text, version, status, COALESCE(rep_id,''), COALESCE(name,''), COALESCE(notes,''), COALESCE(start_label,''), start_lat, start_lng, start_at, dwell_minutes, total_km, total_minutes, optimized_at, created_at, updated_at
		FROM trips WHERE tenant_id=$1 AND id=$2`, tenantID, tripID)
	if err := row.Scan(&t.ID, &t.Version, &t.Status, &t.RepID, &t.Name, &t.Notes, &t.Start.Label, &t.Start.Lat, &t.Start.Lng, &t.StartAt, &t.DwellMinutes, &t.TotalKm, &t.TotalMinutes, &optimizedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Trip{}, ErrNotFound
		}
		return model.Trip{}, err
	}
	t.TenantID = tenantID
	if optimizedAt.Valid {
		at := optimizedAt.Time
		t.OptimizedAt = &at
	}
	stops, err := p.tripStops(ctx, tripID)
	if err != nil {
		return model.Trip{}, err
	}
	t.Stops = stops
	return t, nil
}

func (p *Postgres) tripStops(ctx context.Context, tripID string) ([]model.TripStop, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, COALESCE(account_id,''), COALESCE(label,''), lat, lng, stop_order, leg_km, leg_minutes, COALESCE(leg_source,''), estimated_arrival, status, completed_at
		FROM trip_stops WHERE trip_id=$1 ORDER BY stop_order`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.TripStop{}
	for rows.Next() {
		var s model.TripStop
		var arrival, completed sql.NullTime
		if err := rows.Scan(&s.ID, &s.AccountID, &s.Location.Label, &s.Location.Lat, &s.Location.Lng, &s.StopOrder, &s.LegKm, &s.LegMinutes, &s.LegSource, &arrival, &s.Status, &completed); err != nil {
			return nil, err
		}
		if arrival.Valid {
			s.EstimatedArrival = arrival.Time
		}
		if completed.Valid {
			at := completed.Time
			s.CompletedAt = &at
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ListTrips(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.Trip, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id::text FROM trips WHERE tenant_id=$1`
	args := []any{tenantID}
	if status != "" {
		args = append(args, status)
		q += fmt.Sprintf(` AND status=$%d`, len(args))
	}
	if cursor != "" {
		args = append(args, cursor)
		q += fmt.Sprintf(` AND id::text > $%d`, len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY id LIMIT $%d`, len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	out := make([]model.Trip, 0, len(ids))
	for _, id := range ids {
		t, err := p.GetTrip(ctx, tenantID, id)
		if err != nil {
			return nil, "", err
		}
		out = append(out, t)
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (p *Postgres) PatchTrip(ctx context.Context, tenantID, tripID string, patch model.TripPatch) (model.Trip, error) {
	t, err := p.GetTrip(ctx, tenantID, tripID)
	if err != nil {
		return model.Trip{}, err
	}
	if patch.Status != "" {
		t.Status = patch.Status
	}
	if patch.RepID != "" {
		t.RepID = patch.RepID
	}
	if patch.Name != "" {
		t.Name = patch.Name
	}
	if patch.Notes != "" {
		t.Notes = patch.Notes
	}
	if patch.StartAt != "" {
		if at, perr := time.Parse(time.RFC3339, patch.StartAt); perr == nil {
			t.StartAt = at
		}
	}
	if patch.DwellMinutes != nil {
		t.DwellMinutes = *patch.DwellMinutes
	}
	res, err := p.db.ExecContext(ctx, `UPDATE trips SET status=$1, rep_id=$2, name=$3, notes=$4, start_at=$5, dwell_minutes=$6, version=version+1, updated_at=now()
		WHERE tenant_id=$7 AND id=$8 AND version=$9`,
		t.Status, nullIfEmpty(t.RepID), nullIfEmpty(t.Name), nullIfEmpty(t.Notes), t.StartAt, t.DwellMinutes, tenantID, tripID, t.Version)
	if err != nil {
		return model.Trip{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Trip{}, ErrVersionConflict
	}
	return p.GetTrip(ctx, tenantID, tripID)
}

func (p *Postgres) DeleteTrip(ctx context.Context, tenantID, tripID string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM trips WHERE tenant_id=$1 AND id=$2`, tenantID, tripID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ReplaceStops(ctx context.Context, tenantID, tripID string, stops []model.TripStop, totalKm, totalMinutes float64, optimizedAt time.Time) (model.Trip, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Trip{}, err
	}
	defer func() { _ = tx.Rollback() }()
	// A zero optimizedAt means the stop set changed without an
	// optimization run; the existing timestamp is kept.
	var optAt *time.Time
	if !optimizedAt.IsZero() {
		optAt = &optimizedAt
	}
	res, err := tx.ExecContext(ctx, `UPDATE trips SET total_km=$1, total_minutes=$2, optimized_at=COALESCE($3, optimized_at), version=version+1, updated_at=now() WHERE tenant_id=$4 AND id=$5`,
		totalKm, totalMinutes, optAt, tenantID, tripID)
	if err != nil {
		return model.Trip{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Trip{}, ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM trip_stops WHERE trip_id=$1`, tripID); err != nil {
		return model.Trip{}, err
	}
	if err := insertStops(ctx, tx, tenantID, tripID, stops); err != nil {
		return model.Trip{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Trip{}, err
	}
	return p.GetTrip(ctx, tenantID, tripID)
}

func (p *Postgres) RemoveStop(ctx context.Context, tenantID, tripID, stopID string) (model.Trip, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Trip{}, err
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx, `DELETE FROM trip_stops WHERE tenant_id=$1 AND trip_id=$2 AND id=$3`, tenantID, tripID, stopID)
	if err != nil {
		return model.Trip{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Trip{}, ErrNotFound
	}
	// Renumber in two steps (through negative values) so the
	// (trip_id, stop_order) unique constraint never fires mid-update.
	_, err = tx.ExecContext(ctx, `WITH ranked AS (
			SELECT id, row_number() OVER (ORDER BY stop_order) AS rn FROM trip_stops WHERE trip_id=$1
		) UPDATE trip_stops s SET stop_order = -r.rn FROM ranked r WHERE s.id = r.id`, tripID)
	if err != nil {
		return model.Trip{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE trip_stops SET stop_order = -stop_order - 1 WHERE trip_id=$1`, tripID); err != nil {
		return model.Trip{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE trips SET version=version+1, updated_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, tripID); err != nil {
		return model.Trip{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Trip{}, err
	}
	return p.GetTrip(ctx, tenantID, tripID)
}

func (p *Postgres) CompleteStop(ctx context.Context, tenantID, tripID, stopID string, at time.Time) (model.Trip, error) {
	res, err := p.db.ExecContext(ctx, `UPDATE trip_stops SET status='completed', completed_at=$1 WHERE tenant_id=$2 AND trip_id=$3 AND id=$4`, at, tenantID, tripID, stopID)
	if err != nil {
		return model.Trip{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Trip{}, ErrNotFound
	}
	if _, err := p.db.ExecContext(ctx, `UPDATE trips SET version=version+1, updated_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, tripID); err != nil {
		return model.Trip{}, err
	}
	return p.GetTrip(ctx, tenantID, tripID)
}

func (p *Postgres) CreateSubscription(ctx context.Context, tenantID string, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	ev, _ := json.Marshal(req.Events)
	_, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, tenantID, req.URL, ev, req.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id, TenantID: tenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 AND events @> $2::jsonb`, tenantID, fmt.Sprintf("[%q]", eventType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &events); err != nil {
			return nil, err
		}
		s.TenantID = tenantID
		_ = json.Unmarshal(events, &s.Events)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	var out []model.Subscription
	var last string
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil {
			return nil, "", err
		}
		s.TenantID = tenantID
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
		last = s.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return err
}

// Webhook deliveries

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	dk := computeDedupKey(payload)
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
		ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dk)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
		FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(1 * time.Minute)
			nextAttemptAt = &t
		}
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$1, next_attempt_at=$2, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$3`,
			nullIfEmpty(lastError), *nextAttemptAt, id, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url FROM webhook_deliveries WHERE tenant_id=$1`
	var rows *sql.Rows
	var err error
	if status != "" {
		q += ` AND status=$2 ORDER BY id LIMIT $3`
		rows, err = p.db.QueryContext(ctx, q, tenantID, status, limit)
	} else {
		q += ` ORDER BY id LIMIT $2`
		rows, err = p.db.QueryContext(ctx, q, tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []map[string]any{}
	var last string
	for rows.Next() {
		var id, typ, st, lastErr, url string
		var attempts int
		var nextAt sql.NullTime
		if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url); err != nil {
			return nil, "", err
		}
		m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
		if nextAt.Valid {
			m["nextAttemptAt"] = nextAt.Time
		}
		if lastErr != "" {
			m["lastError"] = lastErr
		}
		out = append(out, m)
		last = id
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return err
}

func (p *Postgres) TripStats(ctx context.Context, tenantID string) (map[string]any, error) {
	var trips, stops, completed int
	var totalKm sql.NullFloat64
	err := p.db.QueryRowContext(ctx, `SELECT count(*), COALESCE(sum(total_km),0) FROM trips WHERE tenant_id=$1`, tenantID).Scan(&trips, &totalKm)
	if err != nil {
		return nil, err
	}
	err = p.db.QueryRowContext(ctx, `SELECT count(*), count(*) FILTER (WHERE status='completed') FROM trip_stops WHERE tenant_id=$1`, tenantID).Scan(&stops, &completed)
	if err != nil {
		return nil, err
	}
	return map[string]any{"trips": trips, "stops": stops, "completedStops": completed, "totalKm": totalKm.Float64}, nil
}

// Helpers

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// computeDedupKey prefers the event's own id so re-enqueued events
// collapse, falling back to a short payload hash.
func computeDedupKey(payload []byte) string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &probe); err == nil && probe.ID != "" {
		return probe.ID
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}
