package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/rankpulse/internal/domain"
)

// PostgreSQL error codes the store translates into domain errors.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// entityColumns must match the Scan order in scanEntity.
const entityColumns = `id, name, rating, attributes, created_at, updated_at`

// matchColumns must match the Scan order in scanMatch.
const matchColumns = `id, entity_a, entity_b, winner_id, session_token, created_at`

// Store implements domain.Store backed by PostgreSQL. Timestamps come from
// the injected clock so they agree with the rest of the process.
type Store struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

var _ domain.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool, clock clockwork.Clock) *Store {
	return &Store{pool: pool, clock: clock}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- entities ---

func (s *Store) CreateEntity(ctx context.Context, ne domain.NewEntity) (*domain.Entity, bool, error) {
	attrs := ne.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	now := s.clock.Now()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO entities (id, name, rating, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (name) DO NOTHING
		RETURNING `+entityColumns,
		uuid.New(), ne.Name, domain.BaseRating, attrs, now)

	e, err := scanEntity(row)
	if err == nil {
		return e, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, translate("create entity", err)
	}

	existing, err := scanEntity(s.pool.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE name = $1`, ne.Name))
	if err != nil {
		return nil, false, translate("get entity by name", err)
	}
	return existing, false, nil
}

func (s *Store) GetEntity(ctx context.Context, id uuid.UUID) (*domain.Entity, error) {
	e, err := scanEntity(s.pool.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEntityNotFound
	}
	if err != nil {
		return nil, translate("get entity", err)
	}
	return e, nil
}

func (s *Store) GetEntities(ctx context.Context, ids ...uuid.UUID) ([]domain.Entity, error) {
	return s.queryEntities(ctx, "get entities",
		`SELECT `+entityColumns+` FROM entities WHERE id = ANY($1)`, ids)
}

func (s *Store) ListEntities(ctx context.Context) ([]domain.Entity, error) {
	return s.queryEntities(ctx, "list entities",
		`SELECT `+entityColumns+` FROM entities`)
}

func (s *Store) ListNewest(ctx context.Context, limit int) ([]domain.Entity, error) {
	return s.queryEntities(ctx, "list newest entities",
		`SELECT `+entityColumns+` FROM entities ORDER BY created_at DESC, id LIMIT $1`, limit)
}

func (s *Store) ListRanked(ctx context.Context, limit int) ([]domain.Entity, error) {
	return s.queryEntities(ctx, "list ranked entities",
		`SELECT `+entityColumns+` FROM entities ORDER BY rating DESC, id ASC LIMIT $1`, limit)
}

func (s *Store) SearchByName(ctx context.Context, query string, limit int) ([]domain.Entity, error) {
	return s.queryEntities(ctx, "search entities", `
		SELECT `+entityColumns+` FROM entities
		WHERE name ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY rating DESC, id ASC
		LIMIT $2`,
		escapeLike(query), limit)
}

func (s *Store) CountAhead(ctx context.Context, e domain.Entity) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM entities WHERE rating > $1 OR (rating = $1 AND id < $2)`,
		e.Rating, e.ID).Scan(&n)
	if err != nil {
		return 0, translate("count entities ahead", err)
	}
	return n, nil
}

func (s *Store) queryEntities(ctx context.Context, op, sql string, args ...any) ([]domain.Entity, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer rows.Close()

	var out []domain.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, translate(op, err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(op, err)
	}
	return out, nil
}

// --- matches ---

func (s *Store) CreateMatch(ctx context.Context, m domain.MatchRecord) (*domain.MatchRecord, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	winner := uuid.NullUUID{}
	if m.WinnerID != nil {
		winner = uuid.NullUUID{UUID: *m.WinnerID, Valid: true}
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO matches (id, entity_a, entity_b, winner_id, session_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+matchColumns,
		m.ID, m.EntityA, m.EntityB, winner, m.SessionToken, s.clock.Now())

	created, err := scanMatch(row)
	if err != nil {
		return nil, translate("create match", err)
	}
	return created, nil
}

func (s *Store) ApplyRatingChange(ctx context.Context, matchID uuid.UUID, changes []domain.RatingChange) ([]domain.RatingHistoryEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, translate("begin rating change", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// the match row lock serialises concurrent attempts to score the same match
	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM matches WHERE id = $1 FOR UPDATE`, matchID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("match %s: %w", matchID, domain.ErrEntityNotFound)
	}
	if err != nil {
		return nil, translate("lock match", err)
	}

	var scored bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rating_history WHERE match_id = $1)`, matchID).Scan(&scored); err != nil {
		return nil, translate("check match scored", err)
	}
	if scored {
		return nil, domain.ErrMatchAlreadyScored
	}

	now := s.clock.Now()

	// entity rows are always locked in id order so two votes never deadlock
	ordered := slices.Clone(changes)
	slices.SortFunc(ordered, func(a, b domain.RatingChange) int {
		return bytes.Compare(a.EntityID[:], b.EntityID[:])
	})
	for _, c := range ordered {
		tag, err := tx.Exec(ctx,
			`UPDATE entities SET rating = $1, updated_at = $2 WHERE id = $3 AND rating = $4`,
			c.NewRating, now, c.EntityID, c.OldRating)
		if err != nil {
			return nil, translate("update rating", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, s.missingOrStale(ctx, tx, c.EntityID)
		}
	}

	entries := make([]domain.RatingHistoryEntry, 0, len(changes))
	for _, c := range changes {
		entry := domain.RatingHistoryEntry{
			EntityID:     c.EntityID,
			MatchID:      matchID,
			RatingBefore: c.OldRating,
			RatingAfter:  c.NewRating,
			Delta:        c.Delta,
			CreatedAt:    now,
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO rating_history (entity_id, match_id, rating_before, rating_after, delta, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			c.EntityID, matchID, c.OldRating, c.NewRating, c.Delta, now).Scan(&entry.ID)
		if err != nil {
			return nil, translate("insert rating history", err)
		}
		entries = append(entries, entry)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translate("commit rating change", err)
	}
	return entries, nil
}

func (s *Store) missingOrStale(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM entities WHERE id = $1)`, id).Scan(&exists); err != nil {
		return translate("check entity", err)
	}
	if !exists {
		return fmt.Errorf("entity %s: %w", id, domain.ErrEntityNotFound)
	}
	return domain.ErrConcurrentUpdate
}

func (s *Store) SumDeltasSince(ctx context.Context, since time.Time) (map[uuid.UUID]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entity_id, SUM(delta) FROM rating_history WHERE created_at >= $1 GROUP BY entity_id`, since)
	if err != nil {
		return nil, translate("sum deltas", err)
	}
	defer rows.Close()

	sums := make(map[uuid.UUID]int)
	for rows.Next() {
		var id uuid.UUID
		var sum int64
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, translate("sum deltas", err)
		}
		sums[id] = int(sum)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("sum deltas", err)
	}
	return sums, nil
}

func (s *Store) ListRecentMatches(ctx context.Context, limit int) ([]domain.MatchSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.entity_a, m.entity_b, m.winner_id, m.session_token, m.created_at,
		       ea.name, eb.name, COALESCE(ha.delta, 0), COALESCE(hb.delta, 0)
		FROM matches m
		JOIN entities ea ON ea.id = m.entity_a
		JOIN entities eb ON eb.id = m.entity_b
		LEFT JOIN rating_history ha ON ha.match_id = m.id AND ha.entity_id = m.entity_a
		LEFT JOIN rating_history hb ON hb.match_id = m.id AND hb.entity_id = m.entity_b
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, translate("list recent matches", err)
	}
	defer rows.Close()

	var out []domain.MatchSummary
	for rows.Next() {
		var sum domain.MatchSummary
		var winner uuid.NullUUID
		err := rows.Scan(&sum.Match.ID, &sum.Match.EntityA, &sum.Match.EntityB, &winner,
			&sum.Match.SessionToken, &sum.Match.CreatedAt,
			&sum.NameA, &sum.NameB, &sum.DeltaA, &sum.DeltaB)
		if err != nil {
			return nil, translate("list recent matches", err)
		}
		sum.Match.WinnerID = winnerPtr(winner)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list recent matches", err)
	}
	return out, nil
}

func (s *Store) ListUnscoredMatches(ctx context.Context, before time.Time) ([]domain.MatchRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+matchColumns+` FROM matches m
		WHERE m.winner_id IS NOT NULL
		  AND m.created_at < $1
		  AND NOT EXISTS (SELECT 1 FROM rating_history h WHERE h.match_id = m.id)
		ORDER BY m.created_at, m.id`, before)
	if err != nil {
		return nil, translate("list unscored matches", err)
	}
	defer rows.Close()

	var out []domain.MatchRecord
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, translate("list unscored matches", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list unscored matches", err)
	}
	return out, nil
}

func (s *Store) ListRatingDrift(ctx context.Context) ([]domain.RatingDrift, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.id, e.name, e.rating, $1::integer + COALESCE(SUM(h.delta), 0) AS expected
		FROM entities e
		LEFT JOIN rating_history h ON h.entity_id = e.id
		GROUP BY e.id
		HAVING e.rating <> $1::integer + COALESCE(SUM(h.delta), 0)
		ORDER BY e.name`, domain.BaseRating)
	if err != nil {
		return nil, translate("list rating drift", err)
	}
	defer rows.Close()

	var out []domain.RatingDrift
	for rows.Next() {
		var d domain.RatingDrift
		if err := rows.Scan(&d.EntityID, &d.Name, &d.Rating, &d.ExpectedRating); err != nil {
			return nil, translate("list rating drift", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list rating drift", err)
	}
	return out, nil
}

func (s *Store) Stats(ctx context.Context, since time.Time) (*domain.Stats, error) {
	stats := &domain.Stats{}
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM entities),
			(SELECT count(*) FROM matches),
			(SELECT COALESCE(round(avg(rating)), 0)::bigint FROM entities),
			(SELECT count(*) FROM matches WHERE created_at >= $1),
			(SELECT count(*) FROM entities WHERE created_at >= $1),
			(SELECT COALESCE(round(avg(abs(delta))), 0)::bigint FROM rating_history WHERE created_at >= $1)`,
		since).Scan(
		&stats.TotalEntities,
		&stats.TotalMatches,
		&stats.AverageRating,
		&stats.MatchesToday,
		&stats.NewEntitiesToday,
		&stats.AverageDeltaToday,
	)
	if err != nil {
		return nil, translate("compute stats", err)
	}

	top, err := s.ListRanked(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(top) == 1 {
		stats.TopEntity = &top[0]
	}
	return stats, nil
}

// --- scanning and errors ---

func scanEntity(row pgx.Row) (*domain.Entity, error) {
	var e domain.Entity
	if err := row.Scan(&e.ID, &e.Name, &e.Rating, &e.Attributes, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanMatch(row pgx.Row) (*domain.MatchRecord, error) {
	var m domain.MatchRecord
	var winner uuid.NullUUID
	if err := row.Scan(&m.ID, &m.EntityA, &m.EntityB, &winner, &m.SessionToken, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.WinnerID = winnerPtr(winner)
	return &m, nil
}

func winnerPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

// escapeLike quotes the LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// translate maps constraint and concurrency failures onto domain errors and
// marks everything else as a persistence failure.
func translate(op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return domain.Persistence(op, err)
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case "matches_session_token_key":
			return domain.ErrDuplicateSession
		case "rating_history_match_entity_key":
			return domain.ErrMatchAlreadyScored
		}
	case pgForeignKeyViolation:
		return fmt.Errorf("%s: %w", op, domain.ErrEntityNotFound)
	case pgCheckViolation:
		if pgErr.ConstraintName == "entities_name_length" {
			return fmt.Errorf("%s: %w", op, domain.ErrInvalidEntity)
		}
		return fmt.Errorf("%s: %w", op, domain.ErrInvalidVote)
	case pgSerializationFailure, pgDeadlockDetected:
		return domain.ErrConcurrentUpdate
	}
	return domain.Persistence(op, err)
}
