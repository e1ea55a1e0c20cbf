package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foxseedlab/tablesession/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO sessions AS s (name, campaign_id, master_id, status)
		 VALUES ($1, $2, $3, 'Pending')
		 RETURNING `+sessionColumns,
		input.Name, input.CampaignID, input.MasterID)
	return scanPostgresSession(row)
}

func (r *PostgresRepository) SaveSession(ctx context.Context, s *repository.Session) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE sessions SET status = $2, updated_at = $3, started_at = $4, ended_at = $5 WHERE id = $1`,
		s.ID, string(s.Status), s.UpdatedAt, s.StartedAt, s.EndedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("session %d no longer exists", s.ID)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM session_players WHERE session_id = $1`, s.ID); err != nil {
		return err
	}
	if len(s.ActivePlayers) > 0 {
		if _, err := tx.Exec(ctx,
			`INSERT INTO session_players (session_id, user_id) SELECT $1, unnest($2::bigint[])`,
			s.ID, s.ActivePlayers); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) GetSessionByID(ctx context.Context, id int64) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions s WHERE s.id = $1`, id)
	s, err := scanPostgresSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	players, err := r.listPlayers(ctx, []int64{s.ID})
	if err != nil {
		return nil, err
	}
	s.ActivePlayers = players[s.ID]
	return s, nil
}

func (r *PostgresRepository) ListSessions(ctx context.Context, filter repository.SessionFilter) ([]repository.Session, error) {
	q, args := buildListQuery(filter, postgresPlaceholder)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.Session
	for rows.Next() {
		s, err := scanPostgresSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(list))
	for _, s := range list {
		ids = append(ids, s.ID)
	}
	players, err := r.listPlayers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].ActivePlayers = players[list[i].ID]
	}
	return list, nil
}

func (r *PostgresRepository) GetCampaign(ctx context.Context, id int64) (*repository.Campaign, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, master_id, is_public, COALESCE(join_token, ''), COALESCE(password_hash, '')
		 FROM campaigns WHERE id = $1`, id)
	var c repository.Campaign
	err := row.Scan(&c.ID, &c.Name, &c.MasterID, &c.IsPublic, &c.JoinToken, &c.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) listPlayers(ctx context.Context, sessionIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, user_id FROM session_players
		 WHERE session_id = ANY($1) ORDER BY session_id, user_id`, sessionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sessionID, userID int64
		if err := rows.Scan(&sessionID, &userID); err != nil {
			return nil, err
		}
		out[sessionID] = append(out[sessionID], userID)
	}
	return out, rows.Err()
}

func scanPostgresSession(row pgx.Row) (*repository.Session, error) {
	var (
		s         repository.Session
		status    string
		startedAt *time.Time
		endedAt   *time.Time
	)
	if err := row.Scan(&s.ID, &s.Name, &s.CampaignID, &s.MasterID, &status, &s.CreatedAt, &s.UpdatedAt, &startedAt, &endedAt); err != nil {
		return nil, err
	}
	s.Status = repository.SessionStatus(status)
	s.StartedAt = startedAt
	s.EndedAt = endedAt
	return &s, nil
}
