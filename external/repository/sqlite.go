package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/tablesession/internal/repository"
	_ "modernc.org/sqlite"
)

// SQLiteRepository backs local development and tests. It holds a single
// connection so the foreign_keys pragma applies to every statement.
type SQLiteRepository struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if err := RunSQLiteMigration(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run sqlite migration: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() {
	_ = r.db.Close()
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (name, campaign_id, master_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, 'Pending', ?, ?)`,
		input.Name, input.CampaignID, input.MasterID, toMillis(now), toMillis(now))
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &repository.Session{
		ID:         id,
		Name:       input.Name,
		CampaignID: input.CampaignID,
		MasterID:   input.MasterID,
		Status:     repository.SessionStatusPending,
		CreatedAt:  fromMillis(toMillis(now)),
		UpdatedAt:  fromMillis(toMillis(now)),
	}, nil
}

func (r *SQLiteRepository) SaveSession(ctx context.Context, s *repository.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ?, started_at = ?, ended_at = ? WHERE id = ?`,
		string(s.Status), toMillis(s.UpdatedAt), nullMillis(s.StartedAt), nullMillis(s.EndedAt), s.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n != 1 {
		return fmt.Errorf("session %d no longer exists", s.ID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_players WHERE session_id = ?`, s.ID); err != nil {
		return err
	}
	for _, userID := range s.ActivePlayers {
		if _, err := tx.ExecContext(ctx, `INSERT INTO session_players (session_id, user_id) VALUES (?, ?)`, s.ID, userID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) GetSessionByID(ctx context.Context, id int64) (*repository.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?`, id)
	s, err := scanSQLiteSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

func (r *SQLiteRepository) ListSessions(ctx context.Context, filter repository.SessionFilter) ([]repository.Session, error) {
	q, args := buildListQuery(filter, sqlitePlaceholder)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var list []repository.Session
	for rows.Next() {
		s, err := scanSQLiteSession(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		list = append(list, *s)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	// Release the only connection before querying players.
	if err := rows.Close(); err != nil {
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

func (r *SQLiteRepository) GetCampaign(ctx context.Context, id int64) (*repository.Campaign, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, master_id, is_public, COALESCE(join_token, ''), COALESCE(password_hash, '')
		 FROM campaigns WHERE id = ?`, id)
	var c repository.Campaign
	err := row.Scan(&c.ID, &c.Name, &c.MasterID, &c.IsPublic, &c.JoinToken, &c.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// InsertCampaign loads a campaign row for local fixtures. Campaign lifecycle
// belongs to the campaign service.
func (r *SQLiteRepository) InsertCampaign(ctx context.Context, c repository.Campaign) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO campaigns (name, master_id, is_public, join_token, password_hash) VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.MasterID, c.IsPublic, nullString(c.JoinToken), nullString(c.PasswordHash))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) listPlayers(ctx context.Context, sessionIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return out, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(sessionIDs)), ", ")
	args := make([]any, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, user_id FROM session_players
		 WHERE session_id IN (`+marks+`) ORDER BY session_id, user_id`, args...)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row rowScanner) (*repository.Session, error) {
	var (
		s         repository.Session
		status    string
		createdAt int64
		updatedAt int64
		startedAt sql.NullInt64
		endedAt   sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.Name, &s.CampaignID, &s.MasterID, &status, &createdAt, &updatedAt, &startedAt, &endedAt); err != nil {
		return nil, err
	}
	s.Status = repository.SessionStatus(status)
	s.CreatedAt = fromMillis(createdAt)
	s.UpdatedAt = fromMillis(updatedAt)
	s.StartedAt = fromNullMillis(startedAt)
	s.EndedAt = fromNullMillis(endedAt)
	return &s, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
