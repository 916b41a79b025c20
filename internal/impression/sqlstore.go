package impression

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore is the transactional backend: each record is its own row and
// UpdateUser runs inside a transaction.
type SQLStore struct {
	db *sqlx.DB
}

const sqlSchema = `
CREATE TABLE IF NOT EXISTS users (
	user_id      TEXT PRIMARY KEY,
	nickname     TEXT NOT NULL DEFAULT '',
	gender       TEXT NOT NULL DEFAULT '',
	birthday     TEXT NOT NULL DEFAULT '',
	address      TEXT NOT NULL DEFAULT '',
	relationship TEXT NOT NULL DEFAULT '',
	impression   TEXT NOT NULL DEFAULT '',
	attitude     TEXT NOT NULL DEFAULT '',
	interest     TEXT NOT NULL DEFAULT '',
	timestamp    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id     TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	role         TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL DEFAULT '',
	timestamp    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (group_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_group_members_group ON group_members(group_id);
`

const (
	userColumns   = `user_id, nickname, gender, birthday, address, relationship, impression, attitude, interest, timestamp`
	memberColumns = `group_id, user_id, display_name, role, title, timestamp`
)

type userRow struct {
	UserID       string `db:"user_id"`
	Nickname     string `db:"nickname"`
	Gender       string `db:"gender"`
	Birthday     string `db:"birthday"`
	Address      string `db:"address"`
	Relationship string `db:"relationship"`
	Impression   string `db:"impression"`
	Attitude     string `db:"attitude"`
	Interest     string `db:"interest"`
	Timestamp    int64  `db:"timestamp"`
}

type memberRow struct {
	GroupID     string `db:"group_id"`
	UserID      string `db:"user_id"`
	DisplayName string `db:"display_name"`
	Role        string `db:"role"`
	Title       string `db:"title"`
	Timestamp   int64  `db:"timestamp"`
}

func NewSQLStore(dbPath string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY on upgrade.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(sqlSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) GetUser(ctx context.Context, userID string) (UserRecord, bool, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, false, nil
	}
	if err != nil {
		return UserRecord{}, false, fmt.Errorf("get user %s: %w", userID, err)
	}
	return UserRecord(row), true, nil
}

func (s *SQLStore) PutUser(ctx context.Context, rec UserRecord) error {
	return putUser(ctx, s.db, rec)
}

func putUser(ctx context.Context, ex sqlx.ExtContext, rec UserRecord) error {
	_, err := sqlx.NamedExecContext(ctx, ex, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:user_id, :nickname, :gender, :birthday, :address, :relationship, :impression, :attitude, :interest, :timestamp)
		ON CONFLICT(user_id) DO UPDATE SET
			nickname = excluded.nickname,
			gender = excluded.gender,
			birthday = excluded.birthday,
			address = excluded.address,
			relationship = excluded.relationship,
			impression = excluded.impression,
			attitude = excluded.attitude,
			interest = excluded.interest,
			timestamp = excluded.timestamp`, userRow(rec))
	if err != nil {
		return fmt.Errorf("put user %s: %w", rec.UserID, err)
	}
	return nil
}

func (s *SQLStore) UpdateUser(ctx context.Context, userID string, fn func(*UserRecord) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var row userRow
	err = tx.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("get user %s: %w", userID, err)
	}
	rec := UserRecord(row)
	if err := fn(&rec); err != nil {
		return err
	}
	rec.UserID = userID
	if err := putUser(ctx, tx, rec); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]UserRecord, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]UserRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, UserRecord(r))
	}
	return out, nil
}

func (s *SQLStore) GetMember(ctx context.Context, groupID, userID string) (GroupMemberRecord, bool, error) {
	var row memberRow
	err := s.db.GetContext(ctx, &row, `SELECT `+memberColumns+` FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return GroupMemberRecord{}, false, nil
	}
	if err != nil {
		return GroupMemberRecord{}, false, fmt.Errorf("get member %s/%s: %w", groupID, userID, err)
	}
	return GroupMemberRecord(row), true, nil
}

func (s *SQLStore) PutMember(ctx context.Context, rec GroupMemberRecord) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO group_members (`+memberColumns+`)
		VALUES (:group_id, :user_id, :display_name, :role, :title, :timestamp)
		ON CONFLICT(group_id, user_id) DO UPDATE SET
			display_name = excluded.display_name,
			role = excluded.role,
			title = excluded.title,
			timestamp = excluded.timestamp`, memberRow(rec))
	if err != nil {
		return fmt.Errorf("put member %s/%s: %w", rec.GroupID, rec.UserID, err)
	}
	return nil
}

func (s *SQLStore) ListMembers(ctx context.Context, groupID string) ([]GroupMemberRecord, error) {
	var rows []memberRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+memberColumns+` FROM group_members WHERE group_id = ? ORDER BY user_id`, groupID); err != nil {
		return nil, fmt.Errorf("list members %s: %w", groupID, err)
	}
	out := make([]GroupMemberRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, GroupMemberRecord(r))
	}
	return out, nil
}

// Backup uses VACUUM INTO, which produces a consistent copy without
// blocking readers.
func (s *SQLStore) Backup(ctx context.Context, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backup dir: %w", err)
	}
	dst := filepath.Join(dir, "impressions-"+time.Now().UTC().Format("20060102-150405")+".db")
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dst); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", dst, err)
	}
	return dst, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }
