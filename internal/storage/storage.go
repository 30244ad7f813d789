package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"telegram-mood-diary/internal/models"
)

//go:embed schema.sql
var ddl string

// DB is the mood log and notification registry. Writers are serialized by mu,
// every write is committed before the method returns.
type DB struct {
	*sql.DB
	mu sync.RWMutex
}

func New(path string) (*DB, error) {
	dsn := path
	memory := path == ":memory:" || strings.Contains(path, "mode=memory")
	if !memory {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// every connection to :memory: is a separate database
	if memory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	if err = migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{DB: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(ddl)
	return err
}

// ---------- mood log --------------------------------------------------------

// SaveMood inserts or overwrites the entry for (chatID, e.Day).
func (d *DB) SaveMood(ctx context.Context, chatID int64, e models.MoodEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.ExecContext(ctx, `
        INSERT INTO mood_entries (chat_id, day, rating, description, updated_at)
        VALUES (?,?,?,?,?)
        ON CONFLICT(chat_id, day) DO UPDATE SET rating=excluded.rating,
            description=excluded.description,
            updated_at=excluded.updated_at
    `, chatID, e.Day, e.Rating, e.Description, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save mood %d/%s: %w", chatID, e.Day, err)
	}
	return nil
}

// RemoveMood deletes the entry for day. Missing entries are not an error.
func (d *DB) RemoveMood(ctx context.Context, chatID int64, day string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.ExecContext(ctx, `DELETE FROM mood_entries WHERE chat_id=? AND day=?`, chatID, day)
	if err != nil {
		return fmt.Errorf("remove mood %d/%s: %w", chatID, day, err)
	}
	return nil
}

// QueryMoods returns entries with from <= day <= to, oldest first.
func (d *DB) QueryMoods(ctx context.Context, chatID int64, from, to string) ([]models.MoodEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.QueryContext(ctx, `
        SELECT day, rating, description
        FROM mood_entries
        WHERE chat_id=? AND day >= ? AND day <= ?
        ORDER BY day`, chatID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query moods %d: %w", chatID, err)
	}
	defer rows.Close()

	var res []models.MoodEntry
	for rows.Next() {
		var e models.MoodEntry
		if err := rows.Scan(&e.Day, &e.Rating, &e.Description); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// ---------- notification registry -------------------------------------------

// GetNotification returns nil when the user has no reminder.
func (d *DB) GetNotification(ctx context.Context, chatID int64) (*models.ClockTime, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var at string
	err := d.QueryRowContext(ctx, `SELECT at FROM notifications WHERE chat_id=?`, chatID).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification %d: %w", chatID, err)
	}
	t, err := models.ParseClockTime(at)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (d *DB) SetNotification(ctx context.Context, chatID int64, at models.ClockTime) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.ExecContext(ctx, `
        INSERT INTO notifications (chat_id, at, updated_at) VALUES (?,?,?)
        ON CONFLICT(chat_id) DO UPDATE SET at=excluded.at, updated_at=excluded.updated_at
    `, chatID, at.String(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("set notification %d: %w", chatID, err)
	}
	return nil
}

func (d *DB) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.QueryContext(ctx, `SELECT chat_id, at FROM notifications ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var res []models.Notification
	for rows.Next() {
		var (
			n  models.Notification
			at string
		)
		if err := rows.Scan(&n.UserID, &at); err != nil {
			return nil, err
		}
		if n.At, err = models.ParseClockTime(at); err != nil {
			return nil, fmt.Errorf("notification %d: %w", n.UserID, err)
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// ---------- reminder de-dup flags -------------------------------------------

func (d *DB) IsNotified(ctx context.Context, chatID int64, day string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var c int
	err := d.QueryRowContext(ctx, `SELECT 1 FROM notified_days WHERE chat_id=? AND day=?`, chatID, day).Scan(&c)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is notified %d/%s: %w", chatID, day, err)
	}
	return c == 1, nil
}

func (d *DB) MarkNotified(ctx context.Context, chatID int64, day string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.ExecContext(ctx, `
        INSERT OR REPLACE INTO notified_days (chat_id, day, sent_at) VALUES (?,?,?)
    `, chatID, day, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("mark notified %d/%s: %w", chatID, day, err)
	}
	return nil
}

// ClearNotifiedBefore drops flags of days earlier than day.
func (d *DB) ClearNotifiedBefore(ctx context.Context, day string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.ExecContext(ctx, `DELETE FROM notified_days WHERE day < ?`, day)
	if err != nil {
		return 0, fmt.Errorf("clear notified: %w", err)
	}
	return res.RowsAffected()
}
