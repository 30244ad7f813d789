package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"telegram-mood-diary/internal/models"
)

// Snapshot documents:
//
//	moods:         {"<chat_id>": {"<YYYY-MM-DD>": [rating, "description"]}}
//	notifications: {"<chat_id>": "HH:MM"}
//
// The mood document is also what the old storage.json looked like.

type moodDoc map[string]map[string][2]any

// ExportMoods writes the whole mood log as one JSON document.
func (d *DB) ExportMoods(ctx context.Context, w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.QueryContext(ctx, `SELECT chat_id, day, rating, description FROM mood_entries ORDER BY chat_id, day`)
	if err != nil {
		return fmt.Errorf("export moods: %w", err)
	}
	defer rows.Close()

	doc := moodDoc{}
	for rows.Next() {
		var (
			chatID int64
			e      models.MoodEntry
		)
		if err := rows.Scan(&chatID, &e.Day, &e.Rating, &e.Description); err != nil {
			return err
		}
		user := strconv.FormatInt(chatID, 10)
		if doc[user] == nil {
			doc[user] = map[string][2]any{}
		}
		doc[user][e.Day] = [2]any{e.Rating, e.Description}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return encode(w, doc)
}

// ImportMoods upserts every entry of a mood document in one transaction.
func (d *DB) ImportMoods(ctx context.Context, r io.Reader) (int, error) {
	var doc map[string]map[string][]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("decode moods: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	n := 0
	now := time.Now().Unix()
	for user, days := range doc {
		chatID, err := strconv.ParseInt(user, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("user %q: %w", user, err)
		}
		for day, pair := range days {
			if _, err := time.Parse(models.DayLayout, day); err != nil {
				return 0, fmt.Errorf("user %s: day %q: %w", user, day, err)
			}
			if len(pair) != 2 {
				return 0, fmt.Errorf("user %s, day %s: want [rating, description]", user, day)
			}
			var e models.MoodEntry
			e.Day = day
			if err := json.Unmarshal(pair[0], &e.Rating); err != nil {
				return 0, fmt.Errorf("user %s, day %s: rating: %w", user, day, err)
			}
			if err := json.Unmarshal(pair[1], &e.Description); err != nil {
				return 0, fmt.Errorf("user %s, day %s: description: %w", user, day, err)
			}
			if _, err := tx.ExecContext(ctx, `
                INSERT INTO mood_entries (chat_id, day, rating, description, updated_at)
                VALUES (?,?,?,?,?)
                ON CONFLICT(chat_id, day) DO UPDATE SET rating=excluded.rating,
                    description=excluded.description,
                    updated_at=excluded.updated_at
            `, chatID, e.Day, e.Rating, e.Description, now); err != nil {
				return 0, err
			}
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func (d *DB) ExportNotifications(ctx context.Context, w io.Writer) error {
	list, err := d.ListNotifications(ctx)
	if err != nil {
		return err
	}
	doc := make(map[string]string, len(list))
	for _, n := range list {
		doc[strconv.FormatInt(n.UserID, 10)] = n.At.String()
	}
	return encode(w, doc)
}

func (d *DB) ImportNotifications(ctx context.Context, r io.Reader) (int, error) {
	var doc map[string]string
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("decode notifications: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for user, raw := range doc {
		chatID, err := strconv.ParseInt(user, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("user %q: %w", user, err)
		}
		at, err := models.ParseClockTime(raw)
		if err != nil {
			return 0, fmt.Errorf("user %s: %w", user, err)
		}
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO notifications (chat_id, at, updated_at) VALUES (?,?,?)
            ON CONFLICT(chat_id) DO UPDATE SET at=excluded.at, updated_at=excluded.updated_at
        `, chatID, at.String(), now); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(doc), nil
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
