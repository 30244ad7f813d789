package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const DayLayout = "2006-01-02"

var clockRx = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

// Event is one inbound text message addressed to the bot.
type Event struct {
	ID         string // uuid, used to correlate log lines
	UserID     int64
	Text       string
	ReceivedAt time.Time
}

// PendingEntry holds the rating collected before the description step.
type PendingEntry struct {
	Rating int `json:"rating"`
}

// MoodEntry is a single day of the mood log.
type MoodEntry struct {
	Day         string `db:"day"         json:"day"` // YYYY-MM-DD
	Rating      int    `db:"rating"      json:"rating"`
	Description string `db:"description" json:"description"`
}

// ClockTime is a time of day with minute precision.
type ClockTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ParseClockTime accepts "H:MM" and "HH:MM".
func ParseClockTime(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	if !clockRx.MatchString(s) {
		return ClockTime{}, fmt.Errorf("time %q: want HH:MM", s)
	}
	parts := strings.SplitN(s, ":", 2)
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	if h > 23 || m > 59 {
		return ClockTime{}, fmt.Errorf("time %q: out of range", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On returns the instant of c on the calendar day of t, in t's location.
func (c ClockTime) On(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, 0, 0, t.Location())
}

// Notification is a registered daily reminder.
type Notification struct {
	UserID int64     `db:"chat_id" json:"user_id"`
	At     ClockTime `db:"at"      json:"at"`
}

func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

// MonthStart returns midnight of the first day of t's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
