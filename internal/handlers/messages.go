package handlers

import (
	"context"
	"strconv"
	"strings"

	"telegram-mood-diary/internal/models"
	"telegram-mood-diary/internal/session"
	"telegram-mood-diary/internal/texts"
)

// ------------- rating ---------------------
func (h *Handler) handleRating(ctx context.Context, chatID int64, text string) error {
	rating, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		h.reply(ctx, chatID, h.Texts.Messages.InvalidRating)
		return ErrInvalidRating
	}

	h.Sessions.Put(chatID, session.Session{
		State:   models.StateAwaitingDescription,
		Pending: &models.PendingEntry{Rating: rating},
	})
	h.reply(ctx, chatID, h.Texts.Messages.AskDescription)
	return nil
}

// ------------- description ----------------
// handleDescription commits the entry. The session moves back to the main
// menu only after the write succeeded.
func (h *Handler) handleDescription(ctx context.Context, chatID int64, text string, sess session.Session) error {
	if sess.Pending == nil {
		// lost the rating somehow, ask again
		h.HandleSaveMood(ctx, chatID)
		return nil
	}

	entry := models.MoodEntry{
		Day:         models.DayKey(h.now()),
		Rating:      sess.Pending.Rating,
		Description: text,
	}
	if err := h.DB.SaveMood(ctx, chatID, entry); err != nil {
		return &StorageError{Op: "save_mood", Err: err}
	}

	h.Sessions.Put(chatID, session.Session{State: models.StateMainMenu})
	h.Metrics.RecordMoodSaved()
	h.reply(ctx, chatID, texts.Render(h.Texts.Messages.MoodSaved,
		"rating", strconv.Itoa(entry.Rating),
		"description", entry.Description,
	))
	return nil
}

// ------------- notification time ----------
func (h *Handler) handleNotificationTime(ctx context.Context, chatID int64, text string) error {
	at, err := models.ParseClockTime(text)
	if err != nil {
		h.reply(ctx, chatID, h.Texts.Messages.InvalidTime)
		return ErrInvalidTime
	}

	if err := h.DB.SetNotification(ctx, chatID, at); err != nil {
		return &StorageError{Op: "set_notification", Err: err}
	}

	h.Sessions.Put(chatID, session.Session{State: models.StateMainMenu})
	h.reply(ctx, chatID, texts.Render(h.Texts.Messages.TimeSaved, "time", at.String()))
	return nil
}
