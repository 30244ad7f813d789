package handlers

import (
	"context"
	"strconv"

	"telegram-mood-diary/internal/models"
	"telegram-mood-diary/internal/session"
	"telegram-mood-diary/internal/stats"
	"telegram-mood-diary/internal/texts"
)

func (h *Handler) handleMenu(ctx context.Context, chatID int64, text string) error {
	cmd, ok := h.Texts.Lookup(text)
	if !ok {
		h.reply(ctx, chatID, h.Texts.Messages.UnknownCommand)
		return ErrUnknownCommand
	}
	return h.HandleCommand(ctx, chatID, cmd)
}

// HandleCommand runs a main-menu command.
func (h *Handler) HandleCommand(ctx context.Context, chatID int64, cmd models.Command) error {
	switch cmd {
	case models.CommandStart:
		h.HandleStart(ctx, chatID)
		return nil
	case models.CommandSaveMood:
		h.HandleSaveMood(ctx, chatID)
		return nil
	case models.CommandReport:
		return h.HandleReport(ctx, chatID)
	case models.CommandSetNotification:
		h.HandleSetNotification(ctx, chatID)
		return nil
	case models.CommandResetMood:
		return h.HandleResetMood(ctx, chatID)
	case models.CommandInfo:
		h.reply(ctx, chatID, h.Texts.Messages.Info)
		return nil
	}
	h.reply(ctx, chatID, h.Texts.Messages.UnknownCommand)
	return ErrUnknownCommand
}

// ---------------- start --------------------
func (h *Handler) HandleStart(ctx context.Context, chatID int64) {
	h.Sessions.Reset(chatID)
	h.reply(ctx, chatID, h.Texts.Messages.Menu)
}

// ---------------- save mood ----------------
func (h *Handler) HandleSaveMood(ctx context.Context, chatID int64) {
	h.Sessions.Put(chatID, session.Session{State: models.StateAwaitingRating})
	h.reply(ctx, chatID, h.Texts.Messages.AskRating)
}

// ---------------- report -------------------
// HandleReport summarizes ratings from the first day of the month up to today.
func (h *Handler) HandleReport(ctx context.Context, chatID int64) error {
	now := h.now()
	from := models.DayKey(models.MonthStart(now))
	to := models.DayKey(now)

	entries, err := h.DB.QueryMoods(ctx, chatID, from, to)
	if err != nil {
		return &StorageError{Op: "query_moods", Err: err}
	}

	ratings := make([]int, 0, len(entries))
	for _, e := range entries {
		ratings = append(ratings, e.Rating)
	}
	sum, ok := stats.Summarize(ratings)
	if !ok {
		h.reply(ctx, chatID, h.Texts.Messages.NoData)
		return nil
	}

	h.reply(ctx, chatID, texts.Render(h.Texts.Messages.Report,
		"from", from,
		"to", to,
		"count", strconv.Itoa(sum.Count),
		"mean", stats.Format(sum.Mean),
		"median", stats.Format(sum.Median),
		"stddev", stats.Format(sum.StdDev),
	))
	return nil
}

// ---------------- notifications ------------
func (h *Handler) HandleSetNotification(ctx context.Context, chatID int64) {
	prompt := h.Texts.Messages.AskTime
	cur, err := h.DB.GetNotification(ctx, chatID)
	switch {
	case err != nil:
		h.Log.Warn("read notification time", "chat_id", chatID, "error", err)
	case cur != nil:
		prompt = texts.Render(h.Texts.Messages.AskTimeCurrent, "time", cur.String())
	}

	h.Sessions.Put(chatID, session.Session{State: models.StateAwaitingNotificationTime})
	h.reply(ctx, chatID, prompt)
}

// ---------------- reset ---------------------
// HandleResetMood deletes today's entry; there being none is fine.
func (h *Handler) HandleResetMood(ctx context.Context, chatID int64) error {
	if err := h.DB.RemoveMood(ctx, chatID, models.DayKey(h.now())); err != nil {
		return &StorageError{Op: "remove_mood", Err: err}
	}
	h.reply(ctx, chatID, h.Texts.Messages.MoodReset)
	return nil
}
