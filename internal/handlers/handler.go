package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"telegram-mood-diary/internal/logger"
	"telegram-mood-diary/internal/metrics"
	"telegram-mood-diary/internal/models"
	"telegram-mood-diary/internal/session"
	"telegram-mood-diary/internal/texts"
)

// Messenger delivers a reply to a chat.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Store is the part of the mood log and notification registry the dialogue needs.
type Store interface {
	SaveMood(ctx context.Context, chatID int64, e models.MoodEntry) error
	RemoveMood(ctx context.Context, chatID int64, day string) error
	QueryMoods(ctx context.Context, chatID int64, from, to string) ([]models.MoodEntry, error)
	GetNotification(ctx context.Context, chatID int64) (*models.ClockTime, error)
	SetNotification(ctx context.Context, chatID int64, at models.ClockTime) error
}

type Handler struct {
	Bot      Messenger
	DB       Store
	Sessions *session.Store
	Texts    *texts.Table
	Clock    clockwork.Clock
	Location *time.Location
	Log      *logger.Logger
	Metrics  metrics.Recorder
}

func NewHandler(bot Messenger, db Store, tx *texts.Table, loc *time.Location, log *logger.Logger, m metrics.Recorder) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		Bot:      bot,
		DB:       db,
		Sessions: session.New(),
		Texts:    tx,
		Clock:    clockwork.NewRealClock(),
		Location: loc,
		Log:      log,
		Metrics:  m,
	}
}

// HandleMessage runs one inbound message through the user's dialogue.
// Only storage failures are returned; bad input is answered in the chat.
func (h *Handler) HandleMessage(ctx context.Context, ev models.Event) error {
	sess := h.Sessions.Get(ev.UserID)
	h.Metrics.RecordEvent(sess.State.String())
	log := h.Log.With("event_id", ev.ID, "chat_id", ev.UserID, "state", sess.State.String())

	var err error
	switch sess.State {
	case models.StateMainMenu:
		err = h.handleMenu(ctx, ev.UserID, ev.Text)
	case models.StateAwaitingRating:
		err = h.handleRating(ctx, ev.UserID, ev.Text)
	case models.StateAwaitingDescription:
		err = h.handleDescription(ctx, ev.UserID, ev.Text, sess)
	case models.StateAwaitingNotificationTime:
		err = h.handleNotificationTime(ctx, ev.UserID, ev.Text)
	default:
		log.Warn("unknown dialogue state, back to main menu")
		h.Sessions.Reset(ev.UserID)
		err = h.handleMenu(ctx, ev.UserID, ev.Text)
	}

	switch {
	case err == nil:
		return nil
	case isInputError(err):
		log.Debug("input rejected", "error", err)
		return nil
	}

	var se *StorageError
	if errors.As(err, &se) {
		h.Metrics.RecordStorageFailure(se.Op)
		log.Error("storage failure", "op", se.Op, "error", se.Err)
		h.reply(ctx, ev.UserID, h.Texts.Messages.StorageError)
	}
	return err
}

func (h *Handler) now() time.Time {
	return h.Clock.Now().In(h.Location)
}

// reply sends text and only logs transport errors: a committed transition is
// never undone because the answer did not go out.
func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if err := h.Bot.Send(ctx, chatID, text); err != nil {
		h.Metrics.RecordSendFailure("dialogue")
		h.Log.Error("send reply", "chat_id", chatID, "error", err)
	}
}
