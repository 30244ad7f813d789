package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-mood-diary/internal/logger"
	"telegram-mood-diary/internal/metrics"
	"telegram-mood-diary/internal/models"
	"telegram-mood-diary/internal/session"
	"telegram-mood-diary/internal/storage"
	"telegram-mood-diary/internal/texts"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeBot struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (b *fakeBot) Send(_ context.Context, chatID int64, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentMessage{chatID, text})
	return b.err
}

func (b *fakeBot) last(chatID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.sent) - 1; i >= 0; i-- {
		if b.sent[i].chatID == chatID {
			return b.sent[i].text
		}
	}
	return ""
}

// failingStore breaks selected writes of a real store.
type failingStore struct {
	*storage.DB
	failSave   bool
	failRemove bool
	failNotify bool
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) SaveMood(ctx context.Context, chatID int64, e models.MoodEntry) error {
	if s.failSave {
		return errDiskFull
	}
	return s.DB.SaveMood(ctx, chatID, e)
}

func (s *failingStore) RemoveMood(ctx context.Context, chatID int64, day string) error {
	if s.failRemove {
		return errDiskFull
	}
	return s.DB.RemoveMood(ctx, chatID, day)
}

func (s *failingStore) SetNotification(ctx context.Context, chatID int64, at models.ClockTime) error {
	if s.failNotify {
		return errDiskFull
	}
	return s.DB.SetNotification(ctx, chatID, at)
}

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

type fixture struct {
	h     *Handler
	bot   *fakeBot
	db    *storage.DB
	store *failingStore
	msg   texts.Messages
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bot := &fakeBot{}
	store := &failingStore{DB: db}
	tx := texts.Default()
	h := NewHandler(bot, store, tx, time.UTC, logger.Nop(), metrics.NewCollector(prometheus.NewRegistry()))
	h.Clock = clockwork.NewFakeClockAt(testNow)

	return &fixture{h: h, bot: bot, db: db, store: store, msg: tx.Messages}
}

func (f *fixture) say(t *testing.T, chatID int64, text string) error {
	t.Helper()
	return f.h.HandleMessage(context.Background(), models.Event{ID: "test", UserID: chatID, Text: text})
}

func (f *fixture) state(chatID int64) models.DialogueState {
	return f.h.Sessions.Get(chatID).State
}

func (f *fixture) moods(t *testing.T, chatID int64) []models.MoodEntry {
	t.Helper()
	got, err := f.db.QueryMoods(context.Background(), chatID, "0000-01-01", "9999-12-31")
	require.NoError(t, err)
	return got
}

func TestSaveMoodFlow(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.say(t, 1, "Сохранить"))
	assert.Equal(t, models.StateAwaitingRating, f.state(1))
	assert.Equal(t, f.msg.AskRating, f.bot.last(1))

	require.NoError(t, f.say(t, 1, " 5 "))
	assert.Equal(t, models.StateAwaitingDescription, f.state(1))
	assert.Equal(t, f.msg.AskDescription, f.bot.last(1))

	require.NoError(t, f.say(t, 1, "хороший день"))
	assert.Equal(t, models.StateMainMenu, f.state(1))
	assert.Nil(t, f.h.Sessions.Get(1).Pending)
	assert.Contains(t, f.bot.last(1), "5")
	assert.Contains(t, f.bot.last(1), "хороший день")

	assert.Equal(t, []models.MoodEntry{{Day: "2026-10-17", Rating: 5, Description: "хороший день"}}, f.moods(t, 1))
}

func TestSecondSaveSameDayOverwrites(t *testing.T) {
	f := newFixture(t)

	for _, in := range []string{"Сохранить", "5", "first", "Сохранить", "2", "second"} {
		require.NoError(t, f.say(t, 1, in))
	}
	assert.Equal(t, []models.MoodEntry{{Day: "2026-10-17", Rating: 2, Description: "second"}}, f.moods(t, 1))
}

func TestEmptyDescriptionIsAccepted(t *testing.T) {
	f := newFixture(t)

	for _, in := range []string{"Сохранить", "3", ""} {
		require.NoError(t, f.say(t, 1, in))
	}
	assert.Equal(t, []models.MoodEntry{{Day: "2026-10-17", Rating: 3, Description: ""}}, f.moods(t, 1))
}

func TestInvalidRatingKeepsState(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.say(t, 1, "Сохранить"))

	for _, in := range []string{"five", "4.5", "", "Отчет"} {
		require.NoError(t, f.say(t, 1, in))
		assert.Equal(t, models.StateAwaitingRating, f.state(1), in)
		assert.Equal(t, f.msg.InvalidRating, f.bot.last(1), in)
	}
	assert.Empty(t, f.moods(t, 1))

	require.NoError(t, f.say(t, 1, "-1"))
	assert.Equal(t, models.StateAwaitingDescription, f.state(1))
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.say(t, 1, "привет"))
	assert.Equal(t, models.StateMainMenu, f.state(1))
	assert.Equal(t, f.msg.UnknownCommand, f.bot.last(1))
	assert.Empty(t, f.moods(t, 1))

	err := f.h.handleMenu(context.Background(), 1, "привет")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestStartAndInfo(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.say(t, 1, "/start"))
	assert.Equal(t, f.msg.Menu, f.bot.last(1))
	assert.Equal(t, models.StateMainMenu, f.state(1))

	require.NoError(t, f.say(t, 1, "Информация"))
	assert.Equal(t, f.msg.Info, f.bot.last(1))
	assert.Equal(t, models.StateMainMenu, f.state(1))
}

func TestResetMoodRemovesOnlyTodayOfCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.SaveMood(ctx, 1, models.MoodEntry{Day: "2026-10-16", Rating: 2}))
	require.NoError(t, f.db.SaveMood(ctx, 1, models.MoodEntry{Day: "2026-10-17", Rating: 3}))
	require.NoError(t, f.db.SaveMood(ctx, 2, models.MoodEntry{Day: "2026-10-17", Rating: 4}))

	require.NoError(t, f.say(t, 1, "Сбросить"))
	assert.Equal(t, f.msg.MoodReset, f.bot.last(1))
	assert.Equal(t, models.StateMainMenu, f.state(1))

	assert.Equal(t, []models.MoodEntry{{Day: "2026-10-16", Rating: 2}}, f.moods(t, 1))
	assert.Len(t, f.moods(t, 2), 1)

	// nothing left to delete
	require.NoError(t, f.say(t, 1, "Сбросить"))
	assert.Equal(t, f.msg.MoodReset, f.bot.last(1))
}

func TestReportStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.SaveMood(ctx, 1, models.MoodEntry{Day: "2026-09-30", Rating: 100}))
	require.NoError(t, f.db.SaveMood(ctx, 1, models.MoodEntry{Day: "2026-10-01", Rating: 3}))
	require.NoError(t, f.db.SaveMood(ctx, 1, models.MoodEntry{Day: "2026-10-09", Rating: 5}))
	require.NoError(t, f.db.SaveMood(ctx, 1, models.MoodEntry{Day: "2026-10-17", Rating: 4}))
	require.NoError(t, f.db.SaveMood(ctx, 1, models.MoodEntry{Day: "2026-10-18", Rating: 100}))
	require.NoError(t, f.db.SaveMood(ctx, 2, models.MoodEntry{Day: "2026-10-10", Rating: 100}))

	require.NoError(t, f.say(t, 1, "Отчет"))
	assert.Equal(t, models.StateMainMenu, f.state(1))

	want := texts.Render(f.msg.Report,
		"from", "2026-10-01", "to", "2026-10-17", "count", "3",
		"mean", "4", "median", "4", "stddev", "0.82")
	assert.Equal(t, want, f.bot.last(1))
}

func TestReportWithoutData(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.SaveMood(context.Background(), 1, models.MoodEntry{Day: "2026-09-30", Rating: 5}))

	require.NoError(t, f.say(t, 1, "Отчёт"))
	assert.Equal(t, f.msg.NoData, f.bot.last(1))
	assert.Equal(t, models.StateMainMenu, f.state(1))
	assert.Len(t, f.moods(t, 1), 1)
}

func TestSetNotificationFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.say(t, 1, "Уведомления"))
	assert.Equal(t, models.StateAwaitingNotificationTime, f.state(1))
	assert.Equal(t, f.msg.AskTime, f.bot.last(1))

	require.NoError(t, f.say(t, 1, "half past eight"))
	assert.Equal(t, models.StateAwaitingNotificationTime, f.state(1))
	assert.Equal(t, f.msg.InvalidTime, f.bot.last(1))

	require.NoError(t, f.say(t, 1, "8:30"))
	assert.Equal(t, models.StateMainMenu, f.state(1))
	assert.Equal(t, texts.Render(f.msg.TimeSaved, "time", "08:30"), f.bot.last(1))

	at, err := f.db.GetNotification(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.Equal(t, "08:30", at.String())

	require.NoError(t, f.say(t, 1, "Уведомления"))
	assert.Equal(t, texts.Render(f.msg.AskTimeCurrent, "time", "08:30"), f.bot.last(1))
}

func TestSaveFailureDoesNotAdvance(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.say(t, 1, "Сохранить"))
	require.NoError(t, f.say(t, 1, "4"))

	f.store.failSave = true
	err := f.say(t, 1, "rainy")
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "save_mood", se.Op)
	assert.ErrorIs(t, err, errDiskFull)

	sess := f.h.Sessions.Get(1)
	assert.Equal(t, models.StateAwaitingDescription, sess.State)
	require.NotNil(t, sess.Pending)
	assert.Equal(t, 4, sess.Pending.Rating)
	assert.Equal(t, f.msg.StorageError, f.bot.last(1))
	assert.Empty(t, f.moods(t, 1))

	// the same input again succeeds once storage is back
	f.store.failSave = false
	require.NoError(t, f.say(t, 1, "rainy"))
	assert.Equal(t, models.StateMainMenu, f.state(1))
	assert.Equal(t, []models.MoodEntry{{Day: "2026-10-17", Rating: 4, Description: "rainy"}}, f.moods(t, 1))
}

func TestNotificationFailureDoesNotAdvance(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.say(t, 1, "Уведомления"))

	f.store.failNotify = true
	err := f.say(t, 1, "21:00")
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "set_notification", se.Op)
	assert.Equal(t, models.StateAwaitingNotificationTime, f.state(1))

	at, err := f.db.GetNotification(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, at)
}

func TestResetFailureIsSurfaced(t *testing.T) {
	f := newFixture(t)
	f.store.failRemove = true

	err := f.say(t, 1, "Сбросить")
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, f.msg.StorageError, f.bot.last(1))
	assert.Equal(t, models.StateMainMenu, f.state(1))
}

func TestSendFailureDoesNotUndoCommit(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.say(t, 1, "Сохранить"))
	require.NoError(t, f.say(t, 1, "4"))

	f.bot.err = errors.New("telegram is down")
	require.NoError(t, f.say(t, 1, "ok"))
	assert.Equal(t, models.StateMainMenu, f.state(1))
	assert.Len(t, f.moods(t, 1), 1)
}

func TestUsersAreIndependent(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.say(t, 1, "Сохранить"))
	require.NoError(t, f.say(t, 2, "Уведомления"))
	require.NoError(t, f.say(t, 2, "07:00"))
	require.NoError(t, f.say(t, 2, "5"))

	assert.Equal(t, models.StateAwaitingRating, f.state(1))
	assert.Equal(t, models.StateMainMenu, f.state(2))
	assert.Equal(t, f.msg.UnknownCommand, f.bot.last(2))

	require.NoError(t, f.say(t, 1, "3"))
	require.NoError(t, f.say(t, 1, "fine"))

	assert.Empty(t, f.moods(t, 2))
	at, err := f.db.GetNotification(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, at)
}

func TestDescriptionWithoutPendingRestartsFlow(t *testing.T) {
	f := newFixture(t)
	f.h.Sessions.Put(1, session.Session{State: models.StateAwaitingDescription})

	require.NoError(t, f.say(t, 1, "text"))
	assert.Equal(t, models.StateAwaitingRating, f.state(1))
	assert.Equal(t, f.msg.AskRating, f.bot.last(1))
	assert.Empty(t, f.moods(t, 1))
}

func TestTodayFollowsLocation(t *testing.T) {
	f := newFixture(t)
	// 23:30 UTC is already the next day in Moscow
	f.h.Clock = clockwork.NewFakeClockAt(time.Date(2026, 10, 17, 23, 30, 0, 0, time.UTC))
	f.h.Location = time.FixedZone("MSK", 3*60*60)

	for _, in := range []string{"Сохранить", "4", "late"} {
		require.NoError(t, f.say(t, 1, in))
	}
	assert.Equal(t, "2026-10-18", f.moods(t, 1)[0].Day)
}
