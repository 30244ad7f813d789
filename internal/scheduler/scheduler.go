package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"telegram-mood-diary/internal/logger"
	"telegram-mood-diary/internal/metrics"
	"telegram-mood-diary/internal/models"
)

const DefaultPeriod = 10 * time.Second

// maxCatchUp bounds how far back a late tick looks for missed reminders.
const maxCatchUp = time.Hour

type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Store is the notification registry plus the per-day reminder flags.
type Store interface {
	ListNotifications(ctx context.Context) ([]models.Notification, error)
	IsNotified(ctx context.Context, chatID int64, day string) (bool, error)
	MarkNotified(ctx context.Context, chatID int64, day string) error
	ClearNotifiedBefore(ctx context.Context, day string) (int64, error)
}

type Config struct {
	Period   time.Duration
	Location *time.Location
	Clock    clockwork.Clock
	Reminder string // text of the reminder message
}

// Scheduler polls the registry every Period and sends at most one reminder
// per user and day.
type Scheduler struct {
	db      Store
	bot     Messenger
	cfg     Config
	log     *logger.Logger
	metrics metrics.Recorder

	mu      sync.Mutex
	lastDay string
	prevEnd time.Time // end of the last completed window
	cron    gocron.Scheduler
}

func New(db Store, bot Messenger, cfg Config, log *logger.Logger, m metrics.Recorder) *Scheduler {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Scheduler{db: db, bot: bot, cfg: cfg, log: log, metrics: m}
}

// Start registers the polling job and returns immediately. ctx is handed to
// every tick; cancel it and call Stop to shut down.
func (s *Scheduler) Start(ctx context.Context) error {
	cron, err := gocron.NewScheduler(
		gocron.WithClock(s.cfg.Clock),
		gocron.WithLocation(s.cfg.Location),
	)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = cron.NewJob(
		gocron.DurationJob(s.cfg.Period),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			if err := s.Tick(ctx); err != nil {
				s.log.Error("reminder tick", "error", err)
			}
		}),
		gocron.WithName("reminders"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = cron.Shutdown()
		return fmt.Errorf("register reminder job: %w", err)
	}

	s.mu.Lock()
	s.cron = cron
	s.mu.Unlock()

	cron.Start()
	s.log.Info("reminder scheduler started", "period", s.cfg.Period.String(), "location", s.cfg.Location.String())
	return nil
}

// Stop waits for a running tick to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cron := s.cron
	s.cron = nil
	s.mu.Unlock()

	if cron == nil {
		return nil
	}
	return cron.Shutdown()
}

// Tick is one pass over the registry at the current clock time.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.cfg.Clock.Now().In(s.cfg.Location)
	today := models.DayKey(now)

	if s.rolledOver(today) {
		n, err := s.db.ClearNotifiedBefore(ctx, today)
		if err != nil {
			return fmt.Errorf("clear reminder flags: %w", err)
		}
		s.setLastDay(today)
		s.log.Debug("new day, reminder flags cleared", "day", today, "cleared", n)
	}

	list, err := s.db.ListNotifications(ctx)
	if err != nil {
		return err
	}

	start, end := s.window(now)
	for _, n := range list {
		// the window can reach into yesterday or tomorrow around midnight
		for _, d := range []int{-1, 0, 1} {
			at := n.At.On(now.AddDate(0, 0, d))
			if at.Before(start) || !at.Before(end) {
				continue
			}
			s.remind(ctx, n.UserID, models.DayKey(at))
		}
	}

	s.mu.Lock()
	s.prevEnd = end
	s.mu.Unlock()
	return nil
}

// window is [start, now+Period). start is the end of the previous window when
// this tick runs late, so no instant falls between two ticks.
func (s *Scheduler) window(now time.Time) (time.Time, time.Time) {
	s.mu.Lock()
	prev := s.prevEnd
	s.mu.Unlock()

	start := now
	if !prev.IsZero() && prev.Before(now) {
		start = prev
		if floor := now.Add(-maxCatchUp); start.Before(floor) {
			start = floor
		}
	}
	return start, now.Add(s.cfg.Period)
}

func (s *Scheduler) remind(ctx context.Context, chatID int64, day string) {
	log := s.log.With("chat_id", chatID, "day", day)

	done, err := s.db.IsNotified(ctx, chatID, day)
	if err != nil {
		log.Error("read reminder flag", "error", err)
		return
	}
	if done {
		return
	}

	if err := s.bot.Send(ctx, chatID, s.cfg.Reminder); err != nil {
		s.metrics.RecordSendFailure("scheduler")
		log.Error("send reminder", "error", err)
		return
	}
	s.metrics.RecordReminderSent()

	if err := s.db.MarkNotified(ctx, chatID, day); err != nil {
		s.metrics.RecordStorageFailure("mark_notified")
		log.Error("store reminder flag", "error", err)
		return
	}
	log.Info("reminder sent")
}

func (s *Scheduler) rolledOver(today string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDay != today
}

func (s *Scheduler) setLastDay(day string) {
	s.mu.Lock()
	s.lastDay = day
	s.mu.Unlock()
}
