package reminder

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/cleanhome/internal/metrics"
	"github.com/dukerupert/cleanhome/internal/model"
	"github.com/dukerupert/cleanhome/internal/scheduler"
)

const DefaultTime = "20:00"

// retrySpec re-runs a reminder whose every delivery failed. RunOnce is a
// no-op once the date is recorded as sent.
const retrySpec = "0 */15 * * * *"

type SubscriptionStore interface {
	List() ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
	RecordSent(refID string) error
	WasSent(refID string) (bool, error)
}

type DueLister interface {
	DueOn(date time.Time) ([]scheduler.Occurrence, error)
}

type AssignmentLister interface {
	Assignments() ([]model.TaskAssignment, error)
}

// Scheduler runs the daily reminder job on a cron schedule.
type Scheduler struct {
	cron        *cron.Cron
	loc         *time.Location
	sender      Sender
	subs        SubscriptionStore
	due         DueLister
	done        scheduler.CompletionChecker
	assignments AssignmentLister
	logger      *slog.Logger

	// mu serializes runs; the daily job and a retry can fire together.
	mu           sync.Mutex
	hour, minute int
}

func NewScheduler(sender Sender, subs SubscriptionStore, due DueLister, done scheduler.CompletionChecker, assignments AssignmentLister, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:        cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		loc:         loc,
		sender:      sender,
		subs:        subs,
		due:         due,
		done:        done,
		assignments: assignments,
		logger:      logger,
	}
}

// Start schedules the job daily at HH:MM in the scheduler's location, with
// retries every 15 minutes until midnight while nothing was delivered.
func (s *Scheduler) Start(at string) error {
	hour, minute, err := parseClock(at)
	if err != nil {
		return err
	}
	s.hour, s.minute = hour, minute

	run := func() {
		if _, err := s.RunOnce(time.Now()); err != nil {
			s.logger.Error("reminder run failed", "error", err)
		}
	}
	if _, err := s.cron.AddFunc(cronSpec(hour, minute), run); err != nil {
		return fmt.Errorf("schedule reminder: %w", err)
	}
	if _, err := s.cron.AddFunc(retrySpec, func() {
		if s.pastDailyTime(time.Now()) {
			run()
		}
	}); err != nil {
		return fmt.Errorf("schedule reminder retry: %w", err)
	}
	s.cron.Start()
	s.logger.Info("reminders scheduled", "at", at, "timezone", s.loc.String())
	return nil
}

// pastDailyTime reports whether now is at or after today's reminder time.
func (s *Scheduler) pastDailyTime(now time.Time) bool {
	local := now.In(s.loc)
	return local.Hour()*60+local.Minute() >= s.hour*60+s.minute
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunOnce sends the reminder for the day after now, at most once per date.
// It returns the number of notifications delivered.
func (s *Scheduler) RunOnce(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	local := now.In(s.loc)
	tomorrow := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, time.UTC)
	refID := "tomorrow-" + tomorrow.Format(model.DateLayout)

	sent, err := s.subs.WasSent(refID)
	if err != nil {
		return 0, err
	}
	if sent {
		return 0, nil
	}

	occs, err := s.due.DueOn(tomorrow)
	if err != nil {
		return 0, fmt.Errorf("tasks due %s: %w", tomorrow.Format(model.DateLayout), err)
	}
	var open []scheduler.Occurrence
	for _, o := range occs {
		if !s.done.IsCompleted(o.TaskID, o.Date) {
			open = append(open, o)
		}
	}
	if len(open) == 0 {
		return 0, nil
	}

	subs, err := s.subs.List()
	if err != nil {
		return 0, err
	}
	owner, err := s.owners()
	if err != nil {
		return 0, err
	}

	delivered, failed := 0, 0
	for _, sub := range subs {
		tasks := tasksFor(open, owner, sub.MemberID)
		if len(tasks) == 0 {
			continue
		}
		err := s.sender.Send(&sub, Payload{
			Title: "Tomorrow's tasks",
			Body:  summary(tasks),
			URL:   "/?date=" + tomorrow.Format(model.DateLayout),
			Tag:   refID,
		})
		switch {
		case errors.Is(err, ErrExpired):
			metrics.IncrementReminder("gone")
			if err := s.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				s.logger.Error("failed to delete expired subscription", "error", err)
			}
		case err != nil:
			metrics.IncrementReminder("failed")
			s.logger.Warn("reminder push failed", "subscription_id", sub.ID, "error", err)
			failed++
		default:
			metrics.IncrementReminder("sent")
			delivered++
		}
	}

	if delivered == 0 && failed > 0 {
		s.logger.Warn("no reminder delivered, will retry", "date", tomorrow.Format(model.DateLayout), "failed", failed)
		return 0, nil
	}
	if err := s.subs.RecordSent(refID); err != nil {
		return delivered, err
	}
	s.logger.Info("reminders sent", "date", tomorrow.Format(model.DateLayout), "tasks", len(open), "delivered", delivered)
	return delivered, nil
}

func (s *Scheduler) owners() (map[int64]string, error) {
	owner := make(map[int64]string)
	if s.assignments == nil {
		return owner, nil
	}
	all, err := s.assignments.Assignments()
	if err != nil {
		return nil, err
	}
	for _, a := range all {
		owner[a.TaskID] = a.MemberID
	}
	return owner, nil
}

// tasksFor picks what a device hears about: a member's device gets their
// own and unassigned tasks, an anonymous device gets everything.
func tasksFor(occs []scheduler.Occurrence, owner map[int64]string, memberID *string) []scheduler.Occurrence {
	if memberID == nil {
		return occs
	}
	var out []scheduler.Occurrence
	for _, o := range occs {
		if m, ok := owner[o.TaskID]; !ok || m == *memberID {
			out = append(out, o)
		}
	}
	return out
}

func summary(occs []scheduler.Occurrence) string {
	if len(occs) == 1 {
		return "Due tomorrow: " + occs[0].TaskName
	}
	names := make([]string, 0, 3)
	for i, o := range occs {
		if i == 3 {
			break
		}
		names = append(names, o.TaskName)
	}
	body := fmt.Sprintf("%d tasks due tomorrow: %s", len(occs), strings.Join(names, ", "))
	if len(occs) > 3 {
		body += "…"
	}
	return body
}

// DailySpec turns HH:MM into a seconds-precision cron spec.
func DailySpec(at string) (string, error) {
	hour, minute, err := parseClock(at)
	if err != nil {
		return "", err
	}
	return cronSpec(hour, minute), nil
}

// second minute hour dom month dow
func cronSpec(hour, minute int) string {
	return fmt.Sprintf("0 %d %d * * *", minute, hour)
}

func parseClock(at string) (hour, minute int, err error) {
	parts := strings.Split(at, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", at)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", at)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", at)
	}
	return hour, minute, nil
}
