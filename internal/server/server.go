package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/cleanhome/internal/catalog"
	"github.com/dukerupert/cleanhome/internal/config"
	"github.com/dukerupert/cleanhome/internal/family"
	"github.com/dukerupert/cleanhome/internal/gamification"
	"github.com/dukerupert/cleanhome/internal/handler"
	"github.com/dukerupert/cleanhome/internal/ledger"
	"github.com/dukerupert/cleanhome/internal/metrics"
	"github.com/dukerupert/cleanhome/internal/middleware"
	"github.com/dukerupert/cleanhome/internal/mirror"
	"github.com/dukerupert/cleanhome/internal/model"
	"github.com/dukerupert/cleanhome/internal/reminder"
	"github.com/dukerupert/cleanhome/internal/scheduler"
	"github.com/dukerupert/cleanhome/internal/store"
)

type Server struct {
	db            *sql.DB
	hub           *mirror.Hub
	ledger        *ledger.Ledger
	roster        *family.Roster
	tracker       *gamification.Tracker
	scheduler     *scheduler.Scheduler
	taskH         *handler.TaskHandler
	scheduleH     *handler.ScheduleHandler
	completionH   *handler.CompletionHandler
	gamificationH *handler.GamificationHandler
	familyMemberH *handler.FamilyMemberHandler
	pushH         *handler.PushHandler
	debouncers    []*mirror.Debouncer
	unsubscribe   []func()
	rateLimiter   *middleware.RateLimiter
	reminders     *reminder.Scheduler
	reminderTime  string
	now           func() time.Time
	logger        *slog.Logger
}

// New builds the server from an open database. The completion history is
// loaded before New returns.
func New(db *sql.DB, cfg config.Config, logger *slog.Logger) (*Server, error) {
	anchors, err := cfg.Anchors()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	now := func() time.Time { return time.Now().In(loc) }

	system, err := catalog.LoadSystemFile(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	taskStore := store.NewTaskStore(db)
	completionStore := store.NewCompletionStore(db)
	memberStore := store.NewFamilyMemberStore(db)
	assignmentStore := store.NewAssignmentStore(db)
	challengeStore := store.NewChallengeStore(db)
	pushStore := store.NewPushStore(db)

	repo := catalog.NewRepository(system, taskStore)

	l := ledger.New(repo, completionStore, logger.With("component", "ledger"))
	if err := l.Load(); err != nil {
		return nil, err
	}

	tracker, err := gamification.NewTracker(store.NewBadgeStore(db))
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(repo, anchors, logger.With("component", "scheduler"))
	roster := family.NewRoster(memberStore, assignmentStore, l, logger.With("component", "family"))
	hub := mirror.NewHub(logger.With("component", "mirror"))

	s := &Server{
		db:            db,
		hub:           hub,
		ledger:        l,
		roster:        roster,
		tracker:       tracker,
		scheduler:     sched,
		taskH:         handler.NewTaskHandler(repo, l, roster, logger.With("component", "task")),
		scheduleH:     handler.NewScheduleHandler(sched, l, now, logger.With("component", "schedule")),
		completionH:   handler.NewCompletionHandler(l, tracker, roster, now, logger.With("component", "completion")),
		gamificationH: handler.NewGamificationHandler(l, tracker, challengeStore, now, logger.With("component", "gamification")),
		familyMemberH: handler.NewFamilyMemberHandler(roster, repo, logger.With("component", "family_member")),
		rateLimiter:   middleware.NewRateLimiter(),
		reminderTime:  cfg.ReminderTime,
		now:           now,
		logger:        logger,
	}

	s.wireMirror(cfg.SyncDebounce)

	// Push reminders are optional: they need a VAPID key pair.
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		pushSvc := reminder.NewPushService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
		s.pushH = handler.NewPushHandler(pushStore, pushSvc, roster, logger.With("component", "push_handler"))
		s.reminders = reminder.NewScheduler(pushSvc, pushStore, sched, l, roster, loc, logger.With("component", "reminder"))
	}

	return s, nil
}

// wireMirror pushes local changes to connected devices after the debounce
// delay and applies snapshots pushed by devices.
func (s *Server) wireMirror(delay time.Duration) {
	push := func(collection string, load func() (any, error)) *mirror.Debouncer {
		d := mirror.NewDebouncer(delay, func() {
			v, err := load()
			if err != nil {
				s.logger.Error("load snapshot", "collection", collection, "error", err)
				return
			}
			if err := s.hub.PushSnapshot(context.Background(), collection, v); err != nil {
				s.logger.Error("push snapshot", "collection", collection, "error", err)
			}
		})
		s.debouncers = append(s.debouncers, d)
		return d
	}

	history := push(mirror.CollectionHistory, func() (any, error) { return s.ledger.Records(), nil })
	members := push(mirror.CollectionMembers, func() (any, error) { return s.roster.List() })
	assignments := push(mirror.CollectionAssignments, func() (any, error) { return s.roster.Assignments() })

	s.unsubscribe = append(s.unsubscribe, s.ledger.OnChange(func([]model.CompletionRecord) { history.Trigger() }))
	s.roster.OnChange(func() {
		members.Trigger()
		assignments.Trigger()
	})

	s.unsubscribe = append(s.unsubscribe,
		s.hub.OnRemoteUpdate(mirror.CollectionHistory, func(data json.RawMessage) {
			var records []model.CompletionRecord
			if err := json.Unmarshal(data, &records); err != nil {
				s.logger.Warn("discarding history snapshot", "error", err)
				return
			}
			dropped := s.ledger.Replace(records)
			s.logger.Info("history replaced from remote", "records", len(records), "dropped", dropped)
			fresh, err := s.tracker.Evaluate(s.ledger.Stats(s.now()))
			if err != nil {
				s.logger.Error("evaluate badges", "error", err)
			}
			for _, b := range fresh {
				s.logger.Info("badge unlocked from remote history", "badge", b.ID)
			}
		}),
		s.hub.OnRemoteUpdate(mirror.CollectionMembers, func(data json.RawMessage) {
			var ms []model.FamilyMember
			if err := json.Unmarshal(data, &ms); err != nil {
				s.logger.Warn("discarding members snapshot", "error", err)
				return
			}
			if err := s.roster.ReplaceMembers(ms); err != nil {
				s.logger.Error("replace members", "error", err)
			}
		}),
		s.hub.OnRemoteUpdate(mirror.CollectionAssignments, func(data json.RawMessage) {
			var as []model.TaskAssignment
			if err := json.Unmarshal(data, &as); err != nil {
				s.logger.Warn("discarding assignments snapshot", "error", err)
				return
			}
			if err := s.roster.ReplaceAssignments(as); err != nil {
				s.logger.Error("replace assignments", "error", err)
			}
		}),
	)

	// Seed the hub so the first device to connect gets the current state.
	for _, d := range s.debouncers {
		d.Trigger()
		d.Flush()
	}
}

// Start runs the background jobs until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.rateLimiter.StartCleanup(ctx, 5*time.Minute)
	if s.reminders != nil {
		if err := s.reminders.Start(s.reminderTime); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown flushes pending mirror pushes and stops the reminder job.
func (s *Server) Shutdown() {
	for _, d := range s.debouncers {
		d.Flush()
		d.Stop()
	}
	for _, fn := range s.unsubscribe {
		fn()
	}
	if s.reminders != nil {
		s.reminders.Stop()
	}
}

func (s *Server) Hub() *mirror.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /ws", mirror.HandleWebSocket(s.hub))

	// Catalog
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)
	mux.HandleFunc("PUT /api/tasks/{id}/hidden", s.taskH.SetHidden)
	mux.HandleFunc("GET /api/zones", s.taskH.Zones)
	mux.HandleFunc("GET /api/templates", s.taskH.Templates)

	// Schedule
	mux.HandleFunc("GET /api/schedule/due", s.scheduleH.Due)
	mux.HandleFunc("GET /api/schedule/{year}/{month}", s.scheduleH.Month)

	// Completions and gamification
	mux.HandleFunc("POST /api/completions/toggle", s.completionH.Toggle)
	mux.HandleFunc("GET /api/completions", s.completionH.List)
	mux.HandleFunc("GET /api/stats", s.completionH.Stats)
	mux.HandleFunc("GET /api/badges", s.gamificationH.Badges)
	mux.HandleFunc("GET /api/levels", s.gamificationH.Levels)
	mux.HandleFunc("GET /api/challenges", s.gamificationH.Challenges)

	// Family
	mux.HandleFunc("GET /api/family-members", s.familyMemberH.List)
	mux.HandleFunc("POST /api/family-members", s.familyMemberH.Create)
	mux.HandleFunc("PUT /api/family-members/sort", s.familyMemberH.UpdateSortOrder)
	mux.HandleFunc("PUT /api/family-members/{id}", s.familyMemberH.Update)
	mux.HandleFunc("DELETE /api/family-members/{id}", s.familyMemberH.Delete)
	mux.HandleFunc("POST /api/family-members/{id}/pin", s.familyMemberH.SetPIN)
	mux.HandleFunc("DELETE /api/family-members/{id}/pin", s.familyMemberH.ClearPIN)
	mux.HandleFunc("POST /api/family-members/{id}/pin/verify", s.rateLimited(s.familyMemberH.VerifyPIN))
	mux.HandleFunc("GET /api/leaderboard", s.familyMemberH.Leaderboard)
	mux.HandleFunc("GET /api/assignments", s.familyMemberH.Assignments)
	mux.HandleFunc("PUT /api/tasks/{id}/assignee", s.familyMemberH.Assign)
	mux.HandleFunc("DELETE /api/tasks/{id}/assignee", s.familyMemberH.Unassign)

	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscribe", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)
	}

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"records": len(s.ledger.Records()),
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.PINAttemptKey, 5, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(h).ServeHTTP(w, r)
	}
}
