package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/cleanhome/internal/catalog"
	"github.com/dukerupert/cleanhome/internal/database"
	"github.com/dukerupert/cleanhome/internal/family"
	"github.com/dukerupert/cleanhome/internal/gamification"
	"github.com/dukerupert/cleanhome/internal/ledger"
	"github.com/dukerupert/cleanhome/internal/model"
	"github.com/dukerupert/cleanhome/internal/recurrence"
	"github.com/dukerupert/cleanhome/internal/scheduler"
	"github.com/dukerupert/cleanhome/internal/store"
)

func intPtr(n int) *int { return &n }

var testNow = time.Date(2024, 3, 6, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	mux    *http.ServeMux
	ledger *ledger.Ledger
	roster *family.Roster
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return testNow }

	system := []model.Task{
		{ID: 1, Name: "Dishes", Zone: "Kitchen", Frequency: "daily", EstimatedMinutes: intPtr(10)},
		{ID: 2, Name: "Vacuum", Zone: "Living Room", Frequency: "weekly", EstimatedMinutes: intPtr(30)},
		{ID: 3, Name: "Mystery", Zone: "Garage", Frequency: "sometimes"},
	}
	repo := catalog.NewRepository(system, store.NewTaskStore(db))
	l := ledger.New(repo, store.NewCompletionStore(db), logger)
	roster := family.NewRoster(store.NewFamilyMemberStore(db), store.NewAssignmentStore(db), l, logger)
	tracker, err := gamification.NewTracker(store.NewBadgeStore(db))
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	sched := scheduler.New(repo, recurrence.DefaultAnchors(), logger)

	taskH := NewTaskHandler(repo, l, roster, logger)
	scheduleH := NewScheduleHandler(sched, l, now, logger)
	completionH := NewCompletionHandler(l, tracker, roster, now, logger)
	gameH := NewGamificationHandler(l, tracker, store.NewChallengeStore(db), now, logger)
	memberH := NewFamilyMemberHandler(roster, repo, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tasks", taskH.List)
	mux.HandleFunc("POST /api/tasks", taskH.Create)
	mux.HandleFunc("GET /api/tasks/{id}", taskH.Get)
	mux.HandleFunc("DELETE /api/tasks/{id}", taskH.Delete)
	mux.HandleFunc("PUT /api/tasks/{id}/hidden", taskH.SetHidden)
	mux.HandleFunc("PUT /api/tasks/{id}/assignee", memberH.Assign)
	mux.HandleFunc("GET /api/schedule/due", scheduleH.Due)
	mux.HandleFunc("GET /api/schedule/{year}/{month}", scheduleH.Month)
	mux.HandleFunc("POST /api/completions/toggle", completionH.Toggle)
	mux.HandleFunc("GET /api/completions", completionH.List)
	mux.HandleFunc("GET /api/stats", completionH.Stats)
	mux.HandleFunc("GET /api/badges", gameH.Badges)
	mux.HandleFunc("GET /api/challenges", gameH.Challenges)
	mux.HandleFunc("POST /api/family-members", memberH.Create)
	mux.HandleFunc("GET /api/leaderboard", memberH.Leaderboard)
	mux.HandleFunc("POST /api/family-members/{id}/pin", memberH.SetPIN)
	mux.HandleFunc("POST /api/family-members/{id}/pin/verify", memberH.VerifyPIN)

	return &testEnv{mux: mux, ledger: l, roster: roster}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
	return v
}

func TestScheduleMonth(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, "GET", "/api/schedule/2024/3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decode[monthResponse](t, w)

	// 31 daily + 4 Mondays.
	if len(resp.Occurrences) != 35 {
		t.Errorf("got %d occurrences, want 35", len(resp.Occurrences))
	}
	if len(resp.Skipped) != 1 || resp.Skipped[0].TaskID != 3 {
		t.Errorf("skipped = %+v, want task 3", resp.Skipped)
	}
	if resp.Prev.Year != 2024 || resp.Prev.Month != time.February {
		t.Errorf("prev = %+v", resp.Prev)
	}
	if resp.Occurrences[0].Status != scheduler.StatusOverdue {
		t.Errorf("first status = %q, want overdue", resp.Occurrences[0].Status)
	}
}

func TestScheduleMonthTemplate(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, "GET", "/api/schedule/2024/3?template=minimal", nil)
	resp := decode[monthResponse](t, w)
	if len(resp.Occurrences) != 31 {
		t.Errorf("got %d occurrences, want only the 31 kitchen ones", len(resp.Occurrences))
	}

	w = env.do(t, "GET", "/api/schedule/2024/3?template=castle", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestScheduleMonthInvalid(t *testing.T) {
	env := setupTestEnv(t)

	for _, path := range []string{"/api/schedule/2024/13", "/api/schedule/2024/0", "/api/schedule/abc/3"} {
		w := env.do(t, "GET", path, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, w.Code)
		}
	}
}

func TestScheduleDue(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, "GET", "/api/schedule/due?date=2024-03-11", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	occs := decode[[]scheduler.OccurrenceWithStatus](t, w)
	if len(occs) != 2 {
		t.Fatalf("got %d occurrences on a Monday, want 2", len(occs))
	}
	for _, o := range occs {
		if o.Status != scheduler.StatusUpcoming {
			t.Errorf("task %d status = %q, want upcoming", o.TaskID, o.Status)
		}
	}

	w = env.do(t, "GET", "/api/schedule/due", nil)
	occs = decode[[]scheduler.OccurrenceWithStatus](t, w)
	if len(occs) != 1 || occs[0].Status != scheduler.StatusPending {
		t.Errorf("today = %+v, want one pending task", occs)
	}

	w = env.do(t, "GET", "/api/schedule/due?date=March", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestToggleCompletion(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, "POST", "/api/completions/toggle", map[string]any{"task_id": 1, "date": "2024-03-06"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decode[toggleResponse](t, w)
	if !resp.Completed {
		t.Error("expected completed")
	}
	if resp.Record.Points != 7 {
		t.Errorf("points = %d, want 7", resp.Record.Points)
	}
	if resp.Stats.TotalTasks != 1 || resp.Stats.CurrentStreak != 1 {
		t.Errorf("stats = %+v", resp.Stats)
	}
	if len(resp.NewBadges) != 1 || resp.NewBadges[0].ID != "first-task" {
		t.Errorf("new badges = %+v, want first-task", resp.NewBadges)
	}

	w = env.do(t, "GET", "/api/schedule/due", nil)
	occs := decode[[]scheduler.OccurrenceWithStatus](t, w)
	if occs[0].Status != scheduler.StatusCompleted {
		t.Errorf("status = %q, want completed", occs[0].Status)
	}

	w = env.do(t, "POST", "/api/completions/toggle", map[string]any{"task_id": 1, "date": "2024-03-06"})
	resp = decode[toggleResponse](t, w)
	if resp.Completed {
		t.Error("second toggle should uncomplete")
	}
	if len(resp.NewBadges) != 0 {
		t.Errorf("new badges = %+v, want none", resp.NewBadges)
	}
}

func TestToggleErrors(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"unknown task", map[string]any{"task_id": 999, "date": "2024-03-06"}, http.StatusNotFound},
		{"bad date", map[string]any{"task_id": 1, "date": "06/03/2024"}, http.StatusBadRequest},
		{"unknown member", map[string]any{"task_id": 1, "member_id": "ghost"}, http.StatusNotFound},
		{"bad json", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/completions/toggle", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
	if n := len(env.ledger.Records()); n != 0 {
		t.Errorf("ledger has %d records, want 0", n)
	}
}

func TestListCompletionsAndStats(t *testing.T) {
	env := setupTestEnv(t)
	for _, d := range []string{"2024-03-04", "2024-03-05", "2024-03-06"} {
		env.do(t, "POST", "/api/completions/toggle", map[string]any{"task_id": 1, "date": d})
	}
	env.do(t, "POST", "/api/completions/toggle", map[string]any{"task_id": 2, "date": "2024-03-04"})

	w := env.do(t, "GET", "/api/completions?from=2024-03-05&to=2024-03-06", nil)
	records := decode[[]model.CompletionRecord](t, w)
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}

	w = env.do(t, "GET", "/api/completions?from=2024-03-06&to=2024-03-01", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	w = env.do(t, "GET", "/api/stats", nil)
	stats := decode[statsResponse](t, w)
	if stats.TotalTasks != 4 || stats.TotalPoints != 32 || stats.CurrentStreak != 3 {
		t.Errorf("stats = %+v, want 4 tasks, 32 points, streak 3", stats.Stats)
	}
	if stats.WeekPoints != 32 {
		t.Errorf("week points = %d, want 32", stats.WeekPoints)
	}
	if len(stats.Last7Days) != 7 || stats.Last7Days[6].Count != 1 || stats.Last7Days[4].Count != 2 {
		t.Errorf("last 7 days = %+v", stats.Last7Days)
	}
	if stats.Level.Number != 1 || stats.NextLevel == nil || stats.NextLevel.Number != 2 {
		t.Errorf("level = %+v next = %+v", stats.Level, stats.NextLevel)
	}
}

func TestCustomTaskLifecycle(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, "POST", "/api/tasks", map[string]any{"name": "Water plants", "zone": "Living Room", "frequency": "hebdomadaire"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	task := decode[model.Task](t, w)
	if task.Frequency != "weekly" || !task.IsCustom {
		t.Errorf("task = %+v", task)
	}

	w = env.do(t, "POST", "/api/tasks", map[string]any{"name": "Bad", "zone": "Kitchen", "frequency": "fortnightly"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid frequency status = %d, want 400", w.Code)
	}

	env.do(t, "POST", "/api/completions/toggle", map[string]any{"task_id": task.ID, "date": "2024-03-04"})
	if len(env.ledger.Records()) != 1 {
		t.Fatal("expected one record")
	}

	w = env.do(t, "DELETE", "/api/tasks/1", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("deleting a system task: status = %d, want 400", w.Code)
	}

	w = env.do(t, "DELETE", "/api/tasks/"+jsonInt(task.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if len(env.ledger.Records()) != 0 {
		t.Error("history of the deleted task should be dropped")
	}
	w = env.do(t, "GET", "/api/tasks/"+jsonInt(task.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get deleted: status = %d, want 404", w.Code)
	}
}

func TestDeleteTaskDropsAssignment(t *testing.T) {
	env := setupTestEnv(t)
	var changes int
	env.roster.OnChange(func() { changes++ })

	alice := decode[model.FamilyMember](t, env.do(t, "POST", "/api/family-members", map[string]string{"name": "Alice"}))
	task := decode[model.Task](t, env.do(t, "POST", "/api/tasks", map[string]any{"name": "Descale kettle", "zone": "Kitchen", "frequency": "monthly"}))
	if w := env.do(t, "PUT", "/api/tasks/"+jsonInt(task.ID)+"/assignee", map[string]string{"member_id": alice.ID}); w.Code != http.StatusOK {
		t.Fatalf("assign status = %d", w.Code)
	}

	before := changes
	if w := env.do(t, "DELETE", "/api/tasks/"+jsonInt(task.ID), nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if changes == before {
		t.Error("deleting an assigned task should notify roster listeners")
	}

	next := decode[model.Task](t, env.do(t, "POST", "/api/tasks", map[string]any{"name": "Clean oven", "zone": "Kitchen", "frequency": "monthly"}))
	if next.ID == task.ID {
		t.Errorf("id %d reused after delete", next.ID)
	}
	assignments, err := env.roster.Assignments()
	if err != nil {
		t.Fatalf("assignments: %v", err)
	}
	if len(assignments) != 0 {
		t.Errorf("assignments = %+v, want none", assignments)
	}
}

func TestHideTask(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, "PUT", "/api/tasks/2/hidden", map[string]bool{"hidden": true})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	tasks := decode[[]model.Task](t, env.do(t, "GET", "/api/tasks", nil))
	if len(tasks) != 2 {
		t.Errorf("got %d visible tasks, want 2", len(tasks))
	}
	tasks = decode[[]model.Task](t, env.do(t, "GET", "/api/tasks?hidden=true", nil))
	if len(tasks) != 3 {
		t.Errorf("got %d tasks with hidden, want 3", len(tasks))
	}

	w = env.do(t, "PUT", "/api/tasks/42/hidden", map[string]bool{"hidden": true})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestLeaderboardAndAssign(t *testing.T) {
	env := setupTestEnv(t)

	alice := decode[model.FamilyMember](t, env.do(t, "POST", "/api/family-members", map[string]string{"name": "Alice"}))
	bob := decode[model.FamilyMember](t, env.do(t, "POST", "/api/family-members", map[string]string{"name": "Bob"}))
	if alice.Color == bob.Color {
		t.Error("default colors should differ")
	}

	w := env.do(t, "POST", "/api/family-members", map[string]string{"name": "Alice"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", w.Code)
	}

	env.do(t, "POST", "/api/completions/toggle", map[string]any{"task_id": 2, "member_id": bob.ID})
	board := decode[[]model.FamilyMember](t, env.do(t, "GET", "/api/leaderboard", nil))
	if len(board) != 2 || board[0].ID != bob.ID || board[0].Points != 11 {
		t.Errorf("leaderboard = %+v, want Bob first with 11", board)
	}

	w = env.do(t, "PUT", "/api/tasks/1/assignee", map[string]string{"member_id": alice.ID})
	if w.Code != http.StatusOK {
		t.Errorf("assign status = %d", w.Code)
	}
	w = env.do(t, "PUT", "/api/tasks/77/assignee", map[string]string{"member_id": alice.ID})
	if w.Code != http.StatusNotFound {
		t.Errorf("assign unknown task status = %d, want 404", w.Code)
	}
	w = env.do(t, "PUT", "/api/tasks/1/assignee", map[string]string{"member_id": "ghost"})
	if w.Code != http.StatusNotFound {
		t.Errorf("assign unknown member status = %d, want 404", w.Code)
	}
}

func TestMemberPIN(t *testing.T) {
	env := setupTestEnv(t)
	m := decode[model.FamilyMember](t, env.do(t, "POST", "/api/family-members", map[string]string{"name": "Alice"}))
	base := "/api/family-members/" + m.ID + "/pin"

	if w := env.do(t, "POST", base+"/verify", map[string]string{"pin": "1234"}); w.Code != http.StatusBadRequest {
		t.Errorf("verify without pin: status = %d, want 400", w.Code)
	}
	if w := env.do(t, "POST", base, map[string]string{"pin": "12a4"}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid pin: status = %d, want 400", w.Code)
	}
	if w := env.do(t, "POST", base, map[string]string{"pin": "1234"}); w.Code != http.StatusOK {
		t.Fatalf("set pin: status = %d", w.Code)
	}
	if w := env.do(t, "POST", base+"/verify", map[string]string{"pin": "0000"}); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong pin: status = %d, want 401", w.Code)
	}
	if w := env.do(t, "POST", base+"/verify", map[string]string{"pin": "1234"}); w.Code != http.StatusOK {
		t.Errorf("right pin: status = %d, want 200", w.Code)
	}
}

func TestBadgesAndChallenges(t *testing.T) {
	env := setupTestEnv(t)
	env.do(t, "POST", "/api/completions/toggle", map[string]any{"task_id": 1})

	badges := decode[[]badgeView](t, env.do(t, "GET", "/api/badges", nil))
	if len(badges) != len(gamification.Badges) {
		t.Fatalf("got %d badges", len(badges))
	}
	if !badges[0].Unlocked || badges[0].UnlockedAt == nil {
		t.Errorf("first-task = %+v, want unlocked", badges[0])
	}
	if badges[1].Unlocked {
		t.Error("tasks-10 should be locked")
	}

	first := decode[challengesResponse](t, env.do(t, "GET", "/api/challenges", nil))
	if first.WeekID != "2024-W10" {
		t.Errorf("week = %q, want 2024-W10", first.WeekID)
	}
	if len(first.Challenges) != gamification.ChallengesPerWeek {
		t.Fatalf("got %d challenges", len(first.Challenges))
	}
	second := decode[challengesResponse](t, env.do(t, "GET", "/api/challenges", nil))
	for i := range first.Challenges {
		if first.Challenges[i].ID != second.Challenges[i].ID {
			t.Errorf("challenge %d changed between calls", i)
		}
	}
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
