package store

import (
	"testing"
	"time"

	"github.com/dukerupert/cleanhome/internal/model"
)

func TestAssignment(t *testing.T) {
	ms, as := setupFamilyTestDB(t)
	a, _ := ms.Create("Alice", "#3B82F6", "🦊")
	b, _ := ms.Create("Bob", "#EF4444", "🐻")

	got, err := as.Get(3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}

	assigned, err := as.Assign(3, a.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.TaskID != 3 || assigned.MemberID != a.ID {
		t.Errorf("got %+v", assigned)
	}

	reassigned, err := as.Assign(3, b.ID)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if reassigned.MemberID != b.ID {
		t.Errorf("member = %q, want Bob", reassigned.MemberID)
	}

	list, _ := as.List()
	if len(list) != 1 {
		t.Errorf("got %d assignments, want 1", len(list))
	}

	if err := as.Unassign(3); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	list, _ = as.List()
	if len(list) != 0 {
		t.Errorf("got %d assignments, want 0", len(list))
	}
}

func TestAssignmentUnknownMember(t *testing.T) {
	_, as := setupFamilyTestDB(t)

	if _, err := as.Assign(1, "nobody"); err == nil {
		t.Error("expected foreign key error")
	}
}

func TestAssignmentReplaceAll(t *testing.T) {
	ms, as := setupFamilyTestDB(t)
	a, _ := ms.Create("Alice", "#3B82F6", "🦊")
	as.Assign(9, a.ID)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	err := as.ReplaceAll([]model.TaskAssignment{
		{TaskID: 1, MemberID: a.ID, AssignedAt: at},
		{TaskID: 2, MemberID: "nobody", AssignedAt: at},
	})
	if err != nil {
		t.Fatalf("replace all: %v", err)
	}

	list, _ := as.List()
	if len(list) != 1 {
		t.Fatalf("got %d assignments, want 1", len(list))
	}
	if list[0].TaskID != 1 || !list[0].AssignedAt.Equal(at) {
		t.Errorf("got %+v", list[0])
	}
}
