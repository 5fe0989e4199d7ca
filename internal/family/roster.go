// Package family manages household members, their PINs and the tasks
// assigned to them. Member points are derived from the completion ledger.
package family

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/cleanhome/internal/model"
	"github.com/dukerupert/cleanhome/internal/store"
)

var (
	ErrMemberNotFound = errors.New("family member not found")
	ErrNameRequired   = errors.New("name is required")
	ErrDuplicateName  = errors.New("a family member with that name already exists")
	ErrInvalidColor   = errors.New("color must be a hex color (e.g. #FF0000)")
	ErrInvalidPIN     = errors.New("PIN must be exactly 4 digits")
	ErrNoPIN          = errors.New("no PIN set for this member")
	ErrWrongPIN       = errors.New("incorrect PIN")
)

var hexColorRegexp = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// New members without an explicit color or avatar take the next entry.
var (
	DefaultColors  = []string{"#3B82F6", "#EF4444", "#10B981", "#F59E0B", "#8B5CF6", "#EC4899", "#14B8A6", "#F97316"}
	DefaultAvatars = []string{"😀", "😎", "🤓", "🥳", "🦊", "🐼", "🐯", "🦄"}
)

// PointsSource sums completion points per member id.
type PointsSource interface {
	PointsByActor() map[string]int
}

type Roster struct {
	members     *store.FamilyMemberStore
	assignments *store.AssignmentStore
	points      PointsSource
	logger      *slog.Logger

	mu        sync.Mutex
	listeners []func()
}

func NewRoster(members *store.FamilyMemberStore, assignments *store.AssignmentStore, points PointsSource, logger *slog.Logger) *Roster {
	return &Roster{members: members, assignments: assignments, points: points, logger: logger}
}

// OnChange registers fn to run after every local roster or assignment
// mutation.
func (r *Roster) OnChange(fn func()) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Roster) changed() {
	r.mu.Lock()
	fns := append([]func(){}, r.listeners...)
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// List returns members in display order with their points filled in.
func (r *Roster) List() ([]model.FamilyMember, error) {
	members, err := r.members.List()
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []model.FamilyMember{}
	}
	scores := r.points.PointsByActor()
	for i := range members {
		members[i].Points = scores[members[i].ID]
	}
	return members, nil
}

// Leaderboard returns members ordered by points, highest first. Ties keep
// display order.
func (r *Roster) Leaderboard() ([]model.FamilyMember, error) {
	members, err := r.List()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Points > members[j].Points
	})
	return members, nil
}

func (r *Roster) Get(id string) (*model.FamilyMember, error) {
	m, err := r.members.GetByID(id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMemberNotFound
	}
	m.Points = r.points.PointsByActor()[m.ID]
	return m, nil
}

// Add creates a member. Empty color or avatar default to the next entry of
// DefaultColors and DefaultAvatars.
func (r *Roster) Add(name, color, avatar string) (*model.FamilyMember, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	if color == "" || avatar == "" {
		n, err := r.members.Count()
		if err != nil {
			return nil, err
		}
		if color == "" {
			color = DefaultColors[n%len(DefaultColors)]
		}
		if avatar == "" {
			avatar = DefaultAvatars[n%len(DefaultAvatars)]
		}
	}
	if !hexColorRegexp.MatchString(color) {
		return nil, ErrInvalidColor
	}

	exists, err := r.members.NameExists(name, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateName
	}

	m, err := r.members.Create(name, color, avatar)
	if err != nil {
		return nil, err
	}
	r.logger.Info("family member added", "member_id", m.ID, "name", m.Name)
	r.changed()
	return m, nil
}

// Update renames or restyles a member. Empty color or avatar keep the
// current value.
func (r *Roster) Update(id, name, color, avatar string) (*model.FamilyMember, error) {
	existing, err := r.members.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrMemberNotFound
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if color == "" {
		color = existing.Color
	}
	if !hexColorRegexp.MatchString(color) {
		return nil, ErrInvalidColor
	}
	if avatar == "" {
		avatar = existing.AvatarEmoji
	}

	exists, err := r.members.NameExists(name, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateName
	}

	m, err := r.members.Update(id, name, color, avatar)
	if err != nil {
		return nil, err
	}
	r.changed()
	return m, nil
}

// Remove deletes a member and their assignments. Completion records that
// name the member stay in the ledger.
func (r *Roster) Remove(id string) error {
	existing, err := r.members.GetByID(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrMemberNotFound
	}
	if err := r.members.Delete(id); err != nil {
		return err
	}
	r.logger.Info("family member removed", "member_id", id)
	r.changed()
	return nil
}

func (r *Roster) Reorder(ids []string) error {
	if err := r.members.UpdateSortOrder(ids); err != nil {
		return err
	}
	r.changed()
	return nil
}

func (r *Roster) SetPIN(id, pin string) error {
	if len(pin) != 4 || !isDigits(pin) {
		return ErrInvalidPIN
	}
	existing, err := r.members.GetByID(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrMemberNotFound
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	return r.members.SetPIN(id, string(hash))
}

func (r *Roster) ClearPIN(id string) error {
	return r.members.ClearPIN(id)
}

func (r *Roster) VerifyPIN(id, pin string) error {
	existing, err := r.members.GetByID(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrMemberNotFound
	}
	hash, err := r.members.GetPINHash(id)
	if err != nil {
		return err
	}
	if hash == "" {
		return ErrNoPIN
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)); err != nil {
		return ErrWrongPIN
	}
	return nil
}

func (r *Roster) Assignments() ([]model.TaskAssignment, error) {
	out, err := r.assignments.List()
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.TaskAssignment{}
	}
	return out, nil
}

// Assign gives a task to a member, replacing the previous assignee.
func (r *Roster) Assign(taskID int64, memberID string) (*model.TaskAssignment, error) {
	m, err := r.members.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMemberNotFound
	}
	a, err := r.assignments.Assign(taskID, memberID)
	if err != nil {
		return nil, err
	}
	r.changed()
	return a, nil
}

func (r *Roster) Unassign(taskID int64) error {
	if err := r.assignments.Unassign(taskID); err != nil {
		return err
	}
	r.changed()
	return nil
}

// AssignedTo lists the task ids assigned to memberID.
func (r *Roster) AssignedTo(memberID string) ([]int64, error) {
	all, err := r.assignments.List()
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, a := range all {
		if a.MemberID == memberID {
			ids = append(ids, a.TaskID)
		}
	}
	return ids, nil
}

// ReplaceMembers overwrites the roster with a remote snapshot without
// notifying listeners.
func (r *Roster) ReplaceMembers(members []model.FamilyMember) error {
	return r.members.ReplaceAll(members)
}

// ReplaceAssignments overwrites assignments with a remote snapshot without
// notifying listeners.
func (r *Roster) ReplaceAssignments(assignments []model.TaskAssignment) error {
	return r.assignments.ReplaceAll(assignments)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
