// Package feasibility performs a static pre-check of a solve request before
// the engine is started. It looks only at hard room assignments and the grid
// shape, and never does I/O.
package feasibility

import (
	"fmt"
	"slices"

	"github.com/seantiz/timegrid/internal/model"
)

// Rule names reported in FeasibilityWarning.Rule.
const (
	RuleGridShape      = "grid_shape"
	RuleRoomMissing    = "room_missing"
	RuleRoomCapacity   = "room_capacity"
	RuleRoomCrowded    = "room_crowded"
	RuleRoomOverbooked = "room_overbooked"
)

// Thresholds tune the room rules.
type Thresholds struct {
	// MaxFixedPerRoom is the number of hard-assigned entities a room takes
	// before a crowding warning is raised.
	MaxFixedPerRoom int

	// OverbookRatio is the share of weekly slots a room's hard-assigned
	// demand may fill before the request is rejected.
	OverbookRatio float64
}

// DefaultThresholds are used for any non-positive field.
var DefaultThresholds = Thresholds{MaxFixedPerRoom: 3, OverbookRatio: 0.8}

func (t Thresholds) normalized() Thresholds {
	if t.MaxFixedPerRoom <= 0 {
		t.MaxFixedPerRoom = DefaultThresholds.MaxFixedPerRoom
	}
	if t.OverbookRatio <= 0 {
		t.OverbookRatio = DefaultThresholds.OverbookRatio
	}
	return t
}

// Checker evaluates requests against a set of thresholds. The zero value
// uses DefaultThresholds.
type Checker struct {
	Thresholds Thresholds
}

// NewChecker returns a Checker with t, falling back to defaults field by field.
func NewChecker(t Thresholds) *Checker {
	return &Checker{Thresholds: t.normalized()}
}

// Check runs the pre-check with DefaultThresholds.
func Check(req model.SolveRequest) []model.FeasibilityWarning {
	return (&Checker{}).Check(req)
}

// HasErrors reports whether any finding blocks invocation.
func HasErrors(ws []model.FeasibilityWarning) bool {
	return slices.ContainsFunc(ws, func(w model.FeasibilityWarning) bool {
		return w.Severity == model.SeverityError
	})
}

// assignee is one entity hard-assigned to a room.
type assignee struct {
	ref model.EntityRef
	// sizes lists the student counts that must fit in the room, with the
	// class each one belongs to.
	sizes []classSize
}

type classSize struct {
	class int
	count int
}

// Check returns the findings for req. Output order is deterministic: the grid
// rule first, then rooms by ascending id, assignees in input order.
func (c *Checker) Check(req model.SolveRequest) []model.FeasibilityWarning {
	th := c.Thresholds.normalized()
	var out []model.FeasibilityWarning

	grid := req.Config
	if grid.PeriodsPerDay < 0 || grid.DaysPerWeek < 0 {
		out = append(out, model.FeasibilityWarning{
			Severity: model.SeverityError,
			Rule:     RuleGridShape,
			Message: fmt.Sprintf("The timetable grid must have a positive number of periods per day and days per week (got %d x %d).",
				grid.PeriodsPerDay, grid.DaysPerWeek),
			AffectedEntities: []model.EntityRef{},
		})
	}

	rooms := make(map[int]model.Room, len(req.Rooms))
	for _, r := range req.Rooms {
		rooms[r.ID] = r
	}
	subjects := make(map[int]model.Subject, len(req.Subjects))
	for _, s := range req.Subjects {
		subjects[s.ID] = s
	}

	byRoom, demand := assignments(req, subjects)

	ids := make([]int, 0, len(byRoom))
	for id := range byRoom {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	slots := grid.WeeklySlots()
	for _, id := range ids {
		as := byRoom[id]
		roomRef := model.EntityRef{Type: model.EntityRoom, ID: id}

		room, ok := rooms[id]
		if !ok {
			for _, a := range as {
				out = append(out, model.FeasibilityWarning{
					Severity:         model.SeverityError,
					Rule:             RuleRoomMissing,
					Message:          fmt.Sprintf("%s is assigned to room %d, which does not exist.", a.ref, id),
					AffectedEntities: []model.EntityRef{a.ref, roomRef},
				})
			}
			continue
		}

		for _, a := range as {
			for _, sz := range a.sizes {
				if room.Capacity >= sz.count {
					continue
				}
				affected := []model.EntityRef{roomRef, a.ref}
				who := a.ref.String()
				if a.ref.Type != model.EntityClass {
					cls := model.EntityRef{Type: model.EntityClass, ID: sz.class}
					affected = append(affected, cls)
					who = fmt.Sprintf("%s taking %s", cls, a.ref)
				}
				out = append(out, model.FeasibilityWarning{
					Severity: model.SeverityWarning,
					Rule:     RuleRoomCapacity,
					Message: fmt.Sprintf("%s holds %d students, but %s has %d.",
						roomLabel(room), room.Capacity, who, sz.count),
					AffectedEntities: affected,
				})
			}
		}

		if len(as) > th.MaxFixedPerRoom {
			affected := []model.EntityRef{roomRef}
			for _, a := range as {
				affected = append(affected, a.ref)
			}
			out = append(out, model.FeasibilityWarning{
				Severity: model.SeverityWarning,
				Rule:     RuleRoomCrowded,
				Message: fmt.Sprintf("%d entities are fixed to %s, needing %d periods per week.",
					len(as), roomLabel(room), demand[id]),
				AffectedEntities: affected,
			})
		}

		if slots > 0 && float64(demand[id]) > th.OverbookRatio*float64(slots) {
			affected := []model.EntityRef{roomRef}
			for _, a := range as {
				affected = append(affected, a.ref)
			}
			out = append(out, model.FeasibilityWarning{
				Severity: model.SeverityError,
				Rule:     RuleRoomOverbooked,
				Message: fmt.Sprintf("%s is needed for %d of %d weekly periods, more than %.0f%% of the week.",
					roomLabel(room), demand[id], slots, th.OverbookRatio*100),
				AffectedEntities: affected,
			})
		}
	}
	return out
}

// assignments groups hard-assigned entities by room and sums each room's
// weekly demand. A lesson goes to its subject's fixed room when set, else to
// its class's fixed room.
func assignments(req model.SolveRequest, subjects map[int]model.Subject) (map[int][]*assignee, map[int]int) {
	byRoom := make(map[int][]*assignee)
	demand := make(map[int]int)

	for _, cl := range req.Classes {
		if cl.FixedRoomID == nil {
			continue
		}
		byRoom[*cl.FixedRoomID] = append(byRoom[*cl.FixedRoomID], &assignee{
			ref:   model.EntityRef{Type: model.EntityClass, ID: cl.ID},
			sizes: []classSize{{class: cl.ID, count: cl.StudentCount}},
		})
	}

	subjectAssignee := make(map[int]*assignee)
	for _, s := range req.Subjects {
		if s.FixedRoomID == nil {
			continue
		}
		a := &assignee{ref: model.EntityRef{Type: model.EntitySubject, ID: s.ID}}
		subjectAssignee[s.ID] = a
		byRoom[*s.FixedRoomID] = append(byRoom[*s.FixedRoomID], a)
	}

	taught := make(map[int]bool)
	for _, cl := range req.Classes {
		for _, e := range cl.Curriculum {
			subj, known := subjects[e.SubjectID]
			periods := e.PeriodsPerWeek
			if periods == 0 && known {
				periods = subj.PeriodsPerWeek
			}
			switch {
			case known && subj.FixedRoomID != nil:
				taught[subj.ID] = true
				demand[*subj.FixedRoomID] += periods
				a := subjectAssignee[subj.ID]
				a.sizes = append(a.sizes, classSize{class: cl.ID, count: cl.StudentCount})
			case cl.FixedRoomID != nil:
				demand[*cl.FixedRoomID] += periods
			}
		}
	}
	for _, s := range req.Subjects {
		if s.FixedRoomID != nil && !taught[s.ID] {
			demand[*s.FixedRoomID] += s.PeriodsPerWeek
		}
	}
	return byRoom, demand
}

func roomLabel(r model.Room) string {
	if r.Name != "" {
		return fmt.Sprintf("Room %d (%s)", r.ID, r.Name)
	}
	return fmt.Sprintf("Room %d", r.ID)
}
