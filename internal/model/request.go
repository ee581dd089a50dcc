package model

import (
	"encoding/json"
	"time"
)

// Entity type names as they appear in solver diagnostics and UI routing.
const (
	EntityTeacher = "Teacher"
	EntityClass   = "Class"
	EntitySubject = "Subject"
	EntityRoom    = "Room"
	EntityPeriod  = "Period"
)

// SolveRequest is the payload the persistence layer assembles for the engine.
type SolveRequest struct {
	Teachers []Teacher `json:"teachers" yaml:"teachers"`
	Subjects []Subject `json:"subjects" yaml:"subjects"`
	Rooms    []Room    `json:"rooms" yaml:"rooms"`
	Classes  []Class   `json:"classes" yaml:"classes"`
	Config   GridShape `json:"config" yaml:"config"`
}

// GridShape is the weekly timetable grid.
type GridShape struct {
	PeriodsPerDay int      `json:"periodsPerDay" yaml:"periodsPerDay"`
	DaysPerWeek   int      `json:"daysPerWeek" yaml:"daysPerWeek"`
	Days          []string `json:"days,omitempty" yaml:"days,omitempty"`
}

// WeeklySlots returns the number of lesson slots in one week.
func (g GridShape) WeeklySlots() int {
	if g.PeriodsPerDay <= 0 || g.DaysPerWeek <= 0 {
		return 0
	}
	return g.PeriodsPerDay * g.DaysPerWeek
}

// Teacher is a member of staff. Availability maps a day name to one flag per period.
type Teacher struct {
	ID                int               `json:"id" yaml:"id"`
	Name              string            `json:"name" yaml:"name"`
	Availability      map[string][]bool `json:"availability,omitempty" yaml:"availability,omitempty"`
	MaxPeriodsPerWeek int               `json:"maxPeriodsPerWeek,omitempty" yaml:"maxPeriodsPerWeek,omitempty"`
}

// Subject is a taught subject. A subject with FixedRoomID must always be held in that room.
type Subject struct {
	ID             int    `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	PeriodsPerWeek int    `json:"periodsPerWeek,omitempty" yaml:"periodsPerWeek,omitempty"`
	FixedRoomID    *int   `json:"fixedRoomId,omitempty" yaml:"fixedRoomId,omitempty"`
}

// Room is a physical room.
type Room struct {
	ID       int    `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Capacity int    `json:"capacity" yaml:"capacity"`
}

// Class is a group of students following a curriculum.
type Class struct {
	ID           int               `json:"id" yaml:"id"`
	Name         string            `json:"name" yaml:"name"`
	StudentCount int               `json:"studentCount" yaml:"studentCount"`
	FixedRoomID  *int              `json:"fixedRoomId,omitempty" yaml:"fixedRoomId,omitempty"`
	Curriculum   []CurriculumEntry `json:"curriculum,omitempty" yaml:"curriculum,omitempty"`
}

// CurriculumEntry assigns a subject (and optionally its teacher) to a class.
// A zero PeriodsPerWeek falls back to the subject's default.
type CurriculumEntry struct {
	SubjectID      int `json:"subjectId" yaml:"subjectId"`
	TeacherID      int `json:"teacherId,omitempty" yaml:"teacherId,omitempty"`
	PeriodsPerWeek int `json:"periodsPerWeek,omitempty" yaml:"periodsPerWeek,omitempty"`
}

// Lesson is one scheduled slot returned by the engine.
type Lesson struct {
	ClassID   int    `json:"classId"`
	SubjectID int    `json:"subjectId"`
	TeacherID int    `json:"teacherId"`
	RoomID    *int   `json:"roomId,omitempty"`
	Day       string `json:"day"`
	Period    int    `json:"period"`
}

// InvocationOptions tune a single solver invocation.
type InvocationOptions struct {
	// Timeout bounds the engine run. Zero selects the configured default.
	Timeout time.Duration `json:"timeout,omitempty"`

	// EnginePath overrides engine resolution for this invocation only.
	EnginePath string `json:"enginePath,omitempty"`
}

// InvocationRequest is one call into the orchestrator.
type InvocationRequest struct {
	Payload SolveRequest

	// Raw, when set, is sent to the engine verbatim instead of re-encoding
	// Payload, so fields timegrid does not model still reach the solver.
	Raw json.RawMessage

	Options InvocationOptions
}
