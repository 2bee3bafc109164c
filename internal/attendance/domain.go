package attendance

import (
	"errors"
	"fmt"
	"time"

	"github.com/pichator/pichator/internal/shared"
)

// Attendance modes recorded for a day. Anything other than ModePresence is
// counted as an absence in department reports.
const (
	ModeAbsence      = "Absence"
	ModePresence     = "Presence"
	ModeVacation     = "Vacation"
	ModeSickness     = "Sickness"
	ModeBusinessTrip = "BusinessTrip"
)

const modeList = ModeAbsence + " " + ModePresence + " " + ModeVacation + " " + ModeSickness + " " + ModeBusinessTrip

// FullTimeWeekMinutes is the contractual week for occupancy 1.0.
const FullTimeWeekMinutes = 40 * 60

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = fmt.Errorf("attendance: %w", shared.ErrNotFound)
	// ErrInvalidInput indicates a malformed write request.
	ErrInvalidInput = errors.New("attendance: invalid input")
)

// Employee is a person known to the attendance system.
type Employee struct {
	UID      int64    `json:"uid"`
	EmpNo    int64    `json:"emp_no"`
	Username string   `json:"username"`
	ACL      string   `json:"-"`
	Depts    []string `json:"depts,omitempty"`
}

// PV is a work assignment ("pracovní vztah") of an employee. Its identifier
// is "<emp_no>.<suffix>".
type PV struct {
	PVID      string     `json:"pvid"`
	UID       int64      `json:"uid"`
	EmpNo     int64      `json:"emp_no"`
	Username  string     `json:"username"`
	Dept      string     `json:"dept"`
	Occupancy float64    `json:"occupancy"`
	ValidFrom time.Time  `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`
}

// TimetableEntry is the planned working time of a PV on one weekday.
type TimetableEntry struct {
	PVID    string       `json:"pvid"`
	Weekday time.Weekday `json:"weekday"`
	Start   string       `json:"start"`
	End     string       `json:"end"`
}

// AttendanceRecord is what an employee reported for a day.
type AttendanceRecord struct {
	UID   int64     `json:"uid"`
	Day   time.Time `json:"day"`
	Start string    `json:"start"`
	End   string    `json:"end"`
	Mode  string    `json:"mode"`
}

// AttendanceDay is one calendar day of an attendance sheet.
type AttendanceDay struct {
	Day          int    `json:"day"`
	Date         string `json:"date"`
	Weekday      string `json:"weekday"`
	Weekend      bool   `json:"weekend"`
	PlannedStart string `json:"planned_start,omitempty"`
	PlannedEnd   string `json:"planned_end,omitempty"`
	Start        string `json:"start,omitempty"`
	End          string `json:"end,omitempty"`
	Mode         string `json:"mode,omitempty"`
}

// AttendanceSheet is the month view of one PV.
type AttendanceSheet struct {
	PVID     string          `json:"pvid"`
	Period   string          `json:"period"`
	Username string          `json:"username"`
	EmpNo    int64           `json:"emp_no"`
	Own      bool            `json:"own"`
	Days     []AttendanceDay `json:"days"`
}

// DepartmentEmployee summarises one employee inside a department report.
type DepartmentEmployee struct {
	EmpNo        int64    `json:"emp_no"`
	Username     string   `json:"username"`
	PVIDs        []string `json:"pvids"`
	AbsenceDays  int      `json:"absence_days"`
	AbsenceHours float64  `json:"absence_hours"`
}

// DepartmentReport aggregates a department for a period.
type DepartmentReport struct {
	Dept      string               `json:"dept"`
	Period    string               `json:"period"`
	Employees []DepartmentEmployee `json:"employees"`
}

// SubmitResult is returned after an attendance write.
type SubmitResult struct {
	OK   bool   `json:"result"`
	Date string `json:"date"`
	Mode string `json:"mode"`
}
