package attendance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pichator/pichator/internal/shared"
)

// RepositoryPort defines data access methods for the attendance service.
type RepositoryPort interface {
	EmployeeByUsername(ctx context.Context, username string) (Employee, error)
	EmployeesInDept(ctx context.Context, dept string, from, to time.Time) ([]Employee, error)
	PV(ctx context.Context, pvid string) (PV, error)
	PVsByEmpNo(ctx context.Context, empNo int64, from, to time.Time) ([]PV, error)
	PVsInDept(ctx context.Context, dept string, from, to time.Time) ([]PV, error)
	Timetable(ctx context.Context, pvid string) ([]TimetableEntry, error)
	TimetablesByUID(ctx context.Context, uid int64) ([]TimetableEntry, error)
	ReplaceTimetable(ctx context.Context, pvid string, entries []TimetableEntry) error
	AttendanceRecords(ctx context.Context, uid int64, from, to time.Time) ([]AttendanceRecord, error)
	AttendanceInDept(ctx context.Context, dept string, from, to time.Time) ([]AttendanceRecord, error)
	UpsertAttendance(ctx context.Context, rec AttendanceRecord) error
	TopDepartments(ctx context.Context) ([]string, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Service is the attendance and timetable facade used by the web layer.
type Service struct {
	repo     RepositoryPort
	cache    *Cache
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		validate: validator.New(),
		now:      time.Now,
	}
}

// EmpNo returns the employee number of username, or 0 when unknown.
func (s *Service) EmpNo(ctx context.Context, username string) (int64, error) {
	emp, err := s.repo.EmployeeByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return emp.EmpNo, nil
}

// ACL returns the stored access level of username, or "" when unknown.
func (s *Service) ACL(ctx context.Context, username string) (string, error) {
	emp, err := s.repo.EmployeeByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return emp.ACL, nil
}

// Depts returns the departments username holds a PV in.
func (s *Service) Depts(ctx context.Context, username string) ([]string, error) {
	emp, err := s.repo.EmployeeByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []string{}, nil
		}
		return nil, err
	}
	if emp.Depts == nil {
		return []string{}, nil
	}
	return emp.Depts, nil
}

// PVIDToUsername resolves the owner of a PV, or "" when unknown.
func (s *Service) PVIDToUsername(ctx context.Context, pvid string) (string, error) {
	pv, err := s.repo.PV(ctx, pvid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return pv.Username, nil
}

// Employees lists employees working under dept during period. Empty dept
// means every department; empty period means the current month.
func (s *Service) Employees(ctx context.Context, dept, period string) ([]Employee, error) {
	p, err := s.period(period)
	if err != nil {
		return nil, err
	}
	return s.repo.EmployeesInDept(ctx, strings.TrimSpace(dept), p.FirstDay(), p.LastDay())
}

// Department returns the aggregated report of dept for period.
func (s *Service) Department(ctx context.Context, dept, period string) (DepartmentReport, error) {
	dept = strings.TrimSpace(dept)
	p, err := s.period(period)
	if err != nil {
		return DepartmentReport{}, err
	}
	key, err := s.cache.BuildKey(ctx, dept, p.String())
	if err != nil {
		return DepartmentReport{}, err
	}
	return s.cache.FetchDepartment(ctx, key, func(ctx context.Context) (DepartmentReport, error) {
		pvs, err := s.repo.PVsInDept(ctx, dept, p.FirstDay(), p.LastDay())
		if err != nil {
			return DepartmentReport{}, fmt.Errorf("attendance: department pvs: %w", err)
		}
		records, err := s.repo.AttendanceInDept(ctx, dept, p.FirstDay(), p.LastDay())
		if err != nil {
			return DepartmentReport{}, fmt.Errorf("attendance: department records: %w", err)
		}
		return buildDepartmentReport(dept, p, pvs, records), nil
	})
}

// WarmDepartments loads the report of every top-level department into the
// cache. It returns how many reports were built.
func (s *Service) WarmDepartments(ctx context.Context, period string) (int, error) {
	depts, err := s.repo.TopDepartments(ctx)
	if err != nil {
		return 0, err
	}
	for i, dept := range depts {
		if _, err := s.Department(ctx, dept, period); err != nil {
			return i, fmt.Errorf("attendance: warm department %s: %w", dept, err)
		}
	}
	return len(depts), nil
}

// SetTimetables stores a weekly plan submitted from the timetable form. It
// returns false without writing when the plan is malformed or its hours do
// not match the PV occupancy.
func (s *Service) SetTimetables(ctx context.Context, form map[string]string) (bool, error) {
	pvid, entries, total, err := parseTimetableForm(s.validate, form)
	if err != nil {
		return false, nil
	}
	pv, err := s.repo.PV(ctx, pvid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !matchesOccupancy(total, pv.Occupancy) {
		return false, nil
	}
	if err := s.repo.ReplaceTimetable(ctx, pvid, entries); err != nil {
		return false, fmt.Errorf("attendance: replace timetable: %w", err)
	}
	if err := s.repo.Commit(ctx); err != nil {
		return false, err
	}
	// A failed bump only leaves reports stale until the TTL expires.
	_ = s.cache.Bump(ctx)
	return true, nil
}

// Timetables returns the planned weeks of every PV held by uid.
func (s *Service) Timetables(ctx context.Context, uid int64) ([]TimetableEntry, error) {
	return s.repo.TimetablesByUID(ctx, uid)
}

// PVs lists the work assignments of empNo valid during period.
func (s *Service) PVs(ctx context.Context, empNo int64, period string) ([]PV, error) {
	p, err := s.period(period)
	if err != nil {
		return nil, err
	}
	return s.repo.PVsByEmpNo(ctx, empNo, p.FirstDay(), p.LastDay())
}

// Attendance builds the month sheet of pvid for username. viewerUID marks
// whether the sheet belongs to the caller.
func (s *Service) Attendance(ctx context.Context, viewerUID int64, pvid, period, username string) (AttendanceSheet, error) {
	p, err := s.period(period)
	if err != nil {
		return AttendanceSheet{}, err
	}
	emp, err := s.repo.EmployeeByUsername(ctx, username)
	if err != nil {
		return AttendanceSheet{}, err
	}
	plan, err := s.repo.Timetable(ctx, pvid)
	if err != nil {
		return AttendanceSheet{}, fmt.Errorf("attendance: timetable: %w", err)
	}
	records, err := s.repo.AttendanceRecords(ctx, emp.UID, p.FirstDay(), p.LastDay())
	if err != nil {
		return AttendanceSheet{}, fmt.Errorf("attendance: records: %w", err)
	}
	return buildSheet(p, pvid, emp, viewerUID == emp.UID, plan, records), nil
}

// SetAttendance records start, end and mode for a day of period.
func (s *Service) SetAttendance(ctx context.Context, day, period, username, start, end, mode string) (SubmitResult, error) {
	p, err := shared.ParsePeriod(period)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	dayNum, err := strconv.Atoi(strings.TrimSpace(day))
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: day %q", ErrInvalidInput, day)
	}
	date, err := p.Date(dayNum)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := spanMinutes(start, end); err != nil {
		return SubmitResult{}, err
	}
	if mode = strings.TrimSpace(mode); mode == "" {
		mode = ModeAbsence
	}
	if err := s.validate.Var(mode, "oneof="+modeList); err != nil {
		return SubmitResult{}, fmt.Errorf("%w: mode %q", ErrInvalidInput, mode)
	}
	emp, err := s.repo.EmployeeByUsername(ctx, username)
	if err != nil {
		return SubmitResult{}, err
	}
	rec := AttendanceRecord{
		UID:   emp.UID,
		Day:   date,
		Start: strings.TrimSpace(start),
		End:   strings.TrimSpace(end),
		Mode:  mode,
	}
	if err := s.repo.UpsertAttendance(ctx, rec); err != nil {
		return SubmitResult{}, fmt.Errorf("attendance: upsert: %w", err)
	}
	if err := s.repo.Commit(ctx); err != nil {
		return SubmitResult{}, err
	}
	_ = s.cache.Bump(ctx)
	return SubmitResult{OK: true, Date: date.Format("2006-01-02"), Mode: mode}, nil
}

// Rollback discards uncommitted work of the current request.
func (s *Service) Rollback(ctx context.Context) error {
	return s.repo.Rollback(ctx)
}

func (s *Service) period(raw string) (shared.Period, error) {
	if strings.TrimSpace(raw) == "" {
		return shared.PeriodOf(s.now()), nil
	}
	p, err := shared.ParsePeriod(raw)
	if err != nil {
		return shared.Period{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return p, nil
}
