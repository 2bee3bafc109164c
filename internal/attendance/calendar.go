package attendance

import (
	"time"

	"github.com/pichator/pichator/internal/shared"
)

func buildSheet(period shared.Period, pvid string, emp Employee, own bool, plan []TimetableEntry, records []AttendanceRecord) AttendanceSheet {
	planned := make(map[time.Weekday]TimetableEntry, len(plan))
	for _, entry := range plan {
		planned[entry.Weekday] = entry
	}
	recorded := make(map[int]AttendanceRecord, len(records))
	for _, rec := range records {
		if rec.Day.Year() == period.Year && rec.Day.Month() == period.Month {
			recorded[rec.Day.Day()] = rec
		}
	}

	days := make([]AttendanceDay, 0, period.Days())
	for day := 1; day <= period.Days(); day++ {
		date := time.Date(period.Year, period.Month, day, 0, 0, 0, 0, time.UTC)
		weekday := date.Weekday()
		entry := AttendanceDay{
			Day:     day,
			Date:    date.Format("2006-01-02"),
			Weekday: weekday.String(),
			Weekend: weekday == time.Saturday || weekday == time.Sunday,
		}
		if p, ok := planned[weekday]; ok && !entry.Weekend {
			entry.PlannedStart = p.Start
			entry.PlannedEnd = p.End
		}
		if rec, ok := recorded[day]; ok {
			entry.Start = rec.Start
			entry.End = rec.End
			entry.Mode = rec.Mode
		}
		days = append(days, entry)
	}

	return AttendanceSheet{
		PVID:     pvid,
		Period:   period.String(),
		Username: emp.Username,
		EmpNo:    emp.EmpNo,
		Own:      own,
		Days:     days,
	}
}

// buildDepartmentReport folds PVs and records into per-employee totals. The
// PVs arrive ordered by username, emp_no, pvid and that order is kept.
func buildDepartmentReport(dept string, period shared.Period, pvs []PV, records []AttendanceRecord) DepartmentReport {
	report := DepartmentReport{Dept: dept, Period: period.String(), Employees: make([]DepartmentEmployee, 0)}
	index := make(map[int64]int)
	for _, pv := range pvs {
		i, ok := index[pv.UID]
		if !ok {
			i = len(report.Employees)
			index[pv.UID] = i
			report.Employees = append(report.Employees, DepartmentEmployee{
				EmpNo:    pv.EmpNo,
				Username: pv.Username,
				PVIDs:    make([]string, 0, 1),
			})
		}
		report.Employees[i].PVIDs = append(report.Employees[i].PVIDs, pv.PVID)
	}
	for _, rec := range records {
		i, ok := index[rec.UID]
		if !ok || rec.Mode == ModePresence {
			continue
		}
		report.Employees[i].AbsenceDays++
		if minutes, err := spanMinutes(rec.Start, rec.End); err == nil {
			report.Employees[i].AbsenceHours += float64(minutes) / 60
		}
	}
	return report
}
