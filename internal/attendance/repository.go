package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pichator/pichator/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence. Every query runs inside
// the request scope when one is attached to ctx.
type Repository struct {
	pool db.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool db.Pool) *Repository {
	return &Repository{pool: pool}
}

const pvColumns = `p.pvid, e.uid, e.emp_no, e.username, p.dept, p.occupancy::float8, p.valid_from, p.valid_to`

const validDuring = `p.valid_from <= $3 AND (p.valid_to IS NULL OR p.valid_to >= $2)`

// EmployeeByUsername looks an employee up by the gateway full name.
func (r *Repository) EmployeeByUsername(ctx context.Context, username string) (Employee, error) {
	conn, err := db.Conn(ctx, r.pool)
	if err != nil {
		return Employee{}, err
	}
	const query = `SELECT e.uid, e.emp_no, e.username, e.acl,
		COALESCE(array_agg(DISTINCT p.dept ORDER BY p.dept) FILTER (WHERE p.dept IS NOT NULL), '{}')
		FROM employees e
		LEFT JOIN pvs p ON p.uid = e.uid
		WHERE e.username = $1
		GROUP BY e.uid, e.emp_no, e.username, e.acl`
	var emp Employee
	err = conn.QueryRow(ctx, query, username).Scan(&emp.UID, &emp.EmpNo, &emp.Username, &emp.ACL, &emp.Depts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, ErrNotFound
		}
		return Employee{}, err
	}
	return emp, nil
}

// EmployeesInDept lists employees holding a PV under dept during [from, to].
// An empty dept matches every department.
func (r *Repository) EmployeesInDept(ctx context.Context, dept string, from, to time.Time) ([]Employee, error) {
	conn, err := db.Conn(ctx, r.pool)
	if err != nil {
		return nil, err
	}
	query := `SELECT e.uid, e.emp_no, e.username, e.acl, array_agg(DISTINCT p.dept ORDER BY p.dept)
		FROM employees e
		JOIN pvs p ON p.uid = e.uid
		WHERE starts_with(p.dept, $1) AND ` + validDuring + `
		GROUP BY e.uid, e.emp_no, e.username, e.acl
		ORDER BY e.username, e.emp_no`
	rows, err := conn.Query(ctx, query, dept, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	employees := make([]Employee, 0)
	for rows.Next() {
		var emp Employee
		if err := rows.Scan(&emp.UID, &emp.EmpNo, &emp.Username, &emp.ACL, &emp.Depts); err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// PV loads a single work assignment.
func (r *Repository) PV(ctx context.Context, pvid string) (PV, error) {
	conn, err := db.Conn(ctx, r.pool)
	if err != nil {
		return PV{}, err
	}
	query := `SELECT ` + pvColumns + ` FROM pvs p JOIN employees e ON e.uid = p.uid WHERE p.pvid = $1`
	pv, err := scanPV(conn.QueryRow(ctx, query, pvid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PV{}, ErrNotFound
		}
		return PV{}, err
	}
	return pv, nil
}

// PVsByEmpNo lists the PVs of an employee valid during [from, to].
func (r *Repository) PVsByEmpNo(ctx context.Context, empNo int64, from, to time.Time) ([]PV, error) {
	query := `SELECT ` + pvColumns + ` FROM pvs p JOIN employees e ON e.uid = p.uid
		WHERE e.emp_no = $1 AND ` + validDuring + ` ORDER BY p.pvid`
	return r.queryPVs(ctx, query, empNo, from, to)
}

// PVsInDept lists PVs under dept valid during [from, to].
func (r *Repository) PVsInDept(ctx context.Context, dept string, from, to time.Time) ([]PV, error) {
	query := `SELECT ` + pvColumns + ` FROM pvs p JOIN employees e ON e.uid = p.uid
		WHERE starts_with(p.dept, $1) AND ` + validDuring + ` ORDER BY e.username, e.emp_no, p.pvid`
	return r.queryPVs(ctx, query, dept, from, to)
}

func (r *Repository) queryPVs(ctx context.Context, query string, args ...any) ([]PV, error) {
	conn, err := db.Conn(ctx, r.pool)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	pvs := make([]PV, 0)
	for rows.Next() {
		pv, err := scanPV(rows)
		if err != nil {
			return nil, err
		}
		pvs = append(pvs, pv)
	}
	return pvs, rows.Err()
}

func scanPV(row pgx.Row) (PV, error) {
	var pv PV
	err := row.Scan(&pv.PVID, &pv.UID, &pv.EmpNo, &pv.Username, &pv.Dept, &pv.Occupancy, &pv.ValidFrom, &pv.ValidTo)
	return pv, err
}

// Timetable returns the weekday plan of a PV.
func (r *Repository) Timetable(ctx context.Context, pvid string) ([]TimetableEntry, error) {
	const query = `SELECT t.pvid, t.weekday::int, to_char(t.start_time, 'HH24:MI'), to_char(t.end_time, 'HH24:MI')
		FROM timetables t WHERE t.pvid = $1 ORDER BY t.weekday`
	return r.queryTimetable(ctx, query, pvid)
}

// TimetablesByUID returns the plans of every PV held by uid.
func (r *Repository) TimetablesByUID(ctx context.Context, uid int64) ([]TimetableEntry, error) {
	const query = `SELECT t.pvid, t.weekday::int, to_char(t.start_time, 'HH24:MI'), to_char(t.end_time, 'HH24:MI')
		FROM timetables t JOIN pvs p ON p.pvid = t.pvid
		WHERE p.uid = $1 ORDER BY t.pvid, t.weekday`
	return r.queryTimetable(ctx, query, uid)
}

func (r *Repository) queryTimetable(ctx context.Context, query string, arg any) ([]TimetableEntry, error) {
	conn, err := db.Conn(ctx, r.pool)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]TimetableEntry, 0)
	for rows.Next() {
		var (
			entry   TimetableEntry
			weekday int
		)
		if err := rows.Scan(&entry.PVID, &weekday, &entry.Start, &entry.End); err != nil {
			return nil, err
		}
		entry.Weekday = time.Weekday(weekday)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ReplaceTimetable swaps the weekday plan of a PV. The caller commits.
func (r *Repository) ReplaceTimetable(ctx context.Context, pvid string, entries []TimetableEntry) error {
	conn, err := db.Conn(ctx, r.pool)
	if err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, `DELETE FROM timetables WHERE pvid = $1`, pvid); err != nil {
		return err
	}
	const insert = `INSERT INTO timetables (pvid, weekday, start_time, end_time) VALUES ($1, $2, $3::time, $4::time)`
	for _, entry := range entries {
		if _, err := conn.Exec(ctx, insert, pvid, int(entry.Weekday), entry.Start, entry.End); err != nil {
			return err
		}
	}
	return nil
}

// AttendanceRecords returns what uid recorded during [from, to].
func (r *Repository) AttendanceRecords(ctx context.Context, uid int64, from, to time.Time) ([]AttendanceRecord, error) {
	const query = `SELECT a.uid, a.day, COALESCE(to_char(a.start_time, 'HH24:MI'), ''), COALESCE(to_char(a.end_time, 'HH24:MI'), ''), a.mode
		FROM attendance a WHERE a.uid = $1 AND a.day BETWEEN $2 AND $3 ORDER BY a.day`
	return r.queryAttendance(ctx, query, uid, from, to)
}

// AttendanceInDept returns records of everyone holding a PV under dept.
func (r *Repository) AttendanceInDept(ctx context.Context, dept string, from, to time.Time) ([]AttendanceRecord, error) {
	const query = `SELECT a.uid, a.day, COALESCE(to_char(a.start_time, 'HH24:MI'), ''), COALESCE(to_char(a.end_time, 'HH24:MI'), ''), a.mode
		FROM attendance a
		WHERE a.day BETWEEN $2 AND $3
		AND a.uid IN (SELECT p.uid FROM pvs p WHERE starts_with(p.dept, $1) AND p.valid_from <= $3 AND (p.valid_to IS NULL OR p.valid_to >= $2))
		ORDER BY a.uid, a.day`
	return r.queryAttendance(ctx, query, dept, from, to)
}

func (r *Repository) queryAttendance(ctx context.Context, query string, args ...any) ([]AttendanceRecord, error) {
	conn, err := db.Conn(ctx, r.pool)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := make([]AttendanceRecord, 0)
	for rows.Next() {
		var rec AttendanceRecord
		if err := rows.Scan(&rec.UID, &rec.Day, &rec.Start, &rec.End, &rec.Mode); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpsertAttendance stores the record for (uid, day). The caller commits.
func (r *Repository) UpsertAttendance(ctx context.Context, rec AttendanceRecord) error {
	conn, err := db.Conn(ctx, r.pool)
	if err != nil {
		return err
	}
	const query = `INSERT INTO attendance (uid, day, start_time, end_time, mode, updated_at)
		VALUES ($1, $2, $3::time, $4::time, $5, now())
		ON CONFLICT (uid, day) DO UPDATE
		SET start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time, mode = EXCLUDED.mode, updated_at = now()`
	_, err = conn.Exec(ctx, query, rec.UID, rec.Day, rec.Start, rec.End, rec.Mode)
	return err
}

// TopDepartments lists the leading digits of every active department.
func (r *Repository) TopDepartments(ctx context.Context) ([]string, error) {
	conn, err := db.Conn(ctx, r.pool)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, `SELECT DISTINCT left(p.dept, 1) FROM pvs p
		WHERE p.valid_to IS NULL OR p.valid_to >= current_date ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	depts := make([]string, 0)
	for rows.Next() {
		var dept string
		if err := rows.Scan(&dept); err != nil {
			return nil, err
		}
		depts = append(depts, dept)
	}
	return depts, rows.Err()
}

// Commit commits the request transaction.
func (r *Repository) Commit(ctx context.Context) error {
	return db.Commit(ctx)
}

// Rollback discards the request transaction.
func (r *Repository) Rollback(ctx context.Context) error {
	return db.Rollback(ctx)
}
