package attendancehttp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pichator/pichator/internal/attendance"
	"github.com/pichator/pichator/internal/rbac"
	"github.com/pichator/pichator/internal/shared"
	"github.com/pichator/pichator/internal/view"
	_ "github.com/pichator/pichator/testing"
)

type stubManager struct {
	mu sync.Mutex

	empNos   map[string]int64
	acls     map[string]string
	depts    map[string][]string
	pvOwners map[string]string

	employees     []attendance.Employee
	timetableOK   bool
	timetableSets int
	panicOnEmpNo  bool
	employeesArgs []string
	departments   []string
	submits       []attendance.SubmitResult
	sheets        []string
	rollbacks     int
}

func newStubManager() *stubManager {
	return &stubManager{
		empNos:   map[string]int64{},
		acls:     map[string]string{},
		depts:    map[string][]string{},
		pvOwners: map[string]string{},
	}
}

func (s *stubManager) EmpNo(ctx context.Context, username string) (int64, error) {
	if s.panicOnEmpNo {
		panic("boom")
	}
	return s.empNos[username], nil
}

func (s *stubManager) ACL(ctx context.Context, username string) (string, error) {
	return s.acls[username], nil
}

func (s *stubManager) Employees(ctx context.Context, dept, period string) ([]attendance.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employeesArgs = []string{dept, period}
	return s.employees, nil
}

func (s *stubManager) Department(ctx context.Context, dept, period string) (attendance.DepartmentReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.departments = append(s.departments, dept+"@"+period)
	return attendance.DepartmentReport{
		Dept:   dept,
		Period: period,
		Employees: []attendance.DepartmentEmployee{
			{EmpNo: 7, Username: "Jane", PVIDs: []string{"7.1"}, AbsenceDays: 1, AbsenceHours: 8},
		},
	}, nil
}

func (s *stubManager) SetTimetables(ctx context.Context, form map[string]string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timetableSets++
	return s.timetableOK, nil
}

func (s *stubManager) Timetables(ctx context.Context, uid int64) ([]attendance.TimetableEntry, error) {
	return []attendance.TimetableEntry{{PVID: "7.1", Weekday: time.Monday, Start: "08:00", End: "16:00"}}, nil
}

func (s *stubManager) PVs(ctx context.Context, empNo int64, period string) ([]attendance.PV, error) {
	return []attendance.PV{{PVID: "7.1", EmpNo: empNo, Dept: "12", Occupancy: 1}}, nil
}

func (s *stubManager) Attendance(ctx context.Context, viewerUID int64, pvid, period, username string) (attendance.AttendanceSheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets = append(s.sheets, username)
	return attendance.AttendanceSheet{PVID: pvid, Period: period, Username: username}, nil
}

func (s *stubManager) PVIDToUsername(ctx context.Context, pvid string) (string, error) {
	return s.pvOwners[pvid], nil
}

func (s *stubManager) Depts(ctx context.Context, username string) ([]string, error) {
	return s.depts[username], nil
}

func (s *stubManager) SetAttendance(ctx context.Context, day, period, username, start, end, mode string) (attendance.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := attendance.SubmitResult{OK: true, Date: day + "-" + period, Mode: mode}
	s.submits = append(s.submits, res)
	return res, nil
}

func (s *stubManager) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollbacks++
	return nil
}

type testEnv struct {
	manager  *stubManager
	router   http.Handler
	sessions *shared.SessionManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	engine, err := view.NewEngine()
	require.NoError(t, err)
	policy, err := rbac.DefaultPolicy()
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "pichator_session", "secret", time.Hour, false)

	manager := newStubManager()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, manager, engine, shared.NewCSRFManager("csrf"), rbac.Middleware{Access: policy})
	h.WithNow(func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) })

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessions.Load(req.Context(), req)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	h.MountRoutes(r)
	return &testEnv{manager: manager, router: r, sessions: sessions}
}

func (e *testEnv) do(method, target, roles string, body url.Values) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(body.Encode())
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if roles != "" {
		req.Header.Set(rbac.HeaderRoles, roles)
	}
	req.Header.Set(rbac.HeaderUserID, "5")
	req.Header.Set(rbac.HeaderFullName, "Jane")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) get(target, roles string) *httptest.ResponseRecorder {
	return e.do(http.MethodGet, target, roles, nil)
}

func TestGetEmployeesPassesFiltersThrough(t *testing.T) {
	env := newTestEnv(t)
	env.manager.employees = []attendance.Employee{{UID: 1, EmpNo: 10, Username: "Jane"}}

	rr := env.get("/get_emp?dept=10&period=3-2024", "admin")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, []string{"10", "3-2024"}, env.manager.employeesArgs)
	var got []attendance.Employee
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, int64(10), got[0].EmpNo)
}

func TestMissingRolesAreForbidden(t *testing.T) {
	env := newTestEnv(t)

	for _, roles := range []string{"", "(null)", "user"} {
		rr := env.get("/", roles)
		assert.Equal(t, http.StatusForbidden, rr.Code, "roles %q", roles)
		assert.Contains(t, rr.Body.String(), "403")
	}
	assert.Equal(t, 3, env.manager.rollbacks)
}

func TestMalformedUserIDIsBadRequest(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/get_emp", nil)
	req.Header.Set(rbac.HeaderRoles, "admin")
	req.Header.Set(rbac.HeaderUserID, "five")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Nil(t, env.manager.employeesArgs)
}

func TestIndexTemplateFollowsACL(t *testing.T) {
	cases := []struct {
		acl  string
		want string
	}{
		{acl: "readonly", want: "Pouze pro čtení."},
		{acl: "5", want: "Docházka oddělení 5"},
		{acl: "", want: `data-editable="true"`},
		{acl: "admin", want: `data-editable="true"`},
	}
	for _, tc := range cases {
		env := newTestEnv(t)
		env.manager.acls["Jane"] = tc.acl
		env.manager.empNos["Jane"] = 7

		rr := env.get("/", "admin")
		require.Equal(t, http.StatusOK, rr.Code, "acl %q", tc.acl)
		assert.Contains(t, rr.Body.String(), tc.want, "acl %q", tc.acl)
	}
}

func TestDepartmentDataScope(t *testing.T) {
	env := newTestEnv(t)

	rr := env.get("/dept_data", "admin")
	assert.Equal(t, http.StatusNotAcceptable, rr.Code)

	env.manager.acls["Jane"] = "2"
	rr = env.get("/dept_data?dept=15", "admin")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	env.manager.acls["Jane"] = "1"
	rr = env.get("/dept_data?dept=15", "admin")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"15@3-2024"}, env.manager.departments)

	env.manager.acls["Jane"] = "admin"
	first := env.get("/dept_data?dept=42&period=2-2024", "admin")
	second := env.get("/dept_data?dept=42&period=2-2024", "admin")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestAttendanceDataOwnership(t *testing.T) {
	env := newTestEnv(t)
	env.manager.empNos["Jane"] = 7
	env.manager.empNos["Bob"] = 8

	rr := env.get("/attendance_data?period=3-2024", "admin")
	assert.Equal(t, http.StatusNotAcceptable, rr.Code, "missing pvid")

	rr = env.get("/attendance_data?pvid=8.1&period=3-2024", "admin")
	assert.Equal(t, http.StatusForbidden, rr.Code, "foreign pvid")

	rr = env.get("/attendance_data?pvid=7.1", "admin")
	assert.Equal(t, http.StatusNotAcceptable, rr.Code, "missing period")

	rr = env.get("/attendance_data?pvid=77.1&period=3-2024", "admin")
	assert.Equal(t, http.StatusForbidden, rr.Code, "prefix must end at the dot")

	rr = env.get("/attendance_data?pvid=7.1&period=3-2024", "admin")
	assert.Equal(t, http.StatusOK, rr.Code)

	env.manager.acls["Jane"] = "3"
	rr = env.get("/attendance_data?pvid=8.1&period=3-2024&username=Bob", "admin")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"Jane", "Bob"}, env.manager.sheets)

	rr = env.get("/attendance_data?pvid=9.1&period=3-2024&username=Nobody", "admin")
	assert.Equal(t, http.StatusNotAcceptable, rr.Code, "unknown target")
}

func TestAttendanceSubmitRequiresPVID(t *testing.T) {
	env := newTestEnv(t)

	rr := env.get("/attendance_submit", "admin")

	assert.Equal(t, http.StatusNotAcceptable, rr.Code)
	assert.Contains(t, rr.Body.String(), "406")
	assert.Empty(t, env.manager.submits)
	assert.Equal(t, 1, env.manager.rollbacks)
}

func TestAttendanceSubmitMissingParametersNeverWrite(t *testing.T) {
	env := newTestEnv(t)
	env.manager.empNos["Jane"] = 7
	full := url.Values{"pvid": {"7.1"}, "period": {"3-2024"}, "start": {"08:00"}, "end": {"12:00"}, "day": {"4"}}

	for _, missing := range []string{"period", "start", "end", "day"} {
		q := url.Values{}
		for k, v := range full {
			if k != missing {
				q[k] = v
			}
		}
		rr := env.get("/attendance_submit?"+q.Encode(), "admin")
		assert.Equal(t, http.StatusNotAcceptable, rr.Code, "missing %s", missing)
	}
	assert.Empty(t, env.manager.submits)

	rr := env.get("/attendance_submit?"+full.Encode(), "admin")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, env.manager.submits, 1)
	assert.Equal(t, attendance.ModeAbsence, env.manager.submits[0].Mode)
	assert.Contains(t, rr.Body.String(), `"result":true`)
}

func TestAttendanceSubmitSelfService(t *testing.T) {
	env := newTestEnv(t)
	env.manager.empNos["Jane"] = 7

	rr := env.get("/attendance_submit?pvid=8.1&period=3-2024&start=08:00&end=12:00&day=4", "admin")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, env.manager.submits)

	rr = env.get("/attendance_submit?pvid=7.1&period=3-2024&start=08:00&end=12:00&day=4&mode=Vacation", "admin")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, attendance.ModeVacation, env.manager.submits[0].Mode)
}

func TestAttendanceSubmitDepartmentScope(t *testing.T) {
	env := newTestEnv(t)
	env.manager.acls["Jane"] = "1"
	env.manager.pvOwners["8.1"] = "Bob"
	env.manager.pvOwners["9.1"] = "Eve"
	env.manager.empNos["Bob"] = 8
	env.manager.empNos["Eve"] = 9
	env.manager.depts["Bob"] = []string{"12"}
	env.manager.depts["Eve"] = []string{"23"}

	rr := env.get("/attendance_submit?pvid=9.1&period=3-2024&start=08:00&end=12:00&day=4", "admin")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.get("/attendance_submit?pvid=5.1&period=3-2024&start=08:00&end=12:00&day=4", "admin")
	assert.Equal(t, http.StatusNotAcceptable, rr.Code, "unknown pvid")

	rr = env.get("/attendance_submit?pvid=8.1&period=3-2024&start=08:00&end=12:00&day=4", "admin")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, env.manager.submits, 1)
}

func TestAttendanceSubmitAdminResolvesTargetFromPVID(t *testing.T) {
	env := newTestEnv(t)
	env.manager.acls["Jane"] = "admin"
	env.manager.pvOwners["9.1"] = "Eve"
	env.manager.empNos["Eve"] = 9

	rr := env.get("/attendance_submit?pvid=9.1&period=3-2024&start=08:00&end=12:00&day=4", "admin")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestTimetableMismatchFlashes(t *testing.T) {
	env := newTestEnv(t)
	env.manager.empNos["Jane"] = 7

	rr := env.do(http.MethodPost, "/timetable", "user", url.Values{"pvid": {"7.1"}, "mon_start": {"08:00"}, "mon_end": {"12:00"}})

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, timetableMismatchMessage)
	assert.Contains(t, body, "alert-danger")
	assert.Contains(t, body, `name="mon_start"`)

	env.manager.timetableOK = true
	rr = env.do(http.MethodPost, "/timetable", "user", url.Values{"pvid": {"7.1"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), timetableMismatchMessage)
}

func TestTimetableRejectsForeignPV(t *testing.T) {
	env := newTestEnv(t)
	env.manager.empNos["Jane"] = 7
	env.manager.timetableOK = true

	for _, pvid := range []string{"9.1", "", "77.1"} {
		rr := env.do(http.MethodPost, "/timetable", "user", url.Values{"pvid": {pvid}, "mon_start": {"08:00"}, "mon_end": {"16:00"}})
		assert.Equal(t, http.StatusForbidden, rr.Code, pvid)
		assert.Contains(t, rr.Body.String(), "403", pvid)
	}
	assert.Zero(t, env.manager.timetableSets)

	rr := env.do(http.MethodPost, "/timetable", "user", url.Values{"pvid": {"7.1"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, env.manager.timetableSets)
}

func TestTimetableDataAndPVsValidation(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusNotAcceptable, env.get("/timetable_data", "admin").Code)
	assert.Equal(t, http.StatusNotAcceptable, env.get("/pvs", "admin").Code)

	env.manager.empNos["Jane"] = 7
	rr := env.get("/timetable_data", "admin")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"pvid":"7.1"`)

	rr = env.get("/pvs?period=3-2024", "admin")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"emp_no":7`)
}

func TestPanicRendersServerErrorAndRollsBack(t *testing.T) {
	env := newTestEnv(t)
	env.manager.panicOnEmpNo = true

	rr := env.get("/", "admin")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "500")
	assert.Equal(t, 1, env.manager.rollbacks)
}

func TestRenderErrorPages(t *testing.T) {
	env := newTestEnv(t)
	engine, err := view.NewEngine()
	require.NoError(t, err)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), env.manager, engine, nil, rbac.Middleware{})

	for _, status := range []int{http.StatusForbidden, http.StatusNotAcceptable, http.StatusTeapot, http.StatusInternalServerError} {
		rr := httptest.NewRecorder()
		h.RenderError(rr, httptest.NewRequest(http.MethodGet, "/", nil), status)
		assert.Equal(t, status, rr.Code)
		assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	}

	rr := httptest.NewRecorder()
	h.RenderError(rr, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusBadRequest)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")
}
