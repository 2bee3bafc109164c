package attendancehttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pichator/pichator/internal/attendance"
	"github.com/pichator/pichator/internal/rbac"
	"github.com/pichator/pichator/internal/shared"
	"github.com/pichator/pichator/internal/view"
)

// Manager is the attendance facade the handlers depend on.
type Manager interface {
	EmpNo(ctx context.Context, username string) (int64, error)
	ACL(ctx context.Context, username string) (string, error)
	Employees(ctx context.Context, dept, period string) ([]attendance.Employee, error)
	Department(ctx context.Context, dept, period string) (attendance.DepartmentReport, error)
	SetTimetables(ctx context.Context, form map[string]string) (bool, error)
	Timetables(ctx context.Context, uid int64) ([]attendance.TimetableEntry, error)
	PVs(ctx context.Context, empNo int64, period string) ([]attendance.PV, error)
	Attendance(ctx context.Context, viewerUID int64, pvid, period, username string) (attendance.AttendanceSheet, error)
	PVIDToUsername(ctx context.Context, pvid string) (string, error)
	Depts(ctx context.Context, username string) ([]string, error)
	SetAttendance(ctx context.Context, day, period, username, start, end, mode string) (attendance.SubmitResult, error)
	Rollback(ctx context.Context) error
}

// Handler serves the attendance and timetable pages.
type Handler struct {
	logger    *slog.Logger
	manager   Manager
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
	validate  *validator.Validate
	now       func() time.Time
}

// NewHandler constructs the attendance HTTP handler. The rbac middleware
// rejects through the handler's error pages.
func NewHandler(logger *slog.Logger, manager Manager, templates *view.Engine, csrf *shared.CSRFManager, guard rbac.Middleware) *Handler {
	h := &Handler{
		logger:    logger,
		manager:   manager,
		templates: templates,
		csrf:      csrf,
		validate:  validator.New(),
		now:       time.Now,
	}
	if guard.Logger == nil {
		guard.Logger = logger
	}
	guard.Reject = h.RenderError
	h.rbac = guard
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// MountRoutes registers the attendance routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.Recover, h.Teardown)

		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(rbac.PrivilegeAdmin), h.rbac.Identify)
			r.Get("/", h.handleIndex)
			r.Get("/get_emp", h.handleEmployees)
			r.Get("/dept", h.handleDepartmentPage)
			r.Get("/dept_data", h.handleDepartmentData)
			r.Get("/timetable_data", h.handleTimetableData)
			r.Get("/pvs", h.handlePVs)
			r.Get("/attendance_data", h.handleAttendanceData)
			r.Get("/attendance_submit", h.handleAttendanceSubmit)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(rbac.PrivilegeUser), h.rbac.Identify)
			r.Get("/timetable", h.handleTimetable)
			r.Post("/timetable", h.handleTimetable)
		})
	})
}

func (h *Handler) identity(r *http.Request) rbac.Identity {
	id, _ := rbac.IdentityFromContext(r.Context())
	return id
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	var token string
	if h.csrf != nil {
		token = h.csrf.EnsureToken(sess)
	}
	td := view.TemplateData{
		Title:       title,
		CSRFToken:   token,
		Flashes:     sess.PopFlashes(),
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.Render(w, name, http.StatusOK, td); err != nil {
		h.serverError(w, r, "render "+name, err)
	}
}

func (h *Handler) notAcceptable(w http.ResponseWriter, r *http.Request, msg string, attrs ...any) {
	h.logger.Error(msg, append([]any{slog.String("path", r.URL.Path)}, attrs...)...)
	h.RenderError(w, r, http.StatusNotAcceptable)
}

func (h *Handler) forbidden(w http.ResponseWriter, r *http.Request, msg string, attrs ...any) {
	h.logger.Error(msg, append([]any{slog.String("path", r.URL.Path)}, attrs...)...)
	h.RenderError(w, r, http.StatusForbidden)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	h.RenderError(w, r, http.StatusInternalServerError)
}
