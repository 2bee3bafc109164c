package attendancehttp

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pichator/pichator/internal/attendance"
	"github.com/pichator/pichator/internal/platform/httpx"
	"github.com/pichator/pichator/internal/rbac"
	"github.com/pichator/pichator/internal/shared"
)

type submitParams struct {
	Period string `validate:"required"`
	Start  string `validate:"required"`
	End    string `validate:"required"`
	Day    string `validate:"required,numeric"`
}

func (h *Handler) handleEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.manager.Employees(r.Context(), r.FormValue("dept"), r.FormValue("period"))
	if err != nil {
		h.managerError(w, r, "list employees", err)
		return
	}
	httpx.JSON(w, http.StatusOK, employees)
}

func (h *Handler) handleDepartmentData(w http.ResponseWriter, r *http.Request) {
	dept := strings.TrimSpace(r.FormValue("dept"))
	if dept == "" {
		h.notAcceptable(w, r, "Getting data for department without mandatory parameter department number.")
		return
	}
	acl, err := h.callerACL(r)
	if err != nil {
		h.serverError(w, r, "load acl", err)
		return
	}
	if !acl.IsAdmin() && !acl.MatchesLeadingDigit(dept) {
		h.forbidden(w, r, "Trying to access data of a department without authorization to do so.",
			slog.String("dept", dept), slog.String("acl", acl.String()))
		return
	}
	period := r.FormValue("period")
	if period == "" {
		period = shared.CurrentPeriod(h.now())
	}
	report, err := h.manager.Department(r.Context(), dept, period)
	if err != nil {
		h.managerError(w, r, "load department", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleTimetableData(w http.ResponseWriter, r *http.Request) {
	id := h.identity(r)
	empNo, err := h.manager.EmpNo(r.Context(), id.Username)
	if err != nil {
		h.serverError(w, r, "load employee", err)
		return
	}
	if empNo == 0 {
		h.notAcceptable(w, r, "Query for timetable data for employee who is not in database.", slog.String("username", id.Username))
		return
	}
	entries, err := h.manager.Timetables(r.Context(), id.UID)
	if err != nil {
		h.managerError(w, r, "load timetables", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handlePVs(w http.ResponseWriter, r *http.Request) {
	period := r.FormValue("period")
	if period == "" {
		h.notAcceptable(w, r, "Query for list of PVs without required period parameter.")
		return
	}
	id := h.identity(r)
	empNo, err := h.manager.EmpNo(r.Context(), id.Username)
	if err != nil {
		h.serverError(w, r, "load employee", err)
		return
	}
	pvs, err := h.manager.PVs(r.Context(), empNo, period)
	if err != nil {
		h.managerError(w, r, "list pvs", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pvs)
}

func (h *Handler) handleAttendanceData(w http.ResponseWriter, r *http.Request) {
	id := h.identity(r)
	ctx := r.Context()
	pvid := strings.TrimSpace(r.FormValue("pvid"))
	target := id.Username
	if name := r.FormValue("username"); name != "" {
		target = name
	}
	empNo, err := h.manager.EmpNo(ctx, target)
	if err != nil {
		h.serverError(w, r, "load employee", err)
		return
	}
	if pvid == "" || empNo == 0 {
		h.notAcceptable(w, r, "Query for attendance data without required parameter pvid or emp_no.",
			slog.String("pvid", pvid), slog.String("username", target))
		return
	}
	acl, err := h.callerACL(r)
	if err != nil {
		h.serverError(w, r, "load acl", err)
		return
	}
	if !ownsPV(empNo, pvid) && !acl.IsDepartment() {
		h.forbidden(w, r, "Requesting attendance data for user other than is logged-in.",
			slog.String("pvid", pvid), slog.Int64("uid", id.UID), slog.String("username", target))
		return
	}
	period := r.FormValue("period")
	if period == "" {
		h.notAcceptable(w, r, "Query for attendance data without required parameter period.", slog.String("pvid", pvid))
		return
	}
	sheet, err := h.manager.Attendance(ctx, id.UID, pvid, period, target)
	if err != nil {
		h.managerError(w, r, "load attendance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sheet)
}

func (h *Handler) handleAttendanceSubmit(w http.ResponseWriter, r *http.Request) {
	id := h.identity(r)
	ctx := r.Context()
	pvid := strings.TrimSpace(r.FormValue("pvid"))
	if pvid == "" {
		h.notAcceptable(w, r, "Submitting attendance without required parameter pvid.")
		return
	}
	acl, err := h.callerACL(r)
	if err != nil {
		h.serverError(w, r, "load acl", err)
		return
	}

	target := id.Username
	if acl.IsDepartment() || acl.IsAdmin() {
		target, err = h.manager.PVIDToUsername(ctx, pvid)
		if err != nil {
			h.serverError(w, r, "resolve pvid", err)
			return
		}
		if target == "" {
			h.notAcceptable(w, r, "Submitting attendance for unknown pvid.", slog.String("pvid", pvid))
			return
		}
	}
	if acl.IsDepartment() {
		depts, err := h.manager.Depts(ctx, target)
		if err != nil {
			h.serverError(w, r, "load departments", err)
			return
		}
		if !coversAny(acl, depts) {
			h.forbidden(w, r, "Submitting data for person not in your department.",
				slog.String("pvid", pvid), slog.String("username", target), slog.String("acl", acl.String()))
			return
		}
	}

	empNo, err := h.manager.EmpNo(ctx, target)
	if err != nil {
		h.serverError(w, r, "load employee", err)
		return
	}
	if empNo == 0 {
		h.notAcceptable(w, r, "Submitting attendance for employee who is not in database.", slog.String("username", target))
		return
	}
	if !ownsPV(empNo, pvid) {
		h.forbidden(w, r, "Submitting attendance data for user other than is logged-in.",
			slog.String("pvid", pvid), slog.Int64("uid", id.UID), slog.String("username", target))
		return
	}

	params := submitParams{
		Period: r.FormValue("period"),
		Start:  r.FormValue("start"),
		End:    r.FormValue("end"),
		Day:    r.FormValue("day"),
	}
	if err := h.validate.Struct(params); err != nil {
		h.notAcceptable(w, r, "Submitting attendance without required parameters.", slog.Any("error", err))
		return
	}
	mode := r.FormValue("mode")
	if mode == "" {
		mode = attendance.ModeAbsence
	}
	result, err := h.manager.SetAttendance(ctx, params.Day, params.Period, target, params.Start, params.End, mode)
	if err != nil {
		h.managerError(w, r, "set attendance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) callerACL(r *http.Request) (rbac.ACL, error) {
	raw, err := h.manager.ACL(r.Context(), h.identity(r).Username)
	if err != nil {
		return rbac.ACL{}, err
	}
	return rbac.ParseACL(raw), nil
}

// managerError maps manager failures: malformed input is the caller's fault,
// anything else is ours.
func (h *Handler) managerError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, attendance.ErrInvalidInput):
		h.notAcceptable(w, r, op+": invalid input", slog.Any("error", err))
	case errors.Is(err, attendance.ErrNotFound):
		h.notAcceptable(w, r, op+": not found", slog.Any("error", err))
	default:
		h.serverError(w, r, op, err)
	}
}

// ownsPV reports whether pvid ("<emp_no>.<suffix>") belongs to empNo.
func ownsPV(empNo int64, pvid string) bool {
	prefix, _, _ := strings.Cut(pvid, ".")
	return prefix == strconv.FormatInt(empNo, 10)
}

func coversAny(acl rbac.ACL, depts []string) bool {
	for _, dept := range depts {
		if acl.CoversDepartment(dept) {
			return true
		}
	}
	return false
}
