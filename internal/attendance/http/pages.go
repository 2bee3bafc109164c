package attendancehttp

import (
	"log/slog"
	"net/http"

	"github.com/pichator/pichator/internal/rbac"
	"github.com/pichator/pichator/internal/shared"
)

const timetableMismatchMessage = "Počet hodin v rozvrhu neodpovídá úvazku."

type pageData struct {
	UID      int64
	Username string
	EmpNo    int64
	ACL      string
	Dept     string
	Period   string
}

type weekdayRow struct {
	Key   string
	Label string
}

type timetablePage struct {
	pageData
	Weekdays []weekdayRow
}

var timetableWeekdays = []weekdayRow{
	{"mon", "Pondělí"},
	{"tue", "Úterý"},
	{"wed", "Středa"},
	{"thu", "Čtvrtek"},
	{"fri", "Pátek"},
}

// loadPage collects what every page shows about the caller.
func (h *Handler) loadPage(r *http.Request) (pageData, rbac.ACL, error) {
	id := h.identity(r)
	ctx := r.Context()
	empNo, err := h.manager.EmpNo(ctx, id.Username)
	if err != nil {
		return pageData{}, rbac.ACL{}, err
	}
	raw, err := h.manager.ACL(ctx, id.Username)
	if err != nil {
		return pageData{}, rbac.ACL{}, err
	}
	acl := rbac.ParseACL(raw)
	return pageData{
		UID:      id.UID,
		Username: id.Username,
		EmpNo:    empNo,
		ACL:      acl.String(),
		Dept:     acl.Dept(),
		Period:   shared.CurrentPeriod(h.now()),
	}, acl, nil
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, acl, err := h.loadPage(r)
	if err != nil {
		h.serverError(w, r, "load index", err)
		return
	}
	h.logger.Debug("index acl", slog.String("username", data.Username), slog.String("acl", data.ACL))
	switch acl.Kind {
	case rbac.ACLReadOnly:
		h.render(w, r, "pages/attendance_ro.html", "Docházka", data)
	case rbac.ACLDepartment:
		h.render(w, r, "pages/attendance_manager.html", "Docházka oddělení", data)
	default:
		h.render(w, r, "pages/attendance.html", "Docházka", data)
	}
}

func (h *Handler) handleDepartmentPage(w http.ResponseWriter, r *http.Request) {
	data, _, err := h.loadPage(r)
	if err != nil {
		h.serverError(w, r, "load department page", err)
		return
	}
	h.render(w, r, "pages/attendance_department.html", "Přehled oddělení", data)
}

func (h *Handler) handleTimetable(w http.ResponseWriter, r *http.Request) {
	data, _, err := h.loadPage(r)
	if err != nil {
		h.serverError(w, r, "load timetable page", err)
		return
	}
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			h.notAcceptable(w, r, "Timetable form could not be parsed.", slog.Any("error", err))
			return
		}
		form := make(map[string]string, len(r.PostForm))
		for key := range r.PostForm {
			form[key] = r.PostForm.Get(key)
		}
		if !ownsPV(data.EmpNo, form["pvid"]) {
			h.forbidden(w, r, "Submitting timetable for PV of another employee.",
				slog.String("username", data.Username), slog.String("pvid", form["pvid"]))
			return
		}
		ok, err := h.manager.SetTimetables(r.Context(), form)
		if err != nil {
			h.serverError(w, r, "set timetables", err)
			return
		}
		if !ok {
			h.logger.Warn("timetable rejected", slog.String("username", data.Username), slog.String("pvid", form["pvid"]))
			shared.Flash(r.Context(), shared.FlashError, timetableMismatchMessage)
		}
	}
	h.render(w, r, "pages/timetable.html", "Rozvrh", timetablePage{pageData: data, Weekdays: timetableWeekdays})
}
