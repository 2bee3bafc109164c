package attendancehttp

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/pichator/pichator/internal/platform/db"
	"github.com/pichator/pichator/internal/shared"
	"github.com/pichator/pichator/internal/view"
)

var errorPages = map[int]struct {
	template string
	title    string
}{
	http.StatusForbidden:           {"pages/forbidden.html", "Přístup odepřen"},
	http.StatusNotAcceptable:       {"pages/not_acceptable.html", "Neplatný požadavek"},
	http.StatusTeapot:              {"pages/teapot.html", "Jsem konvice"},
	http.StatusInternalServerError: {"pages/internal_server_error.html", "Chyba serveru"},
}

// RenderError writes the error page for status. Statuses without a page
// get a plain text body.
func (h *Handler) RenderError(w http.ResponseWriter, r *http.Request, status int) {
	page, ok := errorPages[status]
	if !ok || h.templates == nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	data := view.TemplateData{
		Title:       page.title,
		Flashes:     shared.SessionFromContext(r.Context()).PopFlashes(),
		CurrentPath: r.URL.Path,
	}
	if err := h.templates.Render(w, page.template, status, data); err != nil {
		h.logger.Error("render error page", slog.Int("status", status), slog.Any("error", err))
		http.Error(w, http.StatusText(status), status)
	}
}

// Recover turns a panic into the internal server error page.
func (h *Handler) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			h.logger.Error("panic serving request",
				slog.String("path", r.URL.Path),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			h.RenderError(w, r, http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}

// Teardown gives every request its own database scope and rolls back
// whatever was not committed once the request is done, whether it
// succeeded, was rejected or panicked.
func (h *Handler) Teardown(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, _ := db.WithScope(r.Context())
		defer func() {
			if err := h.manager.Rollback(ctx); err != nil {
				h.logger.Error("request teardown rollback", slog.String("path", r.URL.Path), slog.Any("error", err))
			}
		}()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
