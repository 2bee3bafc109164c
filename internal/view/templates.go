package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/pichator/pichator/internal/shared"
	"github.com/pichator/pichator/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flashes     []shared.FlashMessage
	CurrentPath string
	Data        any
}

var alertClasses = map[string]string{
	shared.FlashWarning: "alert-warning",
	shared.FlashError:   "alert-danger",
}

var alertIcons = map[string]string{
	shared.FlashWarning: "pficon-warning-triangle-o",
	shared.FlashError:   "pficon-error-circle-o",
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"to_alert": func(kind string) string { return alertClasses[kind] },
		"to_icon":  func(kind string) string { return alertIcons[kind] },
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template and writes it with status. Nothing is
// written when the template fails.
func (e *Engine) Render(w http.ResponseWriter, name string, status int, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("view: execute %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
