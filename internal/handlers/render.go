package handlers

import (
	"bytes"
	"embed"
	"encoding/base64"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/imagehoster/server/internal/auth"
	"github.com/imagehoster/server/internal/services"
	"github.com/imagehoster/server/internal/store"
)

//go:embed templates
var templatesFS embed.FS

var pageTemplates = []string{
	"home.html",
	"error.html",
	"images/upload.html",
	"images/image.html",
	"images/edit.html",
	"tag/images.html",
	"users/signup.html",
	"users/signin.html",
	"users/profile.html",
}

// PageData is passed to every page. Content holds the page specific data.
// Errors lists form problems shown together above the page.
type PageData struct {
	Title   string
	User    *auth.Identity
	Error   string
	Errors  []string
	Content any
}

// Renderer executes the embedded page templates.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer parses every page together with the base layout.
func NewRenderer() (*Renderer, error) {
	templates := make(map[string]*template.Template, len(pageTemplates))
	for _, page := range pageTemplates {
		tmpl, err := template.New("").Funcs(templateFuncMap()).ParseFS(templatesFS,
			"templates/base.html",
			"templates/"+page,
		)
		if err != nil {
			return nil, err
		}
		templates[page] = tmpl
	}
	return &Renderer{templates: templates}, nil
}

func templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"imageSrc":   imageSrc,
		"pathEscape": url.PathEscape,
		"joinTags":   services.JoinTagNames,
		"formatDate": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
	}
}

// imageSrc turns stored base64 content into a data URI. The value only
// ever holds base64 produced by readUpload.
func imageSrc(data string) template.URL {
	if data == "" {
		return ""
	}
	prefix := data
	if len(prefix) > 64 {
		prefix = prefix[:64]
	}
	head, _ := base64.StdEncoding.DecodeString(prefix)
	return template.URL("data:" + http.DetectContentType(head) + ";base64," + data)
}

func (v *Renderer) render(w http.ResponseWriter, r *http.Request, status int, page string, data PageData) {
	if identity, ok := auth.CurrentUser(r.Context()); ok {
		data.User = &identity
	}

	tmpl, ok := v.templates[page]
	if !ok {
		log.Error().Str("template", page).Msg("Template not found")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		log.Error().Err(err).Str("template", page).Msg("Failed to render template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError maps err onto the error page.
func (v *Renderer) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "Something went wrong. Please try again later."

	var validationErr *ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
		message = "The page you are looking for does not exist."
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		message = validationErr.Message
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}

	v.render(w, r, status, "error.html", PageData{Title: http.StatusText(status), Error: message})
}
