package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	maxMultipartMemory = 32 << 20
	maxImageBytes      = 10 << 20

	formFieldFile        = "file"
	formFieldTitle       = "title"
	formFieldDescription = "description"
	formFieldTags        = "tags"
	formFieldUsername    = "username"
	formFieldPassword    = "password"
)

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// parseForm accepts both multipart and urlencoded bodies.
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxMultipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// readUpload returns the base64 encoded content of the named file field.
// An absent or empty file reports false.
func readUpload(r *http.Request, field string) (string, bool, error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &ValidationError{Field: field, Message: "Could not read the uploaded file"}
	}
	defer file.Close()

	data, err := readFileLimited(file, maxImageBytes)
	if err != nil {
		return "", false, &ValidationError{Field: field, Message: err.Error()}
	}
	if len(data) == 0 {
		return "", false, nil
	}
	return base64.StdEncoding.EncodeToString(data), true, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}

func imagePath(title string) string {
	return "/images/" + url.PathEscape(title)
}

// pathParam returns the decoded route parameter. chi matches on the raw path
// when the request carries escaped separators, leaving "%2F" in the value.
func pathParam(r *http.Request, key string) string {
	value := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return value
	}
	if decoded, err := url.PathUnescape(value); err == nil {
		return decoded
	}
	return value
}
