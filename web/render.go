package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/http"
	"strings"

	"github.com/andrebq/lockbox/accounts"
	"github.com/andrebq/lockbox/internal/logutil"
	"github.com/andrebq/lockbox/session"
	"github.com/andrebq/lockbox/vault"
)

//go:embed views/*.html
var viewFS embed.FS

const (
	viewHome     = "home"
	viewLogin    = "login"
	viewRegister = "register"
	viewSubmit   = "submit"
	viewSecrets  = "secrets"
	viewError    = "error"
)

type (
	views map[string]*template.Template

	errorPage struct {
		Status  int
		Title   string
		Message string
	}
)

func loadViews() (views, error) {
	out := views{}
	for _, name := range []string{viewHome, viewLogin, viewRegister, viewSubmit, viewSecrets, viewError} {
		t, err := template.ParseFS(viewFS, "views/layout.html", fmt.Sprintf("views/%v.html", name))
		if err != nil {
			return nil, fmt.Errorf("unable to parse view %v, cause %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

// wantsJSON reports whether the client asked for JSON in its Accept header.
func wantsJSON(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == "application/json" {
			return true
		}
	}
	return false
}

// render writes either the html view or payload as JSON, depending on what
// the client accepts.
func (h *handler) render(w http.ResponseWriter, r *http.Request, status int, view string, data interface{}, payload interface{}) {
	log := logutil.GetOrDefault(r.Context())
	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Error().Err(err).Msg("Unable to write JSON response")
		}
		return
	}
	var buf bytes.Buffer
	if err := h.views[view].ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Error().Err(err).Str("view", view).Msg("Unable to render view")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (h *handler) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.render(w, r, status, viewError,
		errorPage{Status: status, Title: http.StatusText(status), Message: message},
		map[string]string{"error": message})
}

// fail maps err to a status, logs server side failures and answers with a
// message that never includes internal causes.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusUnauthorized {
		msg = "invalid credentials"
	}
	if status >= http.StatusInternalServerError {
		logger := logutil.GetOrDefault(r.Context())
		logger.Error().Err(err).Msg("Request failed")
		msg = "internal error"
	}
	h.renderError(w, r, status, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, accounts.ValidationError{}):
		return http.StatusBadRequest
	case errors.Is(err, vault.DuplicateEmail{}):
		return http.StatusConflict
	case errors.Is(err, accounts.Unauthenticated{}), session.IsVerificationError(err):
		return http.StatusUnauthorized
	}
	// StoreFailure, HashingFailure and anything unknown.
	return http.StatusInternalServerError
}
