package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/imagehoster/server/internal/auth"
	"github.com/imagehoster/server/internal/password"
	"github.com/imagehoster/server/internal/services"
	"github.com/imagehoster/server/internal/store"
	"github.com/imagehoster/server/types"
)

const (
	minPasswordLength = 6

	msgUsernameTaken      = "Username has been registered"
	msgInvalidCredentials = "Incorrect username or password"
)

// UserHandler serves sign-up, sign-in and profile pages.
type UserHandler struct {
	users    *services.UserService
	photos   *services.ProfilePhotoService
	sessions *auth.Manager
	hasher   *password.Hasher
	view     *Renderer
}

func NewUserHandler(view *Renderer, users *services.UserService, photos *services.ProfilePhotoService, sessions *auth.Manager, hasher *password.Hasher) *UserHandler {
	return &UserHandler{
		users:    users,
		photos:   photos,
		sessions: sessions,
		hasher:   hasher,
		view:     view,
	}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, view *Renderer, users *services.UserService, photos *services.ProfilePhotoService, sessions *auth.Manager, hasher *password.Hasher) {
	handler := NewUserHandler(view, users, photos, sessions, hasher)

	r.Get("/signup", handler.SignUpForm)
	r.Post("/signup", handler.SignUp)
	r.Get("/signin", handler.SignInForm)
	r.Post("/signin", handler.SignIn)
	r.Get("/signout", handler.SignOut)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser("/signin"))
		r.Get("/user/edit_profile", handler.ProfileForm)
		r.Post("/user/edit_profile", handler.EditProfile)
	})
}

type credentialsForm struct {
	Username string
}

type profileContent struct {
	User types.User
}

func (h *UserHandler) SignUpForm(w http.ResponseWriter, r *http.Request) {
	if redirectSignedIn(w, r) {
		return
	}
	h.view.render(w, r, http.StatusOK, "users/signup.html", PageData{Title: "Sign up", Content: credentialsForm{}})
}

// SignUp creates the user's empty profile photo, then the user, then
// signs the user in.
func (h *UserHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	if redirectSignedIn(w, r) {
		return
	}
	if err := parseForm(r); err != nil {
		h.view.renderError(w, r, invalid("form", "Invalid form submission"))
		return
	}

	form := credentialsForm{Username: formValue(r, formFieldUsername)}
	plain := r.FormValue(formFieldPassword)
	if problems := validateSignUp(form.Username, plain); len(problems) > 0 {
		h.renderSignUp(w, r, form, problems...)
		return
	}

	_, err := h.users.GetByUsername(r.Context(), form.Username)
	if err == nil {
		h.renderSignUp(w, r, form, msgUsernameTaken)
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		h.view.renderError(w, r, err)
		return
	}

	photo, err := h.photos.Save(r.Context(), types.ProfilePhoto{})
	if err != nil {
		h.view.renderError(w, r, err)
		return
	}

	hashed, err := h.hasher.Hash(plain)
	if err != nil {
		h.view.renderError(w, r, err)
		return
	}

	user := types.User{
		Username:       form.Username,
		PasswordHash:   hashed,
		ProfilePhotoID: photo.ID,
	}
	if _, err := h.users.Register(r.Context(), &user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			h.renderSignUp(w, r, form, msgUsernameTaken)
			return
		}
		h.view.renderError(w, r, err)
		return
	}

	log.Info().Int("user_id", user.ID).Str("username", user.Username).Msg("User registered")
	h.startSession(w, r, user)
}

func (h *UserHandler) SignInForm(w http.ResponseWriter, r *http.Request) {
	if redirectSignedIn(w, r) {
		return
	}
	h.view.render(w, r, http.StatusOK, "users/signin.html", PageData{Title: "Sign in", Content: credentialsForm{}})
}

func (h *UserHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	if redirectSignedIn(w, r) {
		return
	}
	if err := parseForm(r); err != nil {
		h.view.renderError(w, r, invalid("form", "Invalid form submission"))
		return
	}

	form := credentialsForm{Username: formValue(r, formFieldUsername)}
	user, err := h.users.Login(r.Context(), form.Username, r.FormValue(formFieldPassword))
	if errors.Is(err, store.ErrInvalidCredentials) {
		h.view.render(w, r, http.StatusUnauthorized, "users/signin.html", PageData{
			Title:   "Sign in",
			Error:   msgInvalidCredentials,
			Content: form,
		})
		return
	}
	if err != nil {
		h.view.renderError(w, r, err)
		return
	}

	h.startSession(w, r, user)
}

func (h *UserHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(w, r); err != nil {
		log.Error().Err(err).Msg("Failed to end session")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *UserHandler) ProfileForm(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.CurrentUser(r.Context())
	user, err := h.users.GetByUsernameWithJoins(r.Context(), identity.Username)
	if err != nil {
		h.view.renderError(w, r, err)
		return
	}

	h.view.render(w, r, http.StatusOK, "users/profile.html", PageData{
		Title:   "Edit profile",
		Content: profileContent{User: user},
	})
}

// EditProfile updates the description and, when a file is uploaded, the
// profile photo.
func (h *UserHandler) EditProfile(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.CurrentUser(r.Context())
	if err := parseForm(r); err != nil {
		h.view.renderError(w, r, invalid("form", "Invalid form submission"))
		return
	}

	user, err := h.users.GetByID(r.Context(), identity.UserID)
	if err != nil {
		h.view.renderError(w, r, err)
		return
	}

	data, ok, err := readUpload(r, formFieldFile)
	if err != nil {
		h.view.renderError(w, r, err)
		return
	}
	if ok {
		if _, err := h.photos.Update(r.Context(), types.ProfilePhoto{ID: user.ProfilePhotoID, ImageData: data}); err != nil {
			h.view.renderError(w, r, err)
			return
		}
	}

	user.Description = formValue(r, formFieldDescription)
	if _, err := h.users.Update(r.Context(), user); err != nil {
		h.view.renderError(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *UserHandler) startSession(w http.ResponseWriter, r *http.Request, user types.User) {
	err := h.sessions.Start(r.Context(), w, auth.Identity{UserID: user.ID, Username: user.Username})
	if err != nil {
		h.view.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *UserHandler) renderSignUp(w http.ResponseWriter, r *http.Request, form credentialsForm, messages ...string) {
	h.view.render(w, r, http.StatusBadRequest, "users/signup.html", PageData{
		Title:   "Sign up",
		Errors:  messages,
		Content: form,
	})
}

// validateSignUp returns every problem with the submitted credentials.
func validateSignUp(username, plain string) []string {
	var problems []string
	if username == "" {
		problems = append(problems, "Username is required")
	}
	if len(plain) < minPasswordLength {
		problems = append(problems, "Password needs to be 6 characters or longer")
	}
	return problems
}

// redirectSignedIn sends signed-in users home and reports whether it did.
func redirectSignedIn(w http.ResponseWriter, r *http.Request) bool {
	if _, ok := auth.CurrentUser(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return true
	}
	return false
}
