package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/imagehoster/server/internal/auth"
	"github.com/imagehoster/server/internal/mq"
	"github.com/imagehoster/server/internal/services"
	"github.com/imagehoster/server/internal/store"
	"github.com/imagehoster/server/types"
)

// ImageHandler serves the image pages.
type ImageHandler struct {
	images *services.ImageService
	tags   *services.TagService
	events *mq.Publisher
	view   *Renderer
}

func NewImageHandler(view *Renderer, images *services.ImageService, tags *services.TagService, events *mq.Publisher) *ImageHandler {
	return &ImageHandler{
		images: images,
		tags:   tags,
		events: events,
		view:   view,
	}
}

// ImageRouter registers image routes on the given router.
func ImageRouter(r chi.Router, view *Renderer, images *services.ImageService, tags *services.TagService, events *mq.Publisher) {
	handler := NewImageHandler(view, images, tags, events)

	r.Get("/", handler.Home)
	r.Get("/images/{title}", handler.ShowImage)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser("/signin"))
		r.Get("/images/upload", handler.UploadForm)
		r.Post("/upload", handler.Upload)
		r.Get("/images/{title}/edit", handler.EditForm)
		r.Post("/editImage", handler.EditImage)
		r.Post("/images/{title}/delete", handler.DeleteImage)
	})
}

type homeContent struct {
	Images []types.Image
	Count  int64
}

type imageContent struct {
	Image types.Image
	Owner *types.User
	Tags  []types.Tag
}

// imageForm is the upload and edit form state.
type imageForm struct {
	Title       string
	Description string
	Tags        string
	ImageData   string
	AllTags     []types.Tag
}

func (h *ImageHandler) Home(w http.ResponseWriter, r *http.Request) {
	images, err := h.images.GetAll(r.Context())
	if err != nil {
		h.view.renderError(w, r, err)
		return
	}
	count, err := h.images.Count(r.Context())
	if err != nil {
		h.view.renderError(w, r, err)
		return
	}

	h.view.render(w, r, http.StatusOK, "home.html", PageData{
		Title:   "Image Hoster",
		Content: homeContent{Images: images, Count: count},
	})
}

func (h *ImageHandler) UploadForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, "images/upload.html", imageForm{}, "")
}

func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.CurrentUser(r.Context())
	if err := parseForm(r); err != nil {
		h.view.renderError(w, r, invalid("form", "Invalid form submission"))
		return
	}

	form := imageForm{
		Title:       formValue(r, formFieldTitle),
		Description: formValue(r, formFieldDescription),
		Tags:        formValue(r, formFieldTags),
	}
	if form.Title == "" {
		h.renderForm(w, r, http.StatusBadRequest, "images/upload.html", form, "Title is required")
		return
	}

	data, ok, err := readUpload(r, formFieldFile)
	if err != nil {
		h.renderFormError(w, r, "images/upload.html", form, err)
		return
	}
	if !ok {
		h.renderForm(w, r, http.StatusBadRequest, "images/upload.html", form, "Please choose an image to upload")
		return
	}

	tags, err := services.ResolveTags(r.Context(), h.tags, form.Tags)
	if err != nil {
		h.view.renderError(w, r, err)
		return
	}

	image, err := h.images.Save(r.Context(), types.Image{
		Title:       form.Title,
		Description: form.Description,
		ImageData:   data,
		UserID:      identity.UserID,
		Tags:        tags,
	})
	if errors.Is(err, store.ErrConflict) {
		h.renderForm(w, r, http.StatusBadRequest, "images/upload.html", form, "An image with this title already exists")
		return
	}
	if err != nil {
		h.view.renderError(w, r, err)
		return
	}

	h.publish(r, mq.EventImageUploaded, image.Title)
	http.Redirect(w, r, imagePath(image.Title), http.StatusSeeOther)
}

// ShowImage renders one image and counts the view.
func (h *ImageHandler) ShowImage(w http.ResponseWriter, r *http.Request) {
	image, err := h.images.GetByTitleWithJoins(r.Context(), pathParam(r, "title"))
	if err != nil {
		h.view.renderError(w, r, err)
		return
	}

	views, err := h.images.RecordView(r.Context(), image)
	if err != nil {
		h.view.renderError(w, r, err)
		return
	}
	image.ViewCount = views

	h.view.render(w, r, http.StatusOK, "images/image.html", PageData{
		Title:   image.Title,
		Content: imageContent{Image: image, Owner: image.User, Tags: image.Tags},
	})
}

func (h *ImageHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	image, err := h.images.GetByTitleWithJoins(r.Context(), pathParam(r, "title"))
	if err != nil {
		h.view.renderError(w, r, err)
		return
	}

	h.renderForm(w, r, http.StatusOK, "images/edit.html", imageForm{
		Title:       image.Title,
		Description: image.Description,
		Tags:        services.JoinTagNames(image.Tags),
		ImageData:   image.ImageData,
	}, "")
}

// EditImage updates description, tags and optionally the content. The
// current content is kept when no file is uploaded.
func (h *ImageHandler) EditImage(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		h.view.renderError(w, r, invalid("form", "Invalid form submission"))
		return
	}

	image, err := h.images.GetByTitle(r.Context(), formValue(r, formFieldTitle))
	if err != nil {
		h.view.renderError(w, r, err)
		return
	}

	form := imageForm{
		Title:       image.Title,
		Description: formValue(r, formFieldDescription),
		Tags:        formValue(r, formFieldTags),
		ImageData:   image.ImageData,
	}
	data, ok, err := readUpload(r, formFieldFile)
	if err != nil {
		h.renderFormError(w, r, "images/edit.html", form, err)
		return
	}
	if ok {
		image.ImageData = data
	}

	tags, err := services.ResolveTags(r.Context(), h.tags, form.Tags)
	if err != nil {
		h.view.renderError(w, r, err)
		return
	}
	image.Description = form.Description
	image.Tags = tags

	if _, err := h.images.Update(r.Context(), image); err != nil {
		h.view.renderError(w, r, err)
		return
	}

	h.publish(r, mq.EventImageUpdated, image.Title)
	http.Redirect(w, r, imagePath(image.Title), http.StatusSeeOther)
}

func (h *ImageHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	title := pathParam(r, "title")
	if err := h.images.DeleteByTitle(r.Context(), title); err != nil {
		h.view.renderError(w, r, err)
		return
	}

	h.publish(r, mq.EventImageDeleted, title)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *ImageHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, page string, form imageForm, message string) {
	allTags, err := h.tags.GetAll(r.Context())
	if err != nil {
		h.view.renderError(w, r, err)
		return
	}
	form.AllTags = allTags

	title := "Upload image"
	if page == "images/edit.html" {
		title = "Edit " + form.Title
	}
	h.view.render(w, r, status, page, PageData{Title: title, Error: message, Content: form})
}

func (h *ImageHandler) renderFormError(w http.ResponseWriter, r *http.Request, page string, form imageForm, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		h.renderForm(w, r, http.StatusBadRequest, page, form, validationErr.Message)
		return
	}
	h.view.renderError(w, r, err)
}

// publish reports an image change. Failures are logged and do not fail the
// request.
func (h *ImageHandler) publish(r *http.Request, eventType, title string) {
	identity, _ := auth.CurrentUser(r.Context())
	err := h.events.PublishImageEvent(r.Context(), mq.ImageEvent{
		Type:     eventType,
		Title:    title,
		Username: identity.Username,
	})
	if err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Str("title", title).Msg("Failed to publish image event")
	}
}
