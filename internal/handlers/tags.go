package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/imagehoster/server/internal/services"
	"github.com/imagehoster/server/types"
)

// TagHandler serves the per tag listings.
type TagHandler struct {
	images *services.ImageService
	view   *Renderer
}

// TagRouter registers tag routes on the given router.
func TagRouter(r chi.Router, view *Renderer, images *services.ImageService) {
	handler := &TagHandler{images: images, view: view}

	r.Get("/tags/{tagName}", handler.TagImages)
}

type tagContent struct {
	Tag    string
	Images []types.Image
}

// TagImages lists the images carrying a tag. An unknown tag yields an
// empty list.
func (h *TagHandler) TagImages(w http.ResponseWriter, r *http.Request) {
	tagName := pathParam(r, "tagName")
	images, err := h.images.GetByTag(r.Context(), tagName)
	if err != nil {
		h.view.renderError(w, r, err)
		return
	}

	h.view.render(w, r, http.StatusOK, "tag/images.html", PageData{
		Title:   "Tag " + tagName,
		Content: tagContent{Tag: tagName, Images: images},
	})
}
