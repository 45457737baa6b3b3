package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

func (rt *Router) indexLibraryImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes+multipartOverhead)
	file, _, err := r.FormFile("photo")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "photo too large")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'photo' is required")
		return
	}
	defer file.Close()

	image, err := rt.services.Library.IndexReference(r.Context(), domain.LibraryImage{
		ItemID:   r.FormValue("item_id"),
		Title:    r.FormValue("title"),
		Category: domain.Category(r.FormValue("category")),
	}, file)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordLibraryImage(serviceName, string(image.Category))
	}
	writeJSON(w, http.StatusCreated, image)
}

func (rt *Router) libraryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.services.Library.Stats(r.Context(), domain.Category(r.URL.Query().Get("category")))
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
