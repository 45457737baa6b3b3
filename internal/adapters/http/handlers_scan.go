package httpadapter

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

type scanRequest struct {
	Category   domain.Category `json:"category"`
	ListingURL string          `json:"listing_url"`
	Text       string          `json:"text"`
}

// submitScan accepts a multipart photo upload or a JSON body carrying
// either a listing link or free text.
func (rt *Router) submitScan(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		scan *domain.ScanSession
		err  error
	)
	switch mediaType {
	case "multipart/form-data":
		var ok bool
		scan, ok, err = rt.submitPhotoScan(w, r)
		if !ok {
			return
		}
	default:
		var req scanRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		listingURL := strings.TrimSpace(req.ListingURL)
		text := strings.TrimSpace(req.Text)
		switch {
		case listingURL != "" && text != "":
			writeError(w, http.StatusBadRequest, "provide either listing_url or text, not both")
			return
		case listingURL != "":
			scan, err = rt.services.Intake.SubmitListing(r.Context(), req.Category, listingURL)
		case text != "":
			scan, err = rt.services.Intake.SubmitText(r.Context(), req.Category, text)
		default:
			writeError(w, http.StatusBadRequest, "listing_url or text is required")
			return
		}
	}
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordScanSubmitted(serviceName, string(scan.Input))
	}
	writeJSON(w, http.StatusAccepted, scan)
}

// submitPhotoScan reports ok=false after answering a malformed upload itself.
func (rt *Router) submitPhotoScan(w http.ResponseWriter, r *http.Request) (*domain.ScanSession, bool, error) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes+multipartOverhead)
	file, header, err := r.FormFile("photo")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "photo too large")
			return nil, false, nil
		}
		writeError(w, http.StatusBadRequest, "multipart field 'photo' is required")
		return nil, false, nil
	}
	defer file.Close()

	category := domain.Category(r.FormValue("category"))
	scan, err := rt.services.Intake.SubmitPhoto(r.Context(), category, header.Header.Get("Content-Type"), file)
	return scan, true, err
}

func (rt *Router) getScan(w http.ResponseWriter, r *http.Request) {
	scan, err := rt.services.Scans.GetByID(r.Context(), r.PathValue("scan_id"))
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (rt *Router) confirmScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CandidateID string `json:"candidate_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	scan, err := rt.services.Confirmer.Confirm(r.Context(), r.PathValue("scan_id"), req.CandidateID)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}
