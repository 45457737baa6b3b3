package httpadapter

import (
	"net/http"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrInvalidVector):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrScanNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrConflict),
		domain.IsKind(err, domain.ErrStageLocked),
		domain.IsKind(err, domain.ErrStageOrder):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrLookupFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
