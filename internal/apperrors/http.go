package apperrors

import "net/http"

// ToHTTPStatus converts an error code to an HTTP status code
func ToHTTPStatus(code string) int {
	switch code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInvalidArgument:
		return http.StatusBadRequest
	case ErrUnauthenticated:
		return http.StatusUnauthorized
	case ErrConflict:
		return http.StatusConflict
	case ErrUnavailable:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
