package errors

import "net/http"

// HTTPStatus maps an error to the stable status code the runtime answers with.
// A nil error maps to 200.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case IsTimeout(err):
		return http.StatusRequestTimeout
	case Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	}

	var te *TranslationError
	if As(err, &te) {
		return http.StatusInternalServerError
	}
	var ie *InvocationError
	if As(err, &ie) {
		return http.StatusInternalServerError
	}
	var ue *UsageError
	if As(err, &ue) {
		return http.StatusInternalServerError
	}

	if IsInvalid(err) {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}
