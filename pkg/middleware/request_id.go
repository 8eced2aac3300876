package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/fieldform/inspection-api/pkg/requestid"
)

// RequestID takes the id from the x-request-id header when the caller set
// one, otherwise generates a fresh id, and injects it into the request
// context for the logging middleware and the handlers.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("x-request-id")
		if id == "" {
			id = middleware.GetReqID(r.Context())
		}
		if id == "" {
			id = requestid.Generate()
		}

		next.ServeHTTP(w, r.WithContext(requestid.ToContext(r.Context(), id)))
	})
}
