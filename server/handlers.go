package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-session-gateway/internal/errors"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// decodeAndValidate reads a JSON body into v and runs its validate tags.
// Unknown fields are rejected.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrapf(errors.ErrInvalidRequest, "decode body: %s", err)
	}
	if err := s.validate.Struct(v); err != nil {
		return errors.Wrapf(errors.ErrInvalidRequest, "validate body: %s", err)
	}
	return nil
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// PreflightHandler answers OPTIONS requests CorsMiddleware did not.
func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}
