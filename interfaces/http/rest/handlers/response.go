package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/services"
	"github.com/realaman90/koda-sub002/pkg/auth"
	appErrors "github.com/realaman90/koda-sub002/pkg/errors"
	"github.com/realaman90/koda-sub002/pkg/utils"
)

// maxBodyBytes bounds request bodies; a saved canvas is the largest payload
const maxBodyBytes = 8 << 20

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   bool                   `json:"error"`
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// base carries what every handler needs
type base struct {
	sessions *services.SessionService
	logger   *zap.Logger
}

func (h *base) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError maps err onto its HTTP status. Internal details of
// unexpected errors are logged, not returned.
func (h *base) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := appErrors.StatusCode(err)
	body := ErrorResponse{Error: true, Type: string(appErrors.ErrorTypeInternal), Message: "Internal server error"}

	if appErr := appErrors.GetAppError(err); appErr != nil {
		body.Type = string(appErr.Type)
		body.Code = appErr.Code
		body.Details = appErr.Details
		if status < http.StatusInternalServerError {
			body.Message = appErr.Message
		}
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	h.respondJSON(w, status, body)
}

// decode reads a JSON body into the struct v and validates it
func (h *base) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := h.decodeBody(w, r, v); err != nil {
		return err
	}
	return utils.ValidateStruct(v)
}

// decodeBody reads a JSON body into v without validation. An empty body
// leaves v untouched.
func (h *base) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return appErrors.NewValidationError("Invalid request body: " + err.Error())
	}
	return nil
}

// session opens the graph named in the route for the calling user
func (h *base) session(r *http.Request) (*services.Session, error) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		return nil, appErrors.NewUnauthorizedError("")
	}
	return h.sessions.Open(r.Context(), chi.URLParam(r, "graphID"), user.UserID)
}
