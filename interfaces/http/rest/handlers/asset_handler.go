package handlers

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/ports"
	"github.com/realaman90/koda-sub002/pkg/auth"
	appErrors "github.com/realaman90/koda-sub002/pkg/errors"
)

// MaxUploadBytes caps a proxied upload
const MaxUploadBytes = 50 << 20

var uploadTypes = map[string]bool{
	"image/png": true, "image/jpeg": true, "image/webp": true, "image/gif": true,
	"video/mp4": true, "video/webm": true, "audio/mpeg": true, "audio/wav": true,
}

// AssetHandler hands out direct upload URLs
type AssetHandler struct {
	base
	storage ports.AssetStorage
}

// NewAssetHandler creates a new asset handler. storage may be nil, in
// which case uploads are unavailable.
func NewAssetHandler(storage ports.AssetStorage, logger *zap.Logger) *AssetHandler {
	return &AssetHandler{base: base{logger: logger}, storage: storage}
}

// PresignRequest describes the file about to be uploaded
type PresignRequest struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required,oneof=image/png image/jpeg image/webp image/gif video/mp4 video/webm audio/mpeg audio/wav"`
}

// UploadResponse is the stored location of a proxied upload
type UploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Presign handles POST /assets/presign
func (h *AssetHandler) Presign(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	var req PresignRequest
	if err := h.decode(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	upload, err := h.storage.Presign(r.Context(), req.FileName, req.ContentType)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, upload)
}

// Upload handles POST /assets?fileName=x. The raw body is stored as is,
// for clients that cannot PUT to a presigned URL.
func (h *AssetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, r, appErrors.NewUnauthorizedError(""))
		return
	}
	contentType := r.Header.Get("Content-Type")
	if !uploadTypes[contentType] {
		h.respondError(w, r, appErrors.NewValidationError("unsupported content type: "+contentType))
		return
	}
	fileName := r.URL.Query().Get("fileName")
	if strings.TrimSpace(fileName) == "" {
		h.respondError(w, r, appErrors.NewValidationError("fileName is required"))
		return
	}

	key := "uploads/" + user.UserID + "/" + uuid.NewString() + strings.ToLower(path.Ext(fileName))
	url, err := h.storage.Upload(r.Context(), key, contentType, http.MaxBytesReader(w, r.Body, MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = appErrors.NewValidationError("upload exceeds size limit").WithCode("UPLOAD_TOO_LARGE")
		}
		h.respondError(w, r, err)
		return
	}

	h.logger.Info("Asset uploaded",
		zap.String("key", key),
		zap.String("userID", user.UserID))
	h.respondJSON(w, http.StatusCreated, UploadResponse{Key: key, URL: url})
}

func (h *AssetHandler) enabled(w http.ResponseWriter, r *http.Request) bool {
	if h.storage == nil {
		h.respondError(w, r, appErrors.NewInternalError("asset storage is not configured").WithCode("STORAGE_DISABLED"))
		return false
	}
	return true
}
