package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/AnshRaj112/safezone-backend/internal/apperror"
	"github.com/AnshRaj112/safezone-backend/internal/middleware"
)

const maxAvatarBytes = 5 << 20

type AvatarUploader interface {
	UploadAvatar(ctx context.Context, file io.Reader, userID string) (string, error)
}

type AvatarStore interface {
	SetAvatar(ctx context.Context, userID, url string) error
}

type UploadHandler struct {
	uploader AvatarUploader // nil when Cloudinary is not configured
	profiles AvatarStore
}

func NewUploadHandler(uploader AvatarUploader, profiles AvatarStore) *UploadHandler {
	return &UploadHandler{uploader: uploader, profiles: profiles}
}

// Avatar uploads the multipart "file" image and stores its URL on the
// caller's profile.
func (h *UploadHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		middleware.WriteError(w, r, apperror.Unavailable("Avatar uploads are not configured"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes+1<<10)
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		middleware.WriteError(w, r, apperror.BadRequest("File must be an image of at most 5MB"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, r, apperror.BadRequest("No file provided"))
		return
	}
	defer file.Close()

	if header.Size > maxAvatarBytes {
		middleware.WriteError(w, r, apperror.BadRequest("File must be an image of at most 5MB"))
		return
	}
	sniff := make([]byte, 512)
	n, _ := io.ReadFull(file, sniff)
	if !strings.HasPrefix(http.DetectContentType(sniff[:n]), "image/") {
		middleware.WriteError(w, r, apperror.BadRequest("File must be an image of at most 5MB"))
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		middleware.WriteError(w, r, apperror.Provider("Failed to read file", err))
		return
	}

	user := middleware.UserFrom(r.Context())
	url, err := h.uploader.UploadAvatar(r.Context(), file, user.ID)
	if err != nil {
		middleware.WriteError(w, r, apperror.Provider("Failed to upload avatar", err))
		return
	}
	if err := h.profiles.SetAvatar(r.Context(), user.ID, url); err != nil {
		middleware.WriteError(w, r, apperror.Provider("Failed to update profile", err))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"avatar_url": url})
}
