package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/session"
	"github.com/fjod/storefront/internal/upload"
)

type GenerateAssetRequestDTO struct {
	Prompt string `json:"prompt"`
}

type UploadRequestDTO struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

type UploadResponseDTO struct {
	Receipt *upload.Receipt `json:"receipt"`
	Asset   *domain.Asset   `json:"asset,omitempty"`
}

type BackupRequestDTO struct {
	Data []byte `json:"data"`
}

func (s *Server) generateAsset(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req GenerateAssetRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", "Please describe the image.")
		return
	}

	out, err := s.Assets.Generate(r.Context(), sess.User().ID, req.Prompt)
	switch {
	case errors.Is(err, domain.ErrEmptyPrompt):
		handleError(w, err, "Please describe the image.")
		return
	case err != nil:
		s.Logger.Warn("asset generation failed", "session_id", sess.ID, "err", err)
		handleError(w, err, "Could not generate image.")
		return
	}

	respondOK(w, http.StatusCreated, out, "Asset generated!")
}

// uploadFile runs the simulated cloud upload. For a signed-in user the
// completed upload is also recorded as a file asset.
func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req UploadRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", "Upload failed")
		return
	}

	receipt, err := s.Uploads.Upload(r.Context(), upload.File{Name: req.Name, Content: req.Content})
	if err != nil {
		handleError(w, err, "Upload failed")
		return
	}

	resp := UploadResponseDTO{Receipt: receipt}
	if uid := sess.User().ID; uid != "" {
		asset, err := s.Assets.RecordUpload(r.Context(), uid, req.Name)
		if err != nil {
			s.Logger.Warn("failed to record upload", "user_id", uid, "file", req.Name, "err", err)
		} else {
			resp.Asset = &asset
		}
	}

	respondOK(w, http.StatusCreated, resp, fmt.Sprintf("Uploaded: %s", req.Name))
}

func (s *Server) backup(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req BackupRequestDTO
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", "Backup failed.")
			return
		}
	}

	receipt, err := s.Uploads.Backup(r.Context(), sess.User().ID, req.Data)
	if err != nil {
		handleError(w, err, "Please sign in to back up.")
		return
	}
	respondOK(w, http.StatusOK, receipt, "System Backup Completed")
}
