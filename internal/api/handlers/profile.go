package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pysugar/launcher-accounts/internal/auth/token"

	"github.com/pysugar/launcher-accounts/internal/profile"
)

// CurrentSkinHandler handles GET /api/profile/skin
func CurrentSkinHandler(client *profile.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		skin, err := client.GetCurrentSkin(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		if skin == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, skin)
	}
}

// ResetSkinHandler handles DELETE /api/profile/skin
func ResetSkinHandler(client *profile.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := client.ResetSkin(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Skin reset to default"})
	}
}

type uploadSkinRequest struct {
	SkinData string `json:"skin_data"` // base64-encoded PNG
	Variant  string `json:"variant"`
}

// UploadSkinHandler handles POST /api/profile/skin
func UploadSkinHandler(client *profile.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req uploadSkinRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 2*profile.MaxSkinSize)).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: decode body: %v", token.ErrInvalidArgument, err))
			return
		}
		png, err := base64.StdEncoding.DecodeString(req.SkinData)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid base64 image data: %v", token.ErrInvalidArgument, err))
			return
		}
		if err := client.UploadSkin(r.Context(), png, req.Variant); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Skin uploaded successfully"})
	}
}
