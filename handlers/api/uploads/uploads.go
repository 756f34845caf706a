package uploads

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"portaal/core"
	"portaal/stores"
)

// maxUploadSize caps image uploads at 10 MiB.
const maxUploadSize = 10 << 20

// Uploader stores uploaded images as assets keyed by a fresh ULID and
// hands the editor a URL it can fetch them back from.
type Uploader struct {
	store core.AssetStore
}

func NewUploader(store core.AssetStore) *Uploader {
	return &Uploader{store: store}
}

func (u *Uploader) Upload(ctx context.Context, name, contentType string, data []byte) (string, string, error) {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	key := ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()

	asset := &core.Asset{
		Key:         key,
		ContentType: contentType,
		Data:        data,
	}
	if err := u.store.SaveAsset(ctx, asset); err != nil {
		return "", "", fmt.Errorf("failed to store upload %q: %w", name, err)
	}
	return "/api/uploads/" + key, key, nil
}

func (u *Uploader) Delete(ctx context.Context, key string) error {
	return u.store.DeleteAsset(ctx, key)
}

// HandleUpload accepts a raw image body and returns its URL and key.
func HandleUpload(store stores.Store) http.HandlerFunc {
	uploader := NewUploader(store)
	return func(w http.ResponseWriter, r *http.Request) {
		contentType := r.Header.Get("Content-Type")
		switch contentType {
		case "image/png", "image/jpeg", "image/gif", "image/webp":
		default:
			render.Status(r, http.StatusUnsupportedMediaType)
			render.JSON(w, r, map[string]string{"error": "Unsupported image type"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadSize+1))
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		defer r.Body.Close()

		if len(body) == 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Empty upload"})
			return
		}
		if len(body) > maxUploadSize {
			render.Status(r, http.StatusRequestEntityTooLarge)
			render.JSON(w, r, map[string]string{"error": "Upload too large"})
			return
		}

		name := r.URL.Query().Get("name")
		url, key, err := uploader.Upload(r.Context(), name, contentType, body)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error": err,
				"name":  name,
			}).Error("Failed to store upload")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to store upload"})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]string{"url": url, "key": key})
	}
}

// HandleGetUpload serves a stored image back to the editor.
func HandleGetUpload(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if key == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Upload key is required"})
			return
		}

		asset, err := store.GetAsset(r.Context(), key)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error": err,
				"key":   key,
			}).Warn("Failed to get upload")
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Upload not found"})
			return
		}

		w.Header().Set("Content-Type", asset.ContentType)
		w.Write(asset.Data)
	}
}

func HandleDeleteUpload(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if key == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Upload key is required"})
			return
		}

		if err := store.DeleteAsset(r.Context(), key); err != nil {
			logrus.WithFields(logrus.Fields{
				"error": err,
				"key":   key,
			}).Error("Failed to delete upload")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to delete upload"})
			return
		}

		render.Status(r, http.StatusOK)
	}
}
