package templates

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"portaal/core"
	"portaal/middleware"
	"portaal/stores"
)

// HandleListTemplates returns the caller's own templates, without Data.
func HandleListTemplates(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		templates, err := store.List(r.Context(), claims.Subject)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
			}).Error("Failed to list templates")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list templates"})
			return
		}

		if templates == nil {
			templates = []*core.Template{}
		}
		render.JSON(w, r, templates)
	}
}

// HandleBrowseTemplates returns every template, optionally narrowed by
// the ?filter= query parameter. Serves the template picker.
func HandleBrowseTemplates(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filterID := r.URL.Query().Get("filter")

		templates, err := store.Browse(r.Context(), filterID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":    err,
				"filterID": filterID,
			}).Error("Failed to browse templates")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to browse templates"})
			return
		}

		if templates == nil {
			templates = []*core.Template{}
		}
		render.JSON(w, r, templates)
	}
}

// HandleCreateTemplate creates an empty template. Designer only.
func HandleCreateTemplate(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		var req struct {
			Name      string   `json:"name"`
			FilterIDs []string `json:"filterIds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Template name is required"})
			return
		}

		emptyDoc, err := core.EncodeDocument(core.EditorDocument{})
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create template"})
			return
		}

		template := &core.Template{
			ID:        uuid.NewString(),
			UserID:    claims.Subject,
			Name:      req.Name,
			FilterIDs: req.FilterIDs,
			Data:      emptyDoc,
		}
		if err := store.SaveTemplate(r.Context(), template); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
			}).Error("Failed to create template")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create template"})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, template)
	}
}

// HandleGetTemplate returns the serialized document of one template.
func HandleGetTemplate(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Template id is required"})
			return
		}

		template, err := store.Find(r.Context(), id)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error": err,
				"id":    id,
			}).Warn("Failed to get template")
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Template not found"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(template.Data)
	}
}

// HandleSaveTemplate replaces a template's document wholesale. The body
// is the serialized document. Designer only.
func HandleSaveTemplate(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Template id is required"})
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		defer r.Body.Close()

		// Reject payloads that are not a valid document before they
		// overwrite a good one.
		if _, err := core.DecodeDocument(body); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid document payload"})
			return
		}

		existing, err := store.Find(r.Context(), id)
		if err != nil || existing.UserID != claims.Subject {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Template not found"})
			return
		}

		existing.Data = body
		if err := store.SaveTemplate(r.Context(), existing); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
				"id":     id,
			}).Error("Failed to save template")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to save template"})
			return
		}

		render.Status(r, http.StatusOK)
	}
}

// HandleRenameTemplate updates name and filters, leaving Data alone.
func HandleRenameTemplate(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		id := chi.URLParam(r, "id")
		var req struct {
			Name      string   `json:"name"`
			FilterIDs []string `json:"filterIds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Template name is required"})
			return
		}

		existing, err := store.Find(r.Context(), id)
		if err != nil || existing.UserID != claims.Subject {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Template not found"})
			return
		}

		existing.Name = req.Name
		if req.FilterIDs != nil {
			existing.FilterIDs = req.FilterIDs
		}
		if err := store.SaveTemplate(r.Context(), existing); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
				"id":     id,
			}).Error("Failed to rename template")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to rename template"})
			return
		}

		render.Status(r, http.StatusOK)
	}
}

func HandleDeleteTemplate(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Template id is required"})
			return
		}

		if err := store.DeleteTemplate(r.Context(), claims.Subject, id); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
				"id":     id,
			}).Error("Failed to delete template")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to delete template"})
			return
		}

		render.Status(r, http.StatusOK)
	}
}
