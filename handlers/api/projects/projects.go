package projects

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

func HandleListProjects(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		projects, err := store.ListProjects(r.Context(), claims.Subject)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
			}).Error("Failed to list projects")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list projects"})
			return
		}

		if projects == nil {
			projects = []*core.Project{}
		}
		render.JSON(w, r, projects)
	}
}

// HandleCreateProject instantiates a project, copying the document from
// a template when templateId is given and starting blank otherwise.
func HandleCreateProject(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		var req struct {
			Name       string `json:"name"`
			TemplateID string `json:"templateId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Project name is required"})
			return
		}

		project := &core.Project{
			ID:     uuid.NewString(),
			UserID: claims.Subject,
			Name:   req.Name,
		}

		if req.TemplateID != "" {
			template, err := store.Find(r.Context(), req.TemplateID)
			if err != nil {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Template not found"})
				return
			}
			project.TemplateID = template.ID
			project.TemplateOwnerID = template.UserID
			project.Data = template.Data
		} else {
			data, err := core.EncodeDocument(core.EditorDocument{})
			if err != nil {
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, map[string]string{"error": "Failed to create project"})
				return
			}
			project.Data = data
		}

		if err := store.SaveProject(r.Context(), project); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
			}).Error("Failed to create project")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create project"})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, project)
	}
}

// HandleGetProject returns one project including its document data. The
// editable flag tells the client whether structural editing applies: a
// project made from someone else's template only exposes linked text.
func HandleGetProject(store stores.Store) http.HandlerFunc {
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
			render.JSON(w, r, map[string]string{"error": "Project id is required"})
			return
		}

		project, err := store.GetProject(r.Context(), claims.Subject, id)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
				"id":     id,
			}).Warn("Failed to get project")
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Project not found"})
			return
		}

		editable := project.TemplateOwnerID == "" || project.TemplateOwnerID == claims.Subject

		render.JSON(w, r, map[string]any{
			"project":  project,
			"data":     json.RawMessage(project.Data),
			"editable": editable,
			"designer": claims.Designer,
		})
	}
}

// HandleSaveProject replaces the project document wholesale.
func HandleSaveProject(store stores.Store) http.HandlerFunc {
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
			render.JSON(w, r, map[string]string{"error": "Project id is required"})
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		defer r.Body.Close()

		if _, err := core.DecodeDocument(body); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid document payload"})
			return
		}

		project, err := store.GetProject(r.Context(), claims.Subject, id)
		if err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Project not found"})
			return
		}

		project.Data = body
		if err := store.SaveProject(r.Context(), project); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
				"id":     id,
			}).Error("Failed to save project")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to save project"})
			return
		}

		render.Status(r, http.StatusOK)
	}
}

func HandleRenameProject(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		id := chi.URLParam(r, "id")
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Project name is required"})
			return
		}

		project, err := store.GetProject(r.Context(), claims.Subject, id)
		if err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Project not found"})
			return
		}

		project.Name = req.Name
		if err := store.SaveProject(r.Context(), project); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
				"id":     id,
			}).Error("Failed to rename project")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to rename project"})
			return
		}

		render.Status(r, http.StatusOK)
	}
}

func HandleDeleteProject(store stores.Store) http.HandlerFunc {
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
			render.JSON(w, r, map[string]string{"error": "Project id is required"})
			return
		}

		if err := store.DeleteProject(r.Context(), claims.Subject, id); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
				"id":     id,
			}).Error("Failed to delete project")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to delete project"})
			return
		}

		render.Status(r, http.StatusOK)
	}
}
