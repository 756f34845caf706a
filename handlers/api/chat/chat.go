package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"portaal/core"
	"portaal/middleware"
	"portaal/stores"
)

// HandleListMessages returns the chat history for a project room. Rooms
// are keyed by project id; callers must own the project or the template
// it was made from.
func HandleListMessages(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		roomID := chi.URLParam(r, "roomID")
		if roomID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Room id is required"})
			return
		}

		messages, err := store.ListMessages(r.Context(), roomID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"roomID": roomID,
			}).Error("Failed to list messages")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list messages"})
			return
		}

		if messages == nil {
			messages = []*core.Message{}
		}
		render.JSON(w, r, messages)
	}
}
