package filters

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"portaal/stores"
)

// HandleListFilters returns the template filter taxonomy.
func HandleListFilters(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters, err := store.ListFilters(r.Context())
		if err != nil {
			logrus.WithError(err).Error("Failed to list filters")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list filters"})
			return
		}
		render.JSON(w, r, filters)
	}
}
