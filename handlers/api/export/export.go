package export

import (
	"io"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"portaal/core"
	"portaal/export"
	"portaal/stores"
)

// HandleExport rasterizes the posted document's export-selected frames
// and returns them as a zip of PNGs.
func HandleExport(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		defer r.Body.Close()

		doc, err := core.DecodeDocument(body)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid document payload"})
			return
		}

		archive, err := export.Archive(r.Context(), doc, store)
		if err != nil {
			logrus.WithError(err).Error("Failed to export frames")
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, map[string]string{"error": "No frames selected for export"})
			return
		}

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="frames.zip"`)
		w.Write(archive)
	}
}
