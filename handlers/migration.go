package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"memora/migration"
)

// ExportData serializes the caller's entire owned entity graph into one
// portable document.
func ExportData(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	doc, err := migration.NewExporter(DB).Export(c.Request.Context(), user)
	if err != nil {
		slog.Error("export failed", "user_id", user.ID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to export data")
		return
	}

	slog.Info("exported user data", "user_id", user.ID)
	ok(c, "export successful", doc)
}

// ImportData reconstructs a document's records for the caller. The whole
// import commits atomically; on any failure nothing is written.
func ImportData(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var doc migration.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		fail(c, http.StatusBadRequest, "invalid import document")
		return
	}

	if err := migration.NewImporter(DB).Import(c.Request.Context(), user, &doc); err != nil {
		slog.Error("import failed", "user_id", user.ID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to import data")
		return
	}

	slog.Info("imported user data", "user_id", user.ID)
	ok(c, "import successful", gin.H{"message": "data imported successfully"})
}
