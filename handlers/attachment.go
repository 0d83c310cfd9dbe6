package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"memora/models"
)

func UploadAttachment(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "file is required")
		return
	}
	description := c.PostForm("description")

	src, err := file.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "failed to open file")
		return
	}
	defer src.Close()

	objectName := uuid.NewString() + filepath.Ext(file.Filename)
	contentType := file.Header.Get("Content-Type")

	url, err := Blob.Put(c.Request.Context(), objectName, src, file.Size, contentType)
	if err != nil {
		slog.Error("upload attachment", "user_id", user.ID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to upload file")
		return
	}

	attachment := models.Attachment{UserID: user.ID, URL: url}
	if description != "" {
		attachment.Description = &description
	}
	if err := DB.Create(&attachment).Error; err != nil {
		// The record failed; drop the orphaned blob.
		if rmErr := Blob.Remove(c.Request.Context(), objectName); rmErr != nil {
			slog.Warn("remove orphaned blob", "object", objectName, "error", rmErr)
		}
		slog.Error("create attachment record", "user_id", user.ID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to save attachment")
		return
	}

	ok(c, "upload successful", attachment)
}

func GetAttachment(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id := c.Param("id")

	var attachment models.Attachment
	err := DB.Where("id = ? AND user_id = ?", id, user.ID).First(&attachment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "attachment not found")
		} else {
			fail(c, http.StatusInternalServerError, "failed to load attachment")
		}
		return
	}

	ok(c, "success", attachment)
}

func DeleteAttachment(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id := c.Param("id")

	var attachment models.Attachment
	err := DB.Where("id = ? AND user_id = ?", id, user.ID).First(&attachment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "attachment not found")
		} else {
			fail(c, http.StatusInternalServerError, "failed to delete attachment")
		}
		return
	}

	// Blob removal is best-effort; the record is the source of truth.
	if objectName := Blob.ObjectName(attachment.URL); objectName != "" {
		if err := Blob.Remove(c.Request.Context(), objectName); err != nil {
			slog.Warn("remove blob", "object", objectName, "error", err)
		}
	}

	err = DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("attachment_id = ?", id).Delete(&models.CollectionAttachment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&attachment).Error
	})
	if err != nil {
		slog.Error("delete attachment", "id", id, "error", err)
		fail(c, http.StatusInternalServerError, "failed to delete attachment")
		return
	}

	ok(c, "attachment deleted", nil)
}
