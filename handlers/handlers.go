// Package handlers contains the gin handlers for the REST surface. The
// shared collaborators (database, blob store, like counter) are package
// variables wired from main at startup.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"memora/cache"
	"memora/middleware"
	"memora/models"
	"memora/storage"
)

var (
	DB    *gorm.DB
	Blob  *storage.BlobStore
	Likes *cache.LikeCounter
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func ok(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{Code: 200, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Code: status, Message: message})
}

// currentUser loads the authenticated user set by the auth middleware.
// Returns nil after writing the error response when the user cannot be
// resolved.
func currentUser(c *gin.Context) *models.User {
	uid, exists := c.Get(middleware.ContextUserID)
	if !exists {
		fail(c, http.StatusUnauthorized, "not logged in")
		return nil
	}

	var user models.User
	err := DB.Where("id = ?", uid).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusUnauthorized, "user does not exist")
		} else {
			fail(c, http.StatusInternalServerError, "failed to load user")
		}
		return nil
	}
	return &user
}

// Health answers the unauthenticated liveness probe.
func Health(c *gin.Context) {
	ok(c, "success", gin.H{"status": "healthy", "message": "Memora API is running"})
}
