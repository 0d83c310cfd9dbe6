package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"memora/models"
)

type categoryInput struct {
	Name  string  `json:"name" binding:"required,max=50"`
	Emoji *string `json:"emoji"`
}

func CreateCategory(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var input categoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "invalid parameters")
		return
	}

	var n int64
	if err := DB.Model(&models.Category{}).Where("user_id = ? AND name = ?", user.ID, input.Name).Count(&n).Error; err != nil {
		fail(c, http.StatusInternalServerError, "failed to create category")
		return
	}
	if n > 0 {
		fail(c, http.StatusBadRequest, "category with this name already exists")
		return
	}

	category := models.Category{UserID: user.ID, Name: input.Name, Emoji: input.Emoji}
	if err := DB.Create(&category).Error; err != nil {
		slog.Error("create category", "user_id", user.ID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to create category")
		return
	}

	ok(c, "category created", category)
}

type categoryListing struct {
	models.Category
	CollectionCount int64 `json:"collection_count"`
}

func ListCategories(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var categories []models.Category
	if err := DB.Where("user_id = ?", user.ID).Order("name").Find(&categories).Error; err != nil {
		fail(c, http.StatusInternalServerError, "failed to list categories")
		return
	}

	listing := make([]categoryListing, 0, len(categories))
	for _, cat := range categories {
		var count int64
		if err := DB.Model(&models.Collection{}).Where("category_id = ?", cat.ID).Count(&count).Error; err != nil {
			fail(c, http.StatusInternalServerError, "failed to list categories")
			return
		}
		listing = append(listing, categoryListing{Category: cat, CollectionCount: count})
	}

	ok(c, "success", gin.H{"categories": listing})
}

func UpdateCategory(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id := c.Param("id")

	var category models.Category
	err := DB.Where("id = ? AND user_id = ?", id, user.ID).First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "category not found")
		} else {
			fail(c, http.StatusInternalServerError, "failed to update category")
		}
		return
	}

	var input struct {
		Name  *string `json:"name" binding:"omitempty,max=50"`
		Emoji *string `json:"emoji"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "invalid parameters")
		return
	}

	updates := map[string]any{}
	if input.Name != nil && *input.Name != category.Name {
		var n int64
		if err := DB.Model(&models.Category{}).
			Where("user_id = ? AND name = ? AND id <> ?", user.ID, *input.Name, id).
			Count(&n).Error; err != nil {
			fail(c, http.StatusInternalServerError, "failed to update category")
			return
		}
		if n > 0 {
			fail(c, http.StatusBadRequest, "category with this name already exists")
			return
		}
		updates["name"] = *input.Name
	}
	if input.Emoji != nil {
		updates["emoji"] = *input.Emoji
	}

	if len(updates) > 0 {
		if err := DB.Model(&category).Updates(updates).Error; err != nil {
			slog.Error("update category", "id", id, "error", err)
			fail(c, http.StatusInternalServerError, "failed to update category")
			return
		}
	}

	ok(c, "category updated", category)
}

func DeleteCategory(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id := c.Param("id")

	var category models.Category
	err := DB.Where("id = ? AND user_id = ?", id, user.ID).First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "category not found")
		} else {
			fail(c, http.StatusInternalServerError, "failed to delete category")
		}
		return
	}

	err = DB.Transaction(func(tx *gorm.DB) error {
		// Collections keep existing without their category.
		if err := tx.Model(&models.Collection{}).
			Where("category_id = ?", id).
			Update("category_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&category).Error
	})
	if err != nil {
		slog.Error("delete category", "id", id, "error", err)
		fail(c, http.StatusInternalServerError, "failed to delete category")
		return
	}

	ok(c, "category deleted", nil)
}
