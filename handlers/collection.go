package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"memora/models"
)

type collectionInput struct {
	CategoryID *string                    `json:"category_id"`
	Tags       string                     `json:"tags"`
	Details    map[string]json.RawMessage `json:"details"`
}

func CreateCollection(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var input collectionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "invalid parameters")
		return
	}

	if input.CategoryID != nil && *input.CategoryID != "" {
		var n int64
		if err := DB.Model(&models.Category{}).
			Where("id = ? AND user_id = ?", *input.CategoryID, user.ID).
			Count(&n).Error; err != nil {
			fail(c, http.StatusInternalServerError, "failed to create collection")
			return
		}
		if n == 0 {
			fail(c, http.StatusNotFound, "category not found")
			return
		}
	}

	collection := models.Collection{
		UserID:     user.ID,
		CategoryID: input.CategoryID,
		Tags:       input.Tags,
	}

	err := DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&collection).Error; err != nil {
			return err
		}
		for key, value := range input.Details {
			detail := models.CollectionDetail{
				CollectionID: collection.ID,
				Key:          key,
				Value:        datatypes.JSON(value),
			}
			if err := tx.Create(&detail).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("create collection", "user_id", user.ID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to create collection")
		return
	}

	ok(c, "collection created", collection)
}

func ListCollections(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var collections []models.Collection
	if err := DB.Where("user_id = ?", user.ID).Order("created_at DESC").Find(&collections).Error; err != nil {
		fail(c, http.StatusInternalServerError, "failed to list collections")
		return
	}

	ok(c, "success", gin.H{"collections": collections})
}

func GetCollection(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id := c.Param("id")

	var collection models.Collection
	err := DB.Where("id = ? AND user_id = ?", id, user.ID).First(&collection).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "collection not found")
		} else {
			fail(c, http.StatusInternalServerError, "failed to load collection")
		}
		return
	}

	var details []models.CollectionDetail
	if err := DB.Where("collection_id = ?", id).Find(&details).Error; err != nil {
		fail(c, http.StatusInternalServerError, "failed to load collection")
		return
	}

	detailMap := make(map[string]json.RawMessage, len(details))
	for _, d := range details {
		detailMap[d.Key] = json.RawMessage(d.Value)
	}

	ok(c, "success", gin.H{"collection": collection, "details": detailMap})
}

func UpdateCollection(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id := c.Param("id")

	var collection models.Collection
	err := DB.Where("id = ? AND user_id = ?", id, user.ID).First(&collection).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "collection not found")
		} else {
			fail(c, http.StatusInternalServerError, "failed to update collection")
		}
		return
	}

	var input collectionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "invalid parameters")
		return
	}

	if input.CategoryID != nil && *input.CategoryID != "" {
		var n int64
		if err := DB.Model(&models.Category{}).
			Where("id = ? AND user_id = ?", *input.CategoryID, user.ID).
			Count(&n).Error; err != nil {
			fail(c, http.StatusInternalServerError, "failed to update collection")
			return
		}
		if n == 0 {
			fail(c, http.StatusNotFound, "category not found")
			return
		}
	}

	err = DB.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"category_id": input.CategoryID, "tags": input.Tags}
		if err := tx.Model(&collection).Updates(updates).Error; err != nil {
			return err
		}
		// Details are upserted per key; keys not mentioned stay as they are.
		for key, value := range input.Details {
			var existing models.CollectionDetail
			err := tx.Where("collection_id = ? AND `key` = ?", id, key).First(&existing).Error
			switch {
			case err == nil:
				if err := tx.Model(&existing).Update("value", datatypes.JSON(value)).Error; err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				detail := models.CollectionDetail{
					CollectionID: id,
					Key:          key,
					Value:        datatypes.JSON(value),
				}
				if err := tx.Create(&detail).Error; err != nil {
					return err
				}
			default:
				return err
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("update collection", "id", id, "error", err)
		fail(c, http.StatusInternalServerError, "failed to update collection")
		return
	}

	ok(c, "collection updated", collection)
}

func DeleteCollection(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id := c.Param("id")

	var collection models.Collection
	err := DB.Where("id = ? AND user_id = ?", id, user.ID).First(&collection).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "collection not found")
		} else {
			fail(c, http.StatusInternalServerError, "failed to delete collection")
		}
		return
	}

	err = DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection_id = ?", id).Delete(&models.CollectionDetail{}).Error; err != nil {
			return err
		}
		if err := tx.Where("collection_id = ?", id).Delete(&models.CollectionAttachment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&collection).Error
	})
	if err != nil {
		slog.Error("delete collection", "id", id, "error", err)
		fail(c, http.StatusInternalServerError, "failed to delete collection")
		return
	}

	ok(c, "collection deleted", nil)
}
