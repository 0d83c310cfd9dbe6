package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"memora/models"
)

// ErrMissingReference marks a malformed document: a child record whose
// parent does not exist after all earlier stages ran. It is fatal for the
// whole import.
var ErrMissingReference = errors.New("referenced record does not exist")

// ErrMalformedRecord marks a record the document contract does not allow,
// such as a missing id or an unknown asset type.
var ErrMalformedRecord = errors.New("malformed record")

// Importer writes a Document into the datastore with upsert semantics.
//
// The whole import runs inside a single transaction: it either commits
// completely or leaves the store untouched. Entity types are processed in
// dependency order so every reference resolves before it is used. Records
// that would touch another user's data are skipped silently, which keeps
// shared export documents importable by anyone.
type Importer struct {
	db *gorm.DB
}

func NewImporter(db *gorm.DB) *Importer {
	return &Importer{db: db}
}

// Import upserts every record of doc on behalf of user.
func (i *Importer) Import(ctx context.Context, user *models.User, doc *Document) error {
	if doc == nil {
		return nil
	}
	return i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := importUsers(tx, user, doc.Users); err != nil {
			return err
		}
		if err := importCategories(tx, user, doc.Categories); err != nil {
			return err
		}
		if err := importCollections(tx, user, doc.Collections); err != nil {
			return err
		}
		if err := importCollectionDetails(tx, user, doc.CollectionDetails); err != nil {
			return err
		}
		if err := importPosts(tx, user, doc.Posts); err != nil {
			return err
		}
		if err := importComments(tx, user, doc.Comments); err != nil {
			return err
		}
		if err := importAttachments(tx, user, doc.Attachments); err != nil {
			return err
		}
		return importLikes(tx, user, doc.Likes)
	})
}

// importUsers updates the caller's own profile row and nothing else. A
// document can never impersonate or overwrite another account.
func importUsers(tx *gorm.DB, user *models.User, recs []UserRecord) error {
	for _, rec := range recs {
		if rec.ID != user.ID {
			slog.Info("import: skipping foreign user record", "record_id", rec.ID)
			continue
		}
		updates := map[string]any{}
		if rec.Username != "" {
			updates["username"] = rec.Username
		}
		if rec.Email != "" {
			updates["email"] = rec.Email
		}
		if len(updates) == 0 {
			continue
		}
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("import users: %w", err)
		}
	}
	return nil
}

func importCategories(tx *gorm.DB, user *models.User, recs []CategoryRecord) error {
	for _, rec := range recs {
		if rec.ID == "" {
			return fmt.Errorf("import categories: record without id: %w", ErrMalformedRecord)
		}

		var existing models.Category
		err := tx.Where("id = ?", rec.ID).First(&existing).Error
		switch {
		case err == nil:
			if existing.UserID != user.ID {
				slog.Info("import: skipping category owned by another user", "id", rec.ID)
				continue
			}
			updates := map[string]any{
				"name":              rec.Name,
				"emoji":             rec.Emoji,
				"knowledge_base_id": rec.KnowledgeBaseID,
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return fmt.Errorf("import categories: update %s: %w", rec.ID, err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// A category with the same (user, name) but a different id is
			// reconciled by update so the uniqueness constraint holds.
			var byName models.Category
			nameErr := tx.Where("user_id = ? AND name = ?", user.ID, rec.Name).First(&byName).Error
			if nameErr == nil {
				updates := map[string]any{
					"emoji":             rec.Emoji,
					"knowledge_base_id": rec.KnowledgeBaseID,
				}
				if err := tx.Model(&byName).Updates(updates).Error; err != nil {
					return fmt.Errorf("import categories: reconcile %s: %w", rec.Name, err)
				}
				continue
			}
			if !errors.Is(nameErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("import categories: %w", nameErr)
			}
			cat := models.Category{
				ID:              rec.ID,
				UserID:          user.ID,
				Name:            rec.Name,
				Emoji:           rec.Emoji,
				KnowledgeBaseID: rec.KnowledgeBaseID,
			}
			if err := tx.Create(&cat).Error; err != nil {
				return fmt.Errorf("import categories: create %s: %w", rec.ID, err)
			}
		default:
			return fmt.Errorf("import categories: %w", err)
		}
	}
	return nil
}

func importCollections(tx *gorm.DB, user *models.User, recs []CollectionRecord) error {
	for _, rec := range recs {
		if rec.ID == "" {
			return fmt.Errorf("import collections: record without id: %w", ErrMalformedRecord)
		}
		if rec.CategoryID != nil && *rec.CategoryID != "" {
			var category models.Category
			if err := tx.Where("id = ?", *rec.CategoryID).First(&category).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("import collections: %s: category %q: %w", rec.ID, *rec.CategoryID, ErrMissingReference)
				}
				return fmt.Errorf("import collections: %w", err)
			}
			if category.UserID != user.ID {
				slog.Info("import: skipping collection referencing a foreign category", "id", rec.ID)
				continue
			}
		}

		var existing models.Collection
		err := tx.Where("id = ?", rec.ID).First(&existing).Error
		switch {
		case err == nil:
			if existing.UserID != user.ID {
				slog.Info("import: skipping collection owned by another user", "id", rec.ID)
				continue
			}
			updates := map[string]any{
				"category_id": rec.CategoryID,
				"tags":        rec.Tags,
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return fmt.Errorf("import collections: update %s: %w", rec.ID, err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			col := models.Collection{
				ID:         rec.ID,
				UserID:     user.ID,
				CategoryID: rec.CategoryID,
				Tags:       rec.Tags,
				CreatedAt:  ts(rec.CreatedAt),
			}
			if err := tx.Create(&col).Error; err != nil {
				return fmt.Errorf("import collections: create %s: %w", rec.ID, err)
			}
		default:
			return fmt.Errorf("import collections: %w", err)
		}
	}
	return nil
}

func importCollectionDetails(tx *gorm.DB, user *models.User, recs []CollectionDetailRecord) error {
	for _, rec := range recs {
		if rec.ID == "" {
			return fmt.Errorf("import collection details: record without id: %w", ErrMalformedRecord)
		}

		var parent models.Collection
		if err := tx.Where("id = ?", rec.CollectionID).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("import collection details: %s: collection %q: %w", rec.ID, rec.CollectionID, ErrMissingReference)
			}
			return fmt.Errorf("import collection details: %w", err)
		}
		if parent.UserID != user.ID {
			slog.Info("import: skipping detail of a foreign collection", "id", rec.ID)
			continue
		}

		value := datatypes.JSON(rec.Value)

		var existing models.CollectionDetail
		err := tx.Where("id = ?", rec.ID).First(&existing).Error
		switch {
		case err == nil:
			updates := map[string]any{"key": rec.Key, "value": value}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return fmt.Errorf("import collection details: update %s: %w", rec.ID, err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Same (collection, key) under a different id: update in place.
			var byKey models.CollectionDetail
			keyErr := tx.Where("collection_id = ? AND `key` = ?", rec.CollectionID, rec.Key).First(&byKey).Error
			if keyErr == nil {
				if err := tx.Model(&byKey).Updates(map[string]any{"value": value}).Error; err != nil {
					return fmt.Errorf("import collection details: reconcile %s: %w", rec.Key, err)
				}
				continue
			}
			if !errors.Is(keyErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("import collection details: %w", keyErr)
			}
			detail := models.CollectionDetail{
				ID:           rec.ID,
				CollectionID: rec.CollectionID,
				Key:          rec.Key,
				Value:        value,
				CreatedAt:    ts(rec.CreatedAt),
			}
			if err := tx.Create(&detail).Error; err != nil {
				return fmt.Errorf("import collection details: create %s: %w", rec.ID, err)
			}
		default:
			return fmt.Errorf("import collection details: %w", err)
		}
	}
	return nil
}

func importPosts(tx *gorm.DB, user *models.User, recs []PostRecord) error {
	for _, rec := range recs {
		if rec.ID == "" {
			return fmt.Errorf("import posts: record without id: %w", ErrMalformedRecord)
		}

		var refer models.Collection
		if err := tx.Where("id = ?", rec.CollectionID).First(&refer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("import posts: %s: collection %q: %w", rec.ID, rec.CollectionID, ErrMissingReference)
			}
			return fmt.Errorf("import posts: %w", err)
		}
		if refer.UserID != user.ID {
			slog.Info("import: skipping post referring to a foreign collection", "id", rec.ID)
			continue
		}

		var existing models.Post
		err := tx.Where("id = ?", rec.ID).First(&existing).Error
		switch {
		case err == nil:
			if existing.UserID != user.ID {
				slog.Info("import: skipping post owned by another user", "id", rec.ID)
				continue
			}
			updates := map[string]any{
				"description":         nullable(rec.Content),
				"refer_collection_id": rec.CollectionID,
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return fmt.Errorf("import posts: update %s: %w", rec.ID, err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			post := models.Post{
				ID:                rec.ID,
				UserID:            user.ID,
				ReferCollectionID: rec.CollectionID,
				Description:       nullable(rec.Content),
				CreatedAt:         ts(rec.CreatedAt),
			}
			if err := tx.Create(&post).Error; err != nil {
				return fmt.Errorf("import posts: create %s: %w", rec.ID, err)
			}
		default:
			return fmt.Errorf("import posts: %w", err)
		}
	}
	return nil
}

// importComments writes the caller's own comments only. Existing comments
// authored by someone else are left exactly as they are, which preserves
// community threads on a same-system restore; a document can never create a
// comment attributed to another user.
func importComments(tx *gorm.DB, user *models.User, recs []CommentRecord) error {
	for _, rec := range recs {
		if rec.ID == "" {
			return fmt.Errorf("import comments: record without id: %w", ErrMalformedRecord)
		}
		if err := mustExist(tx, &models.Post{}, rec.PostID, "post"); err != nil {
			return fmt.Errorf("import comments: %s: %w", rec.ID, err)
		}

		var existing models.Comment
		err := tx.Where("id = ?", rec.ID).First(&existing).Error
		switch {
		case err == nil:
			if existing.UserID != user.ID {
				slog.Info("import: skipping comment owned by another user", "id", rec.ID)
				continue
			}
			if err := tx.Model(&existing).Updates(map[string]any{"content": rec.Content}).Error; err != nil {
				return fmt.Errorf("import comments: update %s: %w", rec.ID, err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if rec.UserID != "" && rec.UserID != user.ID {
				slog.Info("import: skipping comment authored by another user", "id", rec.ID, "user_id", rec.UserID)
				continue
			}
			comment := models.Comment{
				ID:        rec.ID,
				PostID:    rec.PostID,
				UserID:    user.ID,
				Content:   rec.Content,
				CreatedAt: ts(rec.CreatedAt),
			}
			if err := tx.Create(&comment).Error; err != nil {
				return fmt.Errorf("import comments: create %s: %w", rec.ID, err)
			}
		default:
			return fmt.Errorf("import comments: %w", err)
		}
	}
	return nil
}

func importAttachments(tx *gorm.DB, user *models.User, recs []AttachmentRecord) error {
	for _, rec := range recs {
		if rec.ID == "" {
			return fmt.Errorf("import attachments: record without id: %w", ErrMalformedRecord)
		}

		var existing models.Attachment
		err := tx.Where("id = ?", rec.ID).First(&existing).Error
		switch {
		case err == nil:
			if existing.UserID != user.ID {
				slog.Info("import: skipping attachment owned by another user", "id", rec.ID)
				continue
			}
			updates := map[string]any{
				"url":         rec.FilePath,
				"description": rec.Description,
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return fmt.Errorf("import attachments: update %s: %w", rec.ID, err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			att := models.Attachment{
				ID:          rec.ID,
				UserID:      user.ID,
				URL:         rec.FilePath,
				Description: rec.Description,
				CreatedAt:   ts(rec.CreatedAt),
			}
			if err := tx.Create(&att).Error; err != nil {
				return fmt.Errorf("import attachments: create %s: %w", rec.ID, err)
			}
		default:
			return fmt.Errorf("import attachments: %w", err)
		}
	}
	return nil
}

// importLikes inserts only what is absent. A like has no mutable payload
// beyond its identity, so a duplicate submission is simply dropped.
func importLikes(tx *gorm.DB, user *models.User, recs []LikeRecord) error {
	for _, rec := range recs {
		switch rec.AssetType {
		case models.AssetTypePost:
			if err := mustExist(tx, &models.Post{}, rec.AssetID, "post"); err != nil {
				return fmt.Errorf("import likes: %w", err)
			}
		case models.AssetTypeComment:
			if err := mustExist(tx, &models.Comment{}, rec.AssetID, "comment"); err != nil {
				return fmt.Errorf("import likes: %w", err)
			}
		default:
			return fmt.Errorf("import likes: asset type %q: %w", rec.AssetType, ErrMalformedRecord)
		}

		var n int64
		err := tx.Model(&models.Like{}).
			Where("user_id = ? AND asset_id = ? AND asset_type = ?", user.ID, rec.AssetID, rec.AssetType).
			Count(&n).Error
		if err != nil {
			return fmt.Errorf("import likes: %w", err)
		}
		if n > 0 {
			continue
		}
		if rec.ID != "" {
			if err := tx.Model(&models.Like{}).Where("id = ?", rec.ID).Count(&n).Error; err != nil {
				return fmt.Errorf("import likes: %w", err)
			}
			if n > 0 {
				continue
			}
		}

		like := models.Like{
			ID:        rec.ID,
			UserID:    user.ID,
			AssetID:   rec.AssetID,
			AssetType: rec.AssetType,
			CreatedAt: ts(rec.CreatedAt),
		}
		if err := tx.Create(&like).Error; err != nil {
			return fmt.Errorf("import likes: create: %w", err)
		}
	}
	return nil
}

func mustExist(tx *gorm.DB, model any, id, kind string) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", kind, id, ErrMissingReference)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func ts(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
