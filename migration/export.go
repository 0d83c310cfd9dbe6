package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"memora/models"
)

// Exporter reads one user's owned subgraph and projects it into a
// Document. It never writes.
type Exporter struct {
	db *gorm.DB
}

func NewExporter(db *gorm.DB) *Exporter {
	return &Exporter{db: db}
}

// Export fetches the user's records in dependency order and serializes
// them. Any read error aborts the whole export; a partial document is
// never returned.
func (e *Exporter) Export(ctx context.Context, user *models.User) (*Document, error) {
	db := e.db.WithContext(ctx)

	var categories []models.Category
	if err := db.Where("user_id = ?", user.ID).Order("id").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("export categories: %w", err)
	}

	var collections []models.Collection
	if err := db.Where("user_id = ?", user.ID).Order("id").Find(&collections).Error; err != nil {
		return nil, fmt.Errorf("export collections: %w", err)
	}

	collectionIDs := make([]string, 0, len(collections))
	for _, c := range collections {
		collectionIDs = append(collectionIDs, c.ID)
	}

	var details []models.CollectionDetail
	if len(collectionIDs) > 0 {
		if err := db.Where("collection_id IN ?", collectionIDs).Order("id").Find(&details).Error; err != nil {
			return nil, fmt.Errorf("export collection details: %w", err)
		}
	}

	var posts []models.Post
	if err := db.Where("user_id = ?", user.ID).Order("id").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("export posts: %w", err)
	}

	postIDs := make([]string, 0, len(posts))
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
	}

	var comments []models.Comment
	if len(postIDs) > 0 {
		if err := db.Where("post_id IN ?", postIDs).Order("id").Find(&comments).Error; err != nil {
			return nil, fmt.Errorf("export comments: %w", err)
		}
	}

	var attachments []models.Attachment
	if err := db.Where("user_id = ?", user.ID).Order("id").Find(&attachments).Error; err != nil {
		return nil, fmt.Errorf("export attachments: %w", err)
	}

	var likes []models.Like
	if err := db.Where("user_id = ?", user.ID).Order("id").Find(&likes).Error; err != nil {
		return nil, fmt.Errorf("export likes: %w", err)
	}

	doc := &Document{
		SchemaVersion:      SchemaVersion,
		Users:              []UserRecord{projectUser(user)},
		Categories:         make([]CategoryRecord, 0, len(categories)),
		Collections:        make([]CollectionRecord, 0, len(collections)),
		CollectionDetails:  make([]CollectionDetailRecord, 0, len(details)),
		Posts:              make([]PostRecord, 0, len(posts)),
		Comments:           make([]CommentRecord, 0, len(comments)),
		Attachments:        make([]AttachmentRecord, 0, len(attachments)),
		Likes:              make([]LikeRecord, 0, len(likes)),
		KnowledgeDocuments: []json.RawMessage{},
	}

	for _, c := range categories {
		doc.Categories = append(doc.Categories, CategoryRecord{
			ID:              c.ID,
			Name:            c.Name,
			Description:     "",
			Emoji:           c.Emoji,
			KnowledgeBaseID: c.KnowledgeBaseID,
			UserID:          c.UserID,
		})
	}
	for _, c := range collections {
		doc.Collections = append(doc.Collections, CollectionRecord{
			ID:          c.ID,
			Name:        "Collection " + c.ID,
			Description: "",
			CategoryID:  c.CategoryID,
			Tags:        c.Tags,
			UserID:      c.UserID,
			IsPublic:    false,
			CreatedAt:   utc(c.CreatedAt),
			UpdatedAt:   utc(c.UpdatedAt),
		})
	}
	for _, d := range details {
		doc.CollectionDetails = append(doc.CollectionDetails, CollectionDetailRecord{
			ID:           d.ID,
			CollectionID: d.CollectionID,
			Key:          d.Key,
			Value:        json.RawMessage(d.Value),
			CreatedAt:    utc(d.CreatedAt),
			UpdatedAt:    utc(d.UpdatedAt),
		})
	}
	for _, p := range posts {
		content := ""
		if p.Description != nil {
			content = *p.Description
		}
		doc.Posts = append(doc.Posts, PostRecord{
			ID:           p.ID,
			PostID:       p.ID,
			Title:        "",
			Content:      content,
			Summary:      "",
			UserID:       p.UserID,
			CollectionID: p.ReferCollectionID,
			IsPrivate:    false,
			CreatedAt:    utc(p.CreatedAt),
			UpdatedAt:    utc(p.UpdatedAt),
		})
	}
	for _, c := range comments {
		doc.Comments = append(doc.Comments, CommentRecord{
			ID:        c.ID,
			Content:   c.Content,
			UserID:    c.UserID,
			PostID:    c.PostID,
			CreatedAt: utc(c.CreatedAt),
			UpdatedAt: utc(c.UpdatedAt),
		})
	}
	for _, a := range attachments {
		doc.Attachments = append(doc.Attachments, AttachmentRecord{
			ID:          a.ID,
			Filename:    a.ID,
			FilePath:    a.URL,
			FileSize:    0,
			MimeType:    "",
			Description: a.Description,
			UserID:      a.UserID,
			CreatedAt:   utc(a.CreatedAt),
			UpdatedAt:   utc(a.CreatedAt),
		})
	}
	for _, l := range likes {
		doc.Likes = append(doc.Likes, LikeRecord{
			ID:        l.ID,
			UserID:    l.UserID,
			AssetID:   l.AssetID,
			AssetType: l.AssetType,
			CreatedAt: utc(l.CreatedAt),
		})
	}

	return doc, nil
}

func projectUser(u *models.User) UserRecord {
	return UserRecord{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.Username,
		Bio:       "",
		AvatarURL: "",
		CreatedAt: utc(u.CreatedAt),
		UpdatedAt: utc(u.UpdatedAt),
	}
}

func utc(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
