package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Asset types a Like may point at. The target table is resolved by this
// tag at the application layer; there is no foreign key behind asset_id.
const (
	AssetTypePost    = "post"
	AssetTypeComment = "comment"
)

type User struct {
	ID                 string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Username           string    `gorm:"size:255;not null;uniqueIndex:uq_users_username" json:"username"`
	Email              string    `gorm:"size:255;not null;uniqueIndex:uq_users_email" json:"email"`
	PasswordHash       string    `gorm:"size:255;not null" json:"-"`
	AvatarAttachmentID *string   `gorm:"type:varchar(36)" json:"avatar_attachment_id"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Category has no timestamp columns. That is historical schema drift the
// export document papers over with nulls.
type Category struct {
	ID              string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID          string  `gorm:"type:varchar(36);not null;uniqueIndex:uq_categories_user_name,priority:1" json:"user_id"`
	Name            string  `gorm:"size:50;not null;uniqueIndex:uq_categories_user_name,priority:2" json:"name"`
	Emoji           *string `gorm:"size:10" json:"emoji"`
	KnowledgeBaseID *string `gorm:"type:varchar(36)" json:"knowledge_base_id"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type Collection struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	CategoryID *string   `gorm:"type:varchar(36);index" json:"category_id"`
	Tags       string    `gorm:"size:255" json:"tags"` // comma-joined
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Collection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type CollectionDetail struct {
	ID           string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	CollectionID string         `gorm:"type:varchar(36);not null;uniqueIndex:uq_collection_details_collection_key,priority:1" json:"collection_id"`
	Key          string         `gorm:"size:255;not null;uniqueIndex:uq_collection_details_collection_key,priority:2" json:"key"`
	Value        datatypes.JSON `json:"value"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (d *CollectionDetail) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// Attachment owns file bytes in the blob store; its URL is an opaque
// string from the application's point of view. No updated_at column.
type Attachment struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	URL         string    `gorm:"size:500;not null" json:"url"`
	Description *string   `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

type CollectionAttachment struct {
	ID           string `gorm:"type:varchar(36);primaryKey" json:"id"`
	CollectionID string `gorm:"type:varchar(36);not null;uniqueIndex:uq_collection_attachments,priority:1" json:"collection_id"`
	AttachmentID string `gorm:"type:varchar(36);not null;uniqueIndex:uq_collection_attachments,priority:2" json:"attachment_id"`
}

func (ca *CollectionAttachment) BeforeCreate(tx *gorm.DB) error {
	if ca.ID == "" {
		ca.ID = uuid.NewString()
	}
	return nil
}

// Post publishes one of the user's collections to the community.
type Post struct {
	ID                string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID            string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	ReferCollectionID string    `gorm:"type:varchar(36);not null;index" json:"refer_collection_id"`
	Description       *string   `gorm:"type:text" json:"description"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type Comment struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	PostID    string    `gorm:"type:varchar(36);not null;index" json:"post_id"`
	UserID    string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Like points at a post or a comment depending on AssetType.
type Like struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;uniqueIndex:uq_likes_user_asset,priority:1" json:"user_id"`
	AssetID   string    `gorm:"type:varchar(36);not null;uniqueIndex:uq_likes_user_asset,priority:2" json:"asset_id"`
	AssetType string    `gorm:"size:10;not null;uniqueIndex:uq_likes_user_asset,priority:3" json:"asset_type"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (l *Like) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// All returns every model in one slice for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Category{},
		&Collection{},
		&CollectionDetail{},
		&Attachment{},
		&CollectionAttachment{},
		&Post{},
		&Comment{},
		&Like{},
	}
}
