// Package migration implements the export/import pipeline: one user's
// entity graph serialized to a portable document and reconstructed
// idempotently on a target system via upserts keyed by stable ids.
package migration

import (
	"encoding/json"
	"time"
)

// SchemaVersion identifies the document layout. The field set is
// append-only: new fields get safe defaults, published fields are never
// removed or repurposed, and importers ignore fields they do not know.
const SchemaVersion = 1

// Document is the portable serialized form of one user's owned entity
// graph. Every top-level key is always present on export; on import any
// key may be omitted, meaning "nothing of that type to import".
type Document struct {
	SchemaVersion     int                      `json:"schema_version"`
	Users             []UserRecord             `json:"users"`
	Categories        []CategoryRecord         `json:"categories"`
	Collections       []CollectionRecord       `json:"collections"`
	CollectionDetails []CollectionDetailRecord `json:"collection_details"`
	Posts             []PostRecord             `json:"posts"`
	Comments          []CommentRecord          `json:"comments"`
	Attachments       []AttachmentRecord       `json:"attachments"`
	Likes             []LikeRecord             `json:"likes"`

	// Knowledge-base documents live in the external vector store, not in
	// the relational graph. The key stays in the document so consumers can
	// rely on its presence, but it is always an empty placeholder here.
	KnowledgeDocuments []json.RawMessage `json:"knowledge_documents"`
}

// UserRecord carries profile data only. The credential hash never crosses
// the export boundary: a document must not be able to rewrite a password.
type UserRecord struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`  // no such column; defaults to username
	Bio       string     `json:"bio"`        // no such column; always ""
	AvatarURL string     `json:"avatar_url"` // avatar is an attachment ref, not a URL; always ""
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// CategoryRecord keeps the null timestamps of the storage schema, which
// never grew created_at/updated_at columns for categories.
type CategoryRecord struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"` // no such column; always ""
	Emoji           *string    `json:"emoji"`
	KnowledgeBaseID *string    `json:"knowledge_base_id"`
	UserID          string     `json:"user_id"`
	CreatedAt       *time.Time `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at"`
}

type CollectionRecord struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`        // no such column; defaults to "Collection <id>"
	Description string     `json:"description"` // no such column; always ""
	CategoryID  *string    `json:"category_id"`
	Tags        string     `json:"tags"`
	UserID      string     `json:"user_id"`
	IsPublic    bool       `json:"is_public"` // no such column; always false
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

type CollectionDetailRecord struct {
	ID           string          `json:"id"`
	CollectionID string          `json:"collection_id"`
	Key          string          `json:"key"`
	Value        json.RawMessage `json:"value"`
	CreatedAt    *time.Time      `json:"created_at"`
	UpdatedAt    *time.Time      `json:"updated_at"`
}

type PostRecord struct {
	ID           string     `json:"id"`
	PostID       string     `json:"post_id"` // legacy alias of id, kept for old consumers
	Title        string     `json:"title"`   // no such column; always ""
	Content      string     `json:"content"` // maps from description
	Summary      string     `json:"summary"` // no such column; always ""
	UserID       string     `json:"user_id"`
	CollectionID string     `json:"collection_id"` // maps from refer_collection_id
	IsPrivate    bool       `json:"is_private"`    // no such column; always false
	CreatedAt    *time.Time `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

type CommentRecord struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	UserID    string     `json:"user_id"`
	PostID    string     `json:"post_id"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type AttachmentRecord struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`  // no such column; defaults to id
	FilePath    string     `json:"file_path"` // maps from url
	FileSize    int64      `json:"file_size"` // no such column; always 0
	MimeType    string     `json:"mime_type"` // no such column; always ""
	Description *string    `json:"description"`
	UserID      string     `json:"user_id"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"` // no such column; mirrors created_at
}

type LikeRecord struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	AssetID   string     `json:"asset_id"`
	AssetType string     `json:"asset_type"`
	CreatedAt *time.Time `json:"created_at"`
}
