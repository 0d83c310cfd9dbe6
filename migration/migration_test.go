package migration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"memora/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

// seedGraph creates one full ownership chain for user: a category, a
// collection in it, a detail, a post, a comment, an attachment and a like
// on the post. Returns the collection id.
func seedGraph(t *testing.T, db *gorm.DB, user *models.User) *models.Collection {
	t.Helper()

	category := models.Category{UserID: user.ID, Name: "recipes"}
	require.NoError(t, db.Create(&category).Error)

	collection := models.Collection{UserID: user.ID, CategoryID: &category.ID, Tags: "food,easy"}
	require.NoError(t, db.Create(&collection).Error)

	detail := models.CollectionDetail{
		CollectionID: collection.ID,
		Key:          "content",
		Value:        datatypes.JSON(`{"text":"braised pork"}`),
	}
	require.NoError(t, db.Create(&detail).Error)

	desc := "my favourite"
	post := models.Post{UserID: user.ID, ReferCollectionID: collection.ID, Description: &desc}
	require.NoError(t, db.Create(&post).Error)

	comment := models.Comment{PostID: post.ID, UserID: user.ID, Content: "looks great"}
	require.NoError(t, db.Create(&comment).Error)

	attachment := models.Attachment{UserID: user.ID, URL: "http://blob/memora/cover.png"}
	require.NoError(t, db.Create(&attachment).Error)

	like := models.Like{UserID: user.ID, AssetID: post.ID, AssetType: models.AssetTypePost}
	require.NoError(t, db.Create(&like).Error)

	return &collection
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestExportScopeIsolation(t *testing.T) {
	db := newTestDB(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	seedGraph(t, db, alice)
	seedGraph(t, db, bob)

	doc, err := NewExporter(db).Export(context.Background(), alice)
	require.NoError(t, err)

	require.Len(t, doc.Users, 1)
	assert.Equal(t, alice.ID, doc.Users[0].ID)

	for _, c := range doc.Categories {
		assert.Equal(t, alice.ID, c.UserID)
	}
	for _, c := range doc.Collections {
		assert.Equal(t, alice.ID, c.UserID)
	}
	for _, p := range doc.Posts {
		assert.Equal(t, alice.ID, p.UserID)
	}
	for _, a := range doc.Attachments {
		assert.Equal(t, alice.ID, a.UserID)
	}
	for _, l := range doc.Likes {
		assert.Equal(t, alice.ID, l.UserID)
	}
	assert.Len(t, doc.Categories, 1)
	assert.Len(t, doc.Collections, 1)
	assert.Len(t, doc.Likes, 1)
}

func TestExportEmptyGraph(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "empty")

	doc, err := NewExporter(db).Export(context.Background(), user)
	require.NoError(t, err)

	// Consumers rely on key presence: empty types serialize as [], never null.
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"categories":[]`)
	assert.Contains(t, string(raw), `"likes":[]`)
	assert.Contains(t, string(raw), `"knowledge_documents":[]`)
	assert.Equal(t, SchemaVersion, doc.SchemaVersion)
}

func TestExportProjectsDriftedFields(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "drift")
	seedGraph(t, db, user)

	doc, err := NewExporter(db).Export(context.Background(), user)
	require.NoError(t, err)

	require.Len(t, doc.Users, 1)
	assert.Equal(t, user.Username, doc.Users[0].FullName)
	assert.Equal(t, "", doc.Users[0].Bio)

	require.Len(t, doc.Categories, 1)
	assert.Nil(t, doc.Categories[0].CreatedAt)

	require.Len(t, doc.Posts, 1)
	assert.Equal(t, doc.Posts[0].ID, doc.Posts[0].PostID)
	assert.Equal(t, "my favourite", doc.Posts[0].Content)

	require.Len(t, doc.Attachments, 1)
	assert.Equal(t, doc.Attachments[0].ID, doc.Attachments[0].Filename)
	assert.Equal(t, "http://blob/memora/cover.png", doc.Attachments[0].FilePath)
}

func TestRoundTripIntoFreshStore(t *testing.T) {
	src := newTestDB(t)
	user := createUser(t, src, "mover")
	seedGraph(t, src, user)

	doc, err := NewExporter(src).Export(context.Background(), user)
	require.NoError(t, err)

	dst := newTestDB(t)
	clone := models.User{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: "y",
	}
	require.NoError(t, dst.Create(&clone).Error)

	require.NoError(t, NewImporter(dst).Import(context.Background(), &clone, doc))

	assert.Equal(t, int64(1), count(t, dst, &models.Category{}))
	assert.Equal(t, int64(1), count(t, dst, &models.Collection{}))
	assert.Equal(t, int64(1), count(t, dst, &models.CollectionDetail{}))
	assert.Equal(t, int64(1), count(t, dst, &models.Post{}))
	assert.Equal(t, int64(1), count(t, dst, &models.Comment{}))
	assert.Equal(t, int64(1), count(t, dst, &models.Attachment{}))
	assert.Equal(t, int64(1), count(t, dst, &models.Like{}))

	// Exporting from the target yields the same document content.
	again, err := NewExporter(dst).Export(context.Background(), &clone)
	require.NoError(t, err)
	assert.Equal(t, doc.Categories, again.Categories)
	assert.Equal(t, doc.Collections[0].ID, again.Collections[0].ID)
	assert.Equal(t, doc.Collections[0].Tags, again.Collections[0].Tags)
	assert.Equal(t, doc.CollectionDetails[0].Key, again.CollectionDetails[0].Key)
	assert.JSONEq(t, string(doc.CollectionDetails[0].Value), string(again.CollectionDetails[0].Value))
	assert.Equal(t, doc.Posts[0].Content, again.Posts[0].Content)
	assert.Equal(t, doc.Comments[0].Content, again.Comments[0].Content)
	assert.Equal(t, doc.Attachments[0].FilePath, again.Attachments[0].FilePath)
	assert.Equal(t, doc.Likes[0].AssetID, again.Likes[0].AssetID)
}

func TestImportIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "idem")
	seedGraph(t, db, user)

	doc, err := NewExporter(db).Export(context.Background(), user)
	require.NoError(t, err)

	imp := NewImporter(db)
	require.NoError(t, imp.Import(context.Background(), user, doc))
	require.NoError(t, imp.Import(context.Background(), user, doc))

	assert.Equal(t, int64(1), count(t, db, &models.Category{}))
	assert.Equal(t, int64(1), count(t, db, &models.Collection{}))
	assert.Equal(t, int64(1), count(t, db, &models.CollectionDetail{}))
	assert.Equal(t, int64(1), count(t, db, &models.Post{}))
	assert.Equal(t, int64(1), count(t, db, &models.Comment{}))
	assert.Equal(t, int64(1), count(t, db, &models.Like{}))
}

func TestImportUpdatesCategoryByKey(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "renamer")
	collection := seedGraph(t, db, user)

	doc, err := NewExporter(db).Export(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, doc.Categories, 1)

	var before models.Collection
	require.NoError(t, db.Where("id = ?", collection.ID).First(&before).Error)

	time.Sleep(10 * time.Millisecond)
	doc.Categories[0].Name = "meals"
	require.NoError(t, NewImporter(db).Import(context.Background(), user, doc))

	var categories []models.Category
	require.NoError(t, db.Find(&categories).Error)
	require.Len(t, categories, 1)
	assert.Equal(t, doc.Categories[0].ID, categories[0].ID)
	assert.Equal(t, "meals", categories[0].Name)

	// Still exactly one collection referencing the renamed category, with a
	// refreshed updated_at.
	var collections []models.Collection
	require.NoError(t, db.Where("category_id = ?", categories[0].ID).Find(&collections).Error)
	require.Len(t, collections, 1)
	assert.Equal(t, collection.ID, collections[0].ID)
	assert.True(t, collections[0].UpdatedAt.After(before.UpdatedAt))
}

func TestImportSkipsForeignUserRecord(t *testing.T) {
	db := newTestDB(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	doc := &Document{
		Users: []UserRecord{{
			ID:       bob.ID,
			Username: "hijacked",
			Email:    "evil@example.com",
		}},
	}
	require.NoError(t, NewImporter(db).Import(context.Background(), alice, doc))

	var fresh models.User
	require.NoError(t, db.Where("id = ?", bob.ID).First(&fresh).Error)
	assert.Equal(t, "bob", fresh.Username)
	assert.Equal(t, "bob@example.com", fresh.Email)
}

func TestImportUpdatesOwnUserRecord(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "renate")

	doc := &Document{
		Users: []UserRecord{{ID: user.ID, Username: "renate", Email: "new@example.com"}},
	}
	require.NoError(t, NewImporter(db).Import(context.Background(), user, doc))

	var fresh models.User
	require.NoError(t, db.Where("id = ?", user.ID).First(&fresh).Error)
	assert.Equal(t, "new@example.com", fresh.Email)
}

func TestImportRollsBackOnMissingParent(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "atomic")

	doc := &Document{
		Categories: []CategoryRecord{{ID: "cat-1", Name: "valid", UserID: user.ID}},
		Comments: []CommentRecord{{
			ID:      "com-1",
			Content: "orphan",
			UserID:  user.ID,
			PostID:  "no-such-post",
		}},
	}

	err := NewImporter(db).Import(context.Background(), user, doc)
	require.ErrorIs(t, err, ErrMissingReference)

	// The category written before the failing comment must not survive.
	assert.Equal(t, int64(0), count(t, db, &models.Category{}))
	assert.Equal(t, int64(0), count(t, db, &models.Comment{}))
}

func TestImportRejectsUnknownAssetType(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "likes")

	doc := &Document{
		Likes: []LikeRecord{{UserID: user.ID, AssetID: "x", AssetType: "reaction"}},
	}
	err := NewImporter(db).Import(context.Background(), user, doc)
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestImportDropsDuplicateLikes(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "fan")
	seedGraph(t, db, user)

	doc, err := NewExporter(db).Export(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, doc.Likes, 1)

	// Same like twice in one document, plus one already present in the store.
	doc.Likes = append(doc.Likes, doc.Likes[0])
	require.NoError(t, NewImporter(db).Import(context.Background(), user, doc))

	assert.Equal(t, int64(1), count(t, db, &models.Like{}))
}

func TestImportAcceptsPartialDocument(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "partial")

	// Only categories; every other top-level key omitted.
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(`{"categories":[{"id":"cat-9","name":"solo","user_id":"whoever"}]}`), &doc))
	require.NoError(t, NewImporter(db).Import(context.Background(), user, &doc))

	var cat models.Category
	require.NoError(t, db.Where("id = ?", "cat-9").First(&cat).Error)
	assert.Equal(t, "solo", cat.Name)
	assert.Equal(t, user.ID, cat.UserID, "ownership is forced to the caller")
}

func TestImportIgnoresUnknownFields(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "future")

	raw := `{"schema_version": 7, "categories":[{"id":"cat-2","name":"new","user_id":"u","shiny_new_field":true}], "brand_new_section":[{"a":1}]}`
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	require.NoError(t, NewImporter(db).Import(context.Background(), user, &doc))

	assert.Equal(t, int64(1), count(t, db, &models.Category{}))
}

func TestImportReassignsOwnershipOfSharedDocument(t *testing.T) {
	src := newTestDB(t)
	bob := createUser(t, src, "bob")
	seedGraph(t, src, bob)

	doc, err := NewExporter(src).Export(context.Background(), bob)
	require.NoError(t, err)

	dst := newTestDB(t)
	alice := createUser(t, dst, "alice")
	require.NoError(t, NewImporter(dst).Import(context.Background(), alice, doc))

	var categories []models.Category
	require.NoError(t, dst.Find(&categories).Error)
	require.Len(t, categories, 1)
	assert.Equal(t, alice.ID, categories[0].UserID)

	var collections []models.Collection
	require.NoError(t, dst.Find(&collections).Error)
	require.Len(t, collections, 1)
	assert.Equal(t, alice.ID, collections[0].UserID)

	// Bob's user row was not created on the target.
	assert.Equal(t, int64(1), count(t, dst, &models.User{}))
}

func TestImportSkipsCollectionReferencingForeignCategory(t *testing.T) {
	db := newTestDB(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	bobCategory := models.Category{UserID: bob.ID, Name: "bobs"}
	require.NoError(t, db.Create(&bobCategory).Error)

	// Creating a collection attached to someone else's category is refused.
	doc := &Document{
		Collections: []CollectionRecord{{ID: "col-x", CategoryID: &bobCategory.ID, UserID: alice.ID}},
	}
	require.NoError(t, NewImporter(db).Import(context.Background(), alice, doc))
	assert.Equal(t, int64(0), count(t, db, &models.Collection{}))

	// So is moving an existing collection under it.
	aliceCategory := models.Category{UserID: alice.ID, Name: "mine"}
	require.NoError(t, db.Create(&aliceCategory).Error)
	existing := models.Collection{ID: "col-y", UserID: alice.ID, CategoryID: &aliceCategory.ID}
	require.NoError(t, db.Create(&existing).Error)

	doc = &Document{
		Collections: []CollectionRecord{{ID: "col-y", CategoryID: &bobCategory.ID, UserID: alice.ID}},
	}
	require.NoError(t, NewImporter(db).Import(context.Background(), alice, doc))

	var fresh models.Collection
	require.NoError(t, db.Where("id = ?", "col-y").First(&fresh).Error)
	require.NotNil(t, fresh.CategoryID)
	assert.Equal(t, aliceCategory.ID, *fresh.CategoryID)
}

func TestImportCannotFabricateForeignComment(t *testing.T) {
	db := newTestDB(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	seedGraph(t, db, alice)

	var post models.Post
	require.NoError(t, db.Where("user_id = ?", alice.ID).First(&post).Error)

	// A new comment record naming another existing user never gets written.
	doc := &Document{
		Comments: []CommentRecord{{
			ID:      "com-forged",
			PostID:  post.ID,
			UserID:  bob.ID,
			Content: "words put in bob's mouth",
		}},
	}
	require.NoError(t, NewImporter(db).Import(context.Background(), alice, doc))

	var n int64
	require.NoError(t, db.Model(&models.Comment{}).Where("id = ?", "com-forged").Count(&n).Error)
	assert.Zero(t, n)

	// An existing comment by another user keeps its content too.
	bobComment := models.Comment{ID: "com-bob", PostID: post.ID, UserID: bob.ID, Content: "original"}
	require.NoError(t, db.Create(&bobComment).Error)

	doc = &Document{
		Comments: []CommentRecord{{ID: "com-bob", PostID: post.ID, UserID: bob.ID, Content: "rewritten"}},
	}
	require.NoError(t, NewImporter(db).Import(context.Background(), alice, doc))

	var fresh models.Comment
	require.NoError(t, db.Where("id = ?", "com-bob").First(&fresh).Error)
	assert.Equal(t, "original", fresh.Content)
	assert.Equal(t, bob.ID, fresh.UserID)
}

func TestFreshStoreImportFailsForLikesOnForeignContent(t *testing.T) {
	src := newTestDB(t)
	alice := createUser(t, src, "alice")
	bob := createUser(t, src, "bob")
	seedGraph(t, src, bob)

	var bobPost models.Post
	require.NoError(t, src.Where("user_id = ?", bob.ID).First(&bobPost).Error)
	require.NoError(t, src.Create(&models.Like{
		UserID:    alice.ID,
		AssetID:   bobPost.ID,
		AssetType: models.AssetTypePost,
	}).Error)

	doc, err := NewExporter(src).Export(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, doc.Likes, 1, "likes on foreign content are part of the export")
	require.Empty(t, doc.Posts)

	// On a fresh system the liked post does not exist, so the import fails
	// whole rather than drop the like quietly.
	dst := newTestDB(t)
	clone := models.User{ID: alice.ID, Username: alice.Username, Email: alice.Email, PasswordHash: "y"}
	require.NoError(t, dst.Create(&clone).Error)

	err = NewImporter(dst).Import(context.Background(), &clone, doc)
	require.ErrorIs(t, err, ErrMissingReference)
	assert.Equal(t, int64(0), count(t, dst, &models.Like{}))
}

func TestImportReconcilesDetailByCollectionAndKey(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "detail")
	collection := seedGraph(t, db, user)

	// Same (collection, key) under a brand-new id must update, not duplicate.
	doc := &Document{
		CollectionDetails: []CollectionDetailRecord{{
			ID:           "different-id",
			CollectionID: collection.ID,
			Key:          "content",
			Value:        json.RawMessage(`{"text":"steamed fish"}`),
		}},
	}
	require.NoError(t, NewImporter(db).Import(context.Background(), user, doc))

	var details []models.CollectionDetail
	require.NoError(t, db.Where("collection_id = ?", collection.ID).Find(&details).Error)
	require.Len(t, details, 1)
	assert.JSONEq(t, `{"text":"steamed fish"}`, string(details[0].Value))
}
