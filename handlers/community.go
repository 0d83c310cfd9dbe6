package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"memora/models"
)

type createPostInput struct {
	ReferCollectionID string  `json:"refer_collection_id" binding:"required"`
	Description       *string `json:"description"`
}

func CreatePost(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var input createPostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "invalid parameters")
		return
	}

	var n int64
	if err := DB.Model(&models.Collection{}).
		Where("id = ? AND user_id = ?", input.ReferCollectionID, user.ID).
		Count(&n).Error; err != nil {
		fail(c, http.StatusInternalServerError, "failed to publish post")
		return
	}
	if n == 0 {
		fail(c, http.StatusNotFound, "collection not found or not yours")
		return
	}

	post := models.Post{
		UserID:            user.ID,
		ReferCollectionID: input.ReferCollectionID,
		Description:       input.Description,
	}
	if err := DB.Create(&post).Error; err != nil {
		slog.Error("create post", "user_id", user.ID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to publish post")
		return
	}

	ok(c, "post published", post)
}

func DeletePost(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id := c.Param("id")

	var post models.Post
	err := DB.Where("id = ? AND user_id = ?", id, user.ID).First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "post not found or not yours")
		} else {
			fail(c, http.StatusInternalServerError, "failed to delete post")
		}
		return
	}

	err = DB.Transaction(func(tx *gorm.DB) error {
		var commentIDs []string
		if err := tx.Model(&models.Comment{}).Where("post_id = ?", id).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Where("asset_id IN ? AND asset_type = ?", commentIDs, models.AssetTypeComment).
				Delete(&models.Like{}).Error; err != nil {
				return err
			}
			if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("asset_id = ? AND asset_type = ?", id, models.AssetTypePost).
			Delete(&models.Like{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		slog.Error("delete post", "id", id, "error", err)
		fail(c, http.StatusInternalServerError, "failed to delete post")
		return
	}

	ok(c, "post deleted", gin.H{"post_id": id})
}

type postView struct {
	ID                string                     `json:"id"`
	Description       *string                    `json:"description"`
	UserID            string                     `json:"user_id"`
	Username          string                     `json:"username"`
	ReferCollectionID string                     `json:"refer_collection_id"`
	CollectionDetails map[string]json.RawMessage `json:"collection_details"`
	CategoryID        *string                    `json:"category_id"`
	Tags              string                     `json:"tags"`
	LikesCount        int64                      `json:"likes_count"`
	CommentsCount     int64                      `json:"comments_count"`
	IsLikedByMe       bool                       `json:"is_liked_by_me"`
	CreatedAt         time.Time                  `json:"created_at"`
	UpdatedAt         time.Time                  `json:"updated_at"`
}

func ListPosts(c *gin.Context) {
	listPosts(c, false)
}

func ListMyPosts(c *gin.Context) {
	listPosts(c, true)
}

func listPosts(c *gin.Context, mineOnly bool) {
	user := currentUser(c)
	if user == nil {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := DB.Model(&models.Post{}).Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit)
	if mineOnly {
		query = query.Where("user_id = ?", user.ID)
	}

	var posts []models.Post
	if err := query.Find(&posts).Error; err != nil {
		fail(c, http.StatusInternalServerError, "failed to list posts")
		return
	}

	views := make([]postView, 0, len(posts))
	for _, post := range posts {
		view, err := buildPostView(c, user, &post)
		if err != nil {
			slog.Error("build post view", "post_id", post.ID, "error", err)
			fail(c, http.StatusInternalServerError, "failed to list posts")
			return
		}
		views = append(views, view)
	}

	ok(c, "success", gin.H{"posts": views, "page": page, "limit": limit})
}

func buildPostView(c *gin.Context, user *models.User, post *models.Post) (postView, error) {
	var author models.User
	if err := DB.Where("id = ?", post.UserID).First(&author).Error; err != nil {
		return postView{}, err
	}

	var collection models.Collection
	if err := DB.Where("id = ?", post.ReferCollectionID).First(&collection).Error; err != nil {
		return postView{}, err
	}

	var details []models.CollectionDetail
	if err := DB.Where("collection_id = ?", collection.ID).Find(&details).Error; err != nil {
		return postView{}, err
	}
	detailMap := make(map[string]json.RawMessage, len(details))
	for _, d := range details {
		detailMap[d.Key] = json.RawMessage(d.Value)
	}

	likes, err := Likes.Count(c.Request.Context(), models.AssetTypePost, post.ID)
	if err != nil {
		return postView{}, err
	}

	var commentsCount int64
	if err := DB.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&commentsCount).Error; err != nil {
		return postView{}, err
	}

	var liked int64
	if err := DB.Model(&models.Like{}).
		Where("user_id = ? AND asset_id = ? AND asset_type = ?", user.ID, post.ID, models.AssetTypePost).
		Count(&liked).Error; err != nil {
		return postView{}, err
	}

	return postView{
		ID:                post.ID,
		Description:       post.Description,
		UserID:            post.UserID,
		Username:          author.Username,
		ReferCollectionID: post.ReferCollectionID,
		CollectionDetails: detailMap,
		CategoryID:        collection.CategoryID,
		Tags:              collection.Tags,
		LikesCount:        likes,
		CommentsCount:     commentsCount,
		IsLikedByMe:       liked > 0,
		CreatedAt:         post.CreatedAt,
		UpdatedAt:         post.UpdatedAt,
	}, nil
}

type createCommentInput struct {
	Content string `json:"content" binding:"required"`
}

func CreateComment(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	postID := c.Param("id")

	var n int64
	if err := DB.Model(&models.Post{}).Where("id = ?", postID).Count(&n).Error; err != nil {
		fail(c, http.StatusInternalServerError, "failed to add comment")
		return
	}
	if n == 0 {
		fail(c, http.StatusNotFound, "post not found")
		return
	}

	var input createCommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "invalid parameters")
		return
	}

	comment := models.Comment{PostID: postID, UserID: user.ID, Content: input.Content}
	if err := DB.Create(&comment).Error; err != nil {
		slog.Error("create comment", "post_id", postID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to add comment")
		return
	}

	ok(c, "comment added", comment)
}

func ListComments(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	postID := c.Param("id")

	var n int64
	if err := DB.Model(&models.Post{}).Where("id = ?", postID).Count(&n).Error; err != nil {
		fail(c, http.StatusInternalServerError, "failed to list comments")
		return
	}
	if n == 0 {
		fail(c, http.StatusNotFound, "post not found")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var comments []models.Comment
	if err := DB.Where("post_id = ?", postID).Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&comments).Error; err != nil {
		fail(c, http.StatusInternalServerError, "failed to list comments")
		return
	}

	type commentView struct {
		models.Comment
		Username    string `json:"username"`
		LikesCount  int64  `json:"likes_count"`
		IsLikedByMe bool   `json:"is_liked_by_me"`
	}

	views := make([]commentView, 0, len(comments))
	for _, comment := range comments {
		var author models.User
		if err := DB.Where("id = ?", comment.UserID).First(&author).Error; err != nil {
			fail(c, http.StatusInternalServerError, "failed to list comments")
			return
		}
		likes, err := Likes.Count(c.Request.Context(), models.AssetTypeComment, comment.ID)
		if err != nil {
			fail(c, http.StatusInternalServerError, "failed to list comments")
			return
		}
		var liked int64
		if err := DB.Model(&models.Like{}).
			Where("user_id = ? AND asset_id = ? AND asset_type = ?", user.ID, comment.ID, models.AssetTypeComment).
			Count(&liked).Error; err != nil {
			fail(c, http.StatusInternalServerError, "failed to list comments")
			return
		}
		views = append(views, commentView{
			Comment:     comment,
			Username:    author.Username,
			LikesCount:  likes,
			IsLikedByMe: liked > 0,
		})
	}

	ok(c, "success", gin.H{"comments": views, "page": page, "limit": limit})
}

func DeleteComment(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id := c.Param("id")

	var comment models.Comment
	err := DB.Where("id = ? AND user_id = ?", id, user.ID).First(&comment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "comment not found or not yours")
		} else {
			fail(c, http.StatusInternalServerError, "failed to delete comment")
		}
		return
	}

	err = DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("asset_id = ? AND asset_type = ?", id, models.AssetTypeComment).
			Delete(&models.Like{}).Error; err != nil {
			return err
		}
		return tx.Delete(&comment).Error
	})
	if err != nil {
		slog.Error("delete comment", "id", id, "error", err)
		fail(c, http.StatusInternalServerError, "failed to delete comment")
		return
	}

	ok(c, "comment deleted", gin.H{"comment_id": id})
}

type likeInput struct {
	AssetID   string `json:"asset_id" binding:"required"`
	AssetType string `json:"asset_type" binding:"required"`
}

func assetExists(assetType, assetID string) (bool, error) {
	var n int64
	var err error
	switch assetType {
	case models.AssetTypePost:
		err = DB.Model(&models.Post{}).Where("id = ?", assetID).Count(&n).Error
	case models.AssetTypeComment:
		err = DB.Model(&models.Comment{}).Where("id = ?", assetID).Count(&n).Error
	}
	return n > 0, err
}

func LikeAsset(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var input likeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "invalid parameters")
		return
	}
	if input.AssetType != models.AssetTypePost && input.AssetType != models.AssetTypeComment {
		fail(c, http.StatusBadRequest, "asset type must be 'post' or 'comment'")
		return
	}

	exists, err := assetExists(input.AssetType, input.AssetID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to like")
		return
	}
	if !exists {
		fail(c, http.StatusNotFound, input.AssetType+" not found")
		return
	}

	var n int64
	if err := DB.Model(&models.Like{}).
		Where("user_id = ? AND asset_id = ? AND asset_type = ?", user.ID, input.AssetID, input.AssetType).
		Count(&n).Error; err != nil {
		fail(c, http.StatusInternalServerError, "failed to like")
		return
	}
	if n > 0 {
		fail(c, http.StatusBadRequest, "already liked")
		return
	}

	like := models.Like{UserID: user.ID, AssetID: input.AssetID, AssetType: input.AssetType}
	if err := DB.Create(&like).Error; err != nil {
		slog.Error("create like", "user_id", user.ID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to like")
		return
	}
	Likes.Incr(c.Request.Context(), input.AssetType, input.AssetID)

	ok(c, "liked", gin.H{"asset_id": input.AssetID, "asset_type": input.AssetType})
}

func UnlikeAsset(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var input likeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "invalid parameters")
		return
	}
	if input.AssetType != models.AssetTypePost && input.AssetType != models.AssetTypeComment {
		fail(c, http.StatusBadRequest, "asset type must be 'post' or 'comment'")
		return
	}

	var like models.Like
	err := DB.Where("user_id = ? AND asset_id = ? AND asset_type = ?", user.ID, input.AssetID, input.AssetType).
		First(&like).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "not liked yet")
		} else {
			fail(c, http.StatusInternalServerError, "failed to unlike")
		}
		return
	}

	if err := DB.Delete(&like).Error; err != nil {
		slog.Error("delete like", "id", like.ID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to unlike")
		return
	}
	Likes.Decr(c.Request.Context(), input.AssetType, input.AssetID)

	ok(c, "unliked", gin.H{"asset_id": input.AssetID, "asset_type": input.AssetType})
}
