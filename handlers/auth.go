package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"memora/middleware"
	"memora/models"
)

type registerInput struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type profile struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username"`
	Email              string    `json:"email"`
	AvatarAttachmentID *string   `json:"avatar_attachment_id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func toProfile(u *models.User) profile {
	return profile{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		AvatarAttachmentID: u.AvatarAttachmentID,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func Register(c *gin.Context) {
	var input registerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "invalid parameters")
		return
	}

	var n int64
	if err := DB.Model(&models.User{}).Where("username = ?", input.Username).Count(&n).Error; err != nil {
		fail(c, http.StatusInternalServerError, "registration failed")
		return
	}
	if n > 0 {
		fail(c, http.StatusBadRequest, "username already exists")
		return
	}
	if err := DB.Model(&models.User{}).Where("email = ?", input.Email).Count(&n).Error; err != nil {
		fail(c, http.StatusInternalServerError, "registration failed")
		return
	}
	if n > 0 {
		fail(c, http.StatusBadRequest, "email already exists")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		fail(c, http.StatusInternalServerError, "registration failed")
		return
	}

	user := models.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hashed),
	}
	if err := DB.Create(&user).Error; err != nil {
		slog.Error("register: create user", "error", err)
		fail(c, http.StatusInternalServerError, "registration failed")
		return
	}

	ok(c, "registration successful", toProfile(&user))
}

func Login(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "invalid parameters")
		return
	}

	var user models.User
	err := DB.Where("username = ?", input.Username).First(&user).Error
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		fail(c, http.StatusUnauthorized, "wrong username or password")
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		middleware.ContextUserID: user.ID,
		"exp":                    time.Now().Add(24 * time.Hour).Unix(),
	})
	tokenString, err := token.SignedString(middleware.JwtKey)
	if err != nil {
		fail(c, http.StatusInternalServerError, "login failed")
		return
	}

	ok(c, "login successful", gin.H{"access_token": tokenString, "token_type": "bearer"})
}

func GetProfile(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	ok(c, "success", toProfile(user))
}

type profileUpdateInput struct {
	Email              *string `json:"email" binding:"omitempty,email"`
	AvatarAttachmentID *string `json:"avatar_attachment_id"`
}

func UpdateProfile(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var input profileUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "invalid parameters")
		return
	}

	updates := map[string]any{}
	if input.Email != nil {
		var other models.User
		err := DB.Where("email = ? AND id <> ?", *input.Email, user.ID).First(&other).Error
		if err == nil {
			fail(c, http.StatusBadRequest, "email already in use")
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusInternalServerError, "update failed")
			return
		}
		updates["email"] = *input.Email
	}
	if input.AvatarAttachmentID != nil {
		updates["avatar_attachment_id"] = *input.AvatarAttachmentID
	}

	if len(updates) > 0 {
		if err := DB.Model(user).Updates(updates).Error; err != nil {
			slog.Error("update profile", "user_id", user.ID, "error", err)
			fail(c, http.StatusInternalServerError, "update failed")
			return
		}
	}

	ok(c, "profile updated", toProfile(user))
}
