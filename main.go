package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"memora/cache"
	"memora/config"
	"memora/handlers"
	"memora/middleware"
	"memora/models"
	"memora/storage"
)

func main() {
	cfg := config.Load()
	middleware.JwtKey = []byte(cfg.JWTSecret)

	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		slog.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	blob, err := storage.New(context.Background(),
		cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
		cfg.MinioBucket, cfg.MinioBaseURL, cfg.MinioUseSSL)
	if err != nil {
		slog.Error("failed to connect blob store", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		// Degrade to database counts rather than refuse to start.
		slog.Warn("redis unavailable, like counters fall back to the database", "error", err)
		rdb = nil
	}

	handlers.DB = db
	handlers.Blob = blob
	handlers.Likes = cache.NewLikeCounter(rdb, db)

	r := gin.Default()
	api := r.Group("/api/v1")
	api.GET("/health", handlers.Health)
	api.POST("/auth/register", handlers.Register)
	api.POST("/auth/login", handlers.Login)

	auth := api.Group("/")
	auth.Use(middleware.AuthMiddleware())
	{
		auth.GET("/auth/profile", handlers.GetProfile)
		auth.PUT("/auth/profile", handlers.UpdateProfile)

		auth.POST("/category/", handlers.CreateCategory)
		auth.GET("/category/", handlers.ListCategories)
		auth.PUT("/category/:id", handlers.UpdateCategory)
		auth.DELETE("/category/:id", handlers.DeleteCategory)

		auth.POST("/collections", handlers.CreateCollection)
		auth.GET("/collections", handlers.ListCollections)
		auth.GET("/collections/:id", handlers.GetCollection)
		auth.PUT("/collections/:id", handlers.UpdateCollection)
		auth.DELETE("/collections/:id", handlers.DeleteCollection)

		auth.POST("/attachments/upload", handlers.UploadAttachment)
		auth.GET("/attachments/:id", handlers.GetAttachment)
		auth.DELETE("/attachments/:id", handlers.DeleteAttachment)

		auth.POST("/community/posts", handlers.CreatePost)
		auth.GET("/community/posts", handlers.ListPosts)
		auth.GET("/community/my-posts", handlers.ListMyPosts)
		auth.DELETE("/community/posts/:id", handlers.DeletePost)
		auth.POST("/community/posts/:id/comment", handlers.CreateComment)
		auth.GET("/community/posts/:id/comments", handlers.ListComments)
		auth.DELETE("/community/comments/:id", handlers.DeleteComment)
		auth.POST("/community/like", handlers.LikeAsset)
		auth.DELETE("/community/like", handlers.UnlikeAsset)

		auth.GET("/migration/export", handlers.ExportData)
		auth.POST("/migration/import", handlers.ImportData)
	}

	slog.Info("starting server", "addr", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
