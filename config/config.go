package config

import "os"

// Config carries everything main needs to wire the application together.
// All values come from the environment so a deployment never has to edit
// source to point at its own MySQL/MinIO/Redis.
type Config struct {
	Addr      string
	DSN       string
	JWTSecret string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioBaseURL   string

	RedisAddr     string
	RedisPassword string
}

func Load() Config {
	return Config{
		Addr:      getenv("MEMORA_ADDR", ":8080"),
		DSN:       getenv("MEMORA_DSN", "root:123456@tcp(127.0.0.1:3306)/memora?charset=utf8mb4&parseTime=True&loc=UTC"),
		JWTSecret: getenv("MEMORA_JWT_SECRET", "memora_dev_secret"),

		MinioEndpoint:  getenv("MEMORA_MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getenv("MEMORA_MINIO_ACCESS_KEY", "admin"),
		MinioSecretKey: getenv("MEMORA_MINIO_SECRET_KEY", "password123"),
		MinioBucket:    getenv("MEMORA_MINIO_BUCKET", "memora"),
		MinioUseSSL:    os.Getenv("MEMORA_MINIO_USE_SSL") == "true",
		MinioBaseURL:   getenv("MEMORA_MINIO_BASE_URL", "http://127.0.0.1:9000"),

		RedisAddr:     getenv("MEMORA_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("MEMORA_REDIS_PASSWORD"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
