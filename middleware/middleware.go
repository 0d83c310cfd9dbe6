package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JwtKey is set from config at startup; the default only exists so tests
// can run without wiring a config.
var JwtKey = []byte("memora_dev_secret")

// ContextUserID is the gin context key holding the authenticated user's id.
const ContextUserID = "user_id"

// AuthMiddleware validates the bearer token and stores the user id in the
// request context. Unauthenticated requests are rejected with 401.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
			tokenString = tokenString[7:]
		}

		if tokenString == "" {
			c.JSON(401, gin.H{"code": 401, "message": "not logged in"})
			c.Abort()
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return JwtKey, nil
		})
		if err != nil || !token.Valid {
			c.JSON(401, gin.H{"code": 401, "message": "invalid credentials"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(401, gin.H{"code": 401, "message": "invalid credentials"})
			c.Abort()
			return
		}
		userID, _ := claims[ContextUserID].(string)
		if userID == "" {
			c.JSON(401, gin.H{"code": 401, "message": "invalid credentials"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, userID)
		c.Next()
	}
}
