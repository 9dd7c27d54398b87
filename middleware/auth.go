package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vijaygopal97/convergent-server/config"
	"github.com/vijaygopal97/convergent-server/model"
	"github.com/vijaygopal97/convergent-server/security"
)

// swappable in tests
var parseClaims = security.ParseTokenClaims

// AuthMiddleware validates the bearer token, loads the user and scopes the
// request to the user's company via the gin context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var authHeader string
		if cookieToken, err := c.Cookie("access_token"); err == nil && cookieToken != "" {
			authHeader = "Bearer " + cookieToken
		} else {
			authHeader = c.GetHeader("Authorization")
		}
		if authHeader == "" {
			sendAuthError(c, http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			log.Printf("Malformed Authorization header")
			sendAuthError(c, http.StatusUnauthorized)
			return
		}

		claims, err := parseClaims(parts[1])
		if err != nil {
			log.Printf("Token validation failed: %v", err)
			sendAuthError(c, http.StatusUnauthorized)
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.Subject)
		if err != nil {
			log.Printf("Token subject is not a valid user id")
			sendAuthError(c, http.StatusUnauthorized)
			return
		}

		var user model.User
		if err := config.DB.Collection("users").
			FindOne(c.Request.Context(), bson.M{"_id": userID}).
			Decode(&user); err != nil {
			log.Printf("Token user no longer exists")
			sendAuthError(c, http.StatusUnauthorized)
			return
		}

		c.Set("user_id", user.ID)
		c.Set("company_id", user.Company)
		c.Set("user_role", user.Role)
		c.Next()
	}
}

func sendAuthError(c *gin.Context, code int) {
	// no detail in the body; status code only
	c.AbortWithStatus(code)
}
