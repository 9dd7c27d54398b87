package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vijaygopal97/convergent-server/config"
	"github.com/vijaygopal97/convergent-server/model"
	"github.com/vijaygopal97/convergent-server/security"
	"github.com/vijaygopal97/convergent-server/utils"
)

// LoginHandler issues an access token for the dashboard.
func LoginHandler(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Email and password are required", err)
		return
	}

	var u model.User
	err := config.DB.Collection("users").
		FindOne(c.Request.Context(), bson.M{"email": req.Email}).
		Decode(&u)
	if err == mongo.ErrNoDocuments {
		utils.SendError(c, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Login failed", err)
		return
	}

	ok, err := security.VerifyPassword(req.Password, u.PasswordHash)
	if err != nil || !ok {
		utils.SendError(c, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, expires, err := security.GenerateToken(u.ID.Hex())
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Login failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": model.AuthResponse{
			Token:   token,
			Expires: expires,
			User:    &u,
		},
	})
}

// GetCurrentUserHandler returns the authenticated user.
func GetCurrentUserHandler(c *gin.Context) {
	userID := c.MustGet("user_id").(primitive.ObjectID)

	var u model.User
	err := config.DB.Collection("users").
		FindOne(c.Request.Context(), bson.M{"_id": userID}).
		Decode(&u)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to load user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": u})
}
