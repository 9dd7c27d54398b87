package survey

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vijaygopal97/convergent-server/config"
	"github.com/vijaygopal97/convergent-server/model"
	"github.com/vijaygopal97/convergent-server/utils"
)

// GetSurveysHandler lists the caller's company surveys, newest first.
func GetSurveysHandler(c *gin.Context) {
	companyID := c.MustGet("company_id").(primitive.ObjectID)

	filter := bson.M{"company": companyID}
	if status := c.Query("status"); status != "" {
		filter["status"] = status
	}

	cursor, err := config.DB.Collection("surveys").Find(
		c.Request.Context(),
		filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		utils.InternalError(c, "Failed to fetch surveys", err)
		return
	}
	defer cursor.Close(c.Request.Context())

	surveys := []model.Survey{}
	if err := cursor.All(c.Request.Context(), &surveys); err != nil {
		utils.InternalError(c, "Failed to fetch surveys", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": surveys})
}
