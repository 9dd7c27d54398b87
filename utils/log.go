package utils

import (
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// SendError writes the standard error envelope; err is optional.
func SendError(c *gin.Context, code int, msg string, errs ...error) {
	var err error
	if len(errs) > 0 {
		err = errs[0]
	}

	LogError(msg, err)

	body := gin.H{
		"success": false,
		"message": msg,
	}
	if err != nil {
		body["error"] = err.Error()
	}
	c.JSON(code, body)
	c.Abort()
}

func LogError(context string, err error) {
	if err != nil {
		log.Printf("[ERROR] %s: %v", context, err)
	} else {
		log.Printf("[ERROR] %s", context)
	}

	if os.Getenv("ENV") == "production" {
		// TODO: ship errors to the log collector once ops picks one
	}
}

// InternalError is the catch-all 500 response.
func InternalError(c *gin.Context, msg string, err error) {
	SendError(c, http.StatusInternalServerError, msg, err)
}
