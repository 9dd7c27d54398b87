package qcbatch

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vijaygopal97/convergent-server/utils"
)

var batchService Service

// InitService wires the package-level service used by the handlers.
func InitService(svc Service) {
	batchService = svc
}

// GetBatchesBySurveyV2Handler handles
// GET /api/qc-batches-v2/survey/:surveyId?page=&limit=&status=&interviewerId=
func GetBatchesBySurveyV2Handler(c *gin.Context) {
	companyID := c.MustGet("company_id").(primitive.ObjectID)

	opts := ListOptions{
		Page:          queryInt(c, "page", 1),
		Limit:         queryInt(c, "limit", 10),
		Status:        c.Query("status"),
		InterviewerID: c.Query("interviewerId"),
		UseCache:      c.Query("useCache") != "false",
	}

	result, cached, err := batchService.GetBatchesBySurveyV2(c.Request.Context(), companyID, c.Param("surveyId"), opts)
	if err != nil {
		switch err {
		case ErrInvalidID:
			utils.SendError(c, http.StatusBadRequest, "Invalid survey ID", err)
		case ErrSurveyNotFound:
			utils.SendError(c, http.StatusNotFound, "Survey not found", err)
		default:
			utils.SendError(c, http.StatusInternalServerError, "Failed to fetch QC batches", err)
		}
		return
	}

	c.JSON(http.StatusOK, envelope(result, cached))
}

// GetBatchByIDV2Handler handles
// GET /api/qc-batches-v2/:batchId?responsePage=&responseLimit=
func GetBatchByIDV2Handler(c *gin.Context) {
	companyID := c.MustGet("company_id").(primitive.ObjectID)

	rpage := queryInt(c, "responsePage", DefaultResponsePage)
	rlimit := queryInt(c, "responseLimit", DefaultResponseLimit)

	result, cached, err := batchService.GetBatchByIDV2(c.Request.Context(), companyID, c.Param("batchId"), rpage, rlimit)
	if err != nil {
		switch err {
		case ErrInvalidID:
			utils.SendError(c, http.StatusBadRequest, "Invalid batch ID", err)
		case ErrBatchNotFound:
			utils.SendError(c, http.StatusNotFound, "QC batch not found", err)
		case ErrPermissionDenied:
			utils.SendError(c, http.StatusForbidden, "Access denied", err)
		default:
			utils.SendError(c, http.StatusInternalServerError, "Failed to fetch QC batch", err)
		}
		return
	}

	c.JSON(http.StatusOK, envelope(result, cached))
}

// GetBatchStatsV2Handler handles GET /api/qc-batches-v2/:batchId/stats
func GetBatchStatsV2Handler(c *gin.Context) {
	companyID := c.MustGet("company_id").(primitive.ObjectID)

	stats, cached, err := batchService.GetBatchStatsV2(c.Request.Context(), companyID, c.Param("batchId"))
	if err != nil {
		switch err {
		case ErrInvalidID:
			utils.SendError(c, http.StatusBadRequest, "Invalid batch ID", err)
		case ErrBatchNotFound:
			utils.SendError(c, http.StatusNotFound, "QC batch not found", err)
		case ErrPermissionDenied:
			utils.SendError(c, http.StatusForbidden, "Access denied", err)
		default:
			utils.SendError(c, http.StatusInternalServerError, "Failed to fetch QC batch stats", err)
		}
		return
	}

	c.JSON(http.StatusOK, envelope(stats, cached))
}

// envelope builds {success, data, cached?}; cached only appears on hits.
func envelope(data interface{}, cached bool) gin.H {
	body := gin.H{"success": true, "data": data}
	if cached {
		body["cached"] = true
	}
	return body
}

func queryInt(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
