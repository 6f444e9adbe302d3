package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-grievance-api/internal/models"
	appErrors "github.com/noah-isme/campus-grievance-api/pkg/errors"
	"github.com/noah-isme/campus-grievance-api/pkg/middleware/requestid"
)

// Envelope is the wire shape of every JSON response. Exactly one of Data
// or Error is set; Pagination only accompanies list responses.
type Envelope struct {
	Data       interface{}        `json:"data,omitempty"`
	Error      *appErrors.Error   `json:"error,omitempty"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
	RequestID  string             `json:"request_id,omitempty"`
}

// JSON writes a success envelope. Lifecycle state is served from an
// append-only history, so responses are marked uncacheable to keep
// clients from pinning a stale status.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination) {
	writeEnvelope(c, status, Envelope{Data: data, Pagination: pagination})
}

// Created writes a 201 envelope.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error normalises err into the common error shape and writes it with
// the status the error carries.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	writeEnvelope(c, appErr.Status, Envelope{Error: appErr})
}

func writeEnvelope(c *gin.Context, status int, envelope Envelope) {
	envelope.RequestID = requestid.Value(c)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, envelope)
}
