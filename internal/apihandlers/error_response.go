package apihandlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIError is the error payload every endpoint returns on failure,
// wrapped as {"error": {"code": "...", "message": "..."}} so SSE and
// JSON clients share one shape to branch on.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// JSONError writes an APIError with the given status. Handlers that
// need a non-standard code call it directly; the common statuses have
// wrappers below.
func JSONError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, errorResponse{Error: APIError{Code: code, Message: msg}})
}

func BadRequest(c *gin.Context, msg string) {
	JSONError(c, http.StatusBadRequest, "bad_request", msg)
}

func NotFound(c *gin.Context, msg string) {
	JSONError(c, http.StatusNotFound, "not_found", msg)
}

func Internal(c *gin.Context, msg string) {
	JSONError(c, http.StatusInternalServerError, "internal_error", msg)
}
