// Package apihandlers is the HTTP surface: gin handlers for document
// upload and management, chat, usage statistics and health.
package apihandlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"copilot/internal/app"
	"copilot/internal/extract"
	"copilot/internal/models"
	"copilot/internal/store"
)

type APIHandler struct {
	App *app.App
}

func NewAPIHandler(app *app.App) *APIHandler {
	return &APIHandler{App: app}
}

// NewRouter builds the full gin router: CORS, API routes and the
// Prometheus endpoint. The server command and the handler tests share
// it so they exercise the same surface.
func NewRouter(appInstance *app.App) *gin.Engine {
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = appInstance.Config.Server.AllowOrigins
	router.Use(cors.New(corsConfig))

	h := NewAPIHandler(appInstance)
	router.GET("/", h.RootHandler)
	router.POST("/upload", h.UploadHandler)
	router.POST("/chat", h.ChatHandler)
	router.GET("/documents", h.ListDocumentsHandler)
	router.DELETE("/documents/:id", h.DeleteDocumentHandler)
	router.GET("/stats", h.StatsHandler)
	router.GET("/stats/session", h.SessionStatsHandler)
	router.GET("/stats/costs", h.CostAnalysisHandler)
	router.GET("/stats/suggestions", h.SuggestionsHandler)
	router.GET("/healthz", h.HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func (h *APIHandler) RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "Knowledge Copilot API",
		"version": "1.0.0",
		"status":  "running",
	})
}

// DocumentUploadResponse is the JSON body returned by a successful
// upload.
type DocumentUploadResponse struct {
	DocumentID    string `json:"document_id"`
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created"`
	Status        string `json:"status"`
}

func (h *APIHandler) UploadHandler(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "Missing multipart field 'file': "+err.Error())
		return
	}

	if !extract.Supported(fileHeader.Filename) {
		BadRequest(c, "Unsupported file type")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		Internal(c, fmt.Sprintf("UploadHandler: failed to open uploaded file: %v", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		Internal(c, fmt.Sprintf("UploadHandler: failed to read uploaded file: %v", err))
		return
	}

	text, err := extract.Text(fileHeader.Filename, data)
	if err != nil {
		if errors.Is(err, models.ErrUnsupportedFileType) {
			BadRequest(c, "Unsupported file type")
			return
		}
		Internal(c, fmt.Sprintf("UploadHandler: failed to extract text: %v", err))
		return
	}

	result, err := h.App.Engine.AddDocument(c.Request.Context(),
		fileHeader.Filename, extract.ContentType(fileHeader.Filename), text)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptyDocument):
			BadRequest(c, "Document contains no extractable text")
		case errors.Is(err, models.ErrValidation):
			BadRequest(c, err.Error())
		default:
			Internal(c, fmt.Sprintf("UploadHandler: failed to ingest document: %v", err))
		}
		return
	}

	c.JSON(http.StatusOK, DocumentUploadResponse{
		DocumentID:    result.DocumentID,
		Filename:      result.Filename,
		ChunksCreated: result.ChunksCreated,
		Status:        "success",
	})
}

func (h *APIHandler) ListDocumentsHandler(c *gin.Context) {
	docs, err := h.App.Engine.ListDocuments(c.Request.Context(), 0, 0)
	if err != nil {
		Internal(c, fmt.Sprintf("ListDocumentsHandler: failed to list documents: %v", err))
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *APIHandler) DeleteDocumentHandler(c *gin.Context) {
	id := c.Param("id")
	if err := h.App.Engine.DeleteDocument(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, "Document not found")
			return
		}
		Internal(c, fmt.Sprintf("DeleteDocumentHandler: failed to delete document: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "deleted",
		"document_id": id,
	})
}

func (h *APIHandler) StatsHandler(c *gin.Context) {
	snapshot := h.App.Analyzer.SessionSnapshot()
	count, err := h.App.Engine.DocumentCount(c.Request.Context())
	if err != nil {
		Internal(c, fmt.Sprintf("StatsHandler: failed to count documents: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_requests":    snapshot.TotalRequests,
		"total_cost":        snapshot.TotalCost,
		"avg_latency":       snapshot.AvgLatency,
		"documents_indexed": count,
	})
}

func (h *APIHandler) SessionStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.App.Analyzer.SessionSnapshot())
}

func (h *APIHandler) CostAnalysisHandler(c *gin.Context) {
	analysis, err := h.App.Analyzer.Analyze(c.Query("window"))
	if err != nil {
		if errors.Is(err, models.ErrNoCostLogs) {
			// An empty log is a normal state, reported in-band.
			c.JSON(http.StatusOK, gin.H{"error": "No logs found"})
			return
		}
		Internal(c, fmt.Sprintf("CostAnalysisHandler: failed to analyze cost log: %v", err))
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (h *APIHandler) SuggestionsHandler(c *gin.Context) {
	report, err := h.App.Advisor.Suggest()
	if err != nil {
		if errors.Is(err, models.ErrNoCostLogs) {
			c.JSON(http.StatusOK, gin.H{
				"suggestions": []string{"Not enough data for optimization suggestions"},
			})
			return
		}
		Internal(c, fmt.Sprintf("SuggestionsHandler: failed to build report: %v", err))
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *APIHandler) HealthHandler(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.App.DocumentStore.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	if err := h.App.VectorIndex.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
