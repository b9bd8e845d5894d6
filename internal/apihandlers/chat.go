package apihandlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"copilot/internal/models"
	"copilot/internal/services"
)

// ChatHandler answers POST /chat, streaming over SSE by default and
// returning a single JSON body when the request sets stream=false.
func (h *APIHandler) ChatHandler(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if req.Streaming() {
		h.streamChat(c, req)
		return
	}

	resp, err := h.App.Chat.Chat(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			BadRequest(c, err.Error())
			return
		}
		Internal(c, fmt.Sprintf("ChatHandler: chat request failed: %v", err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *APIHandler) streamChat(c *gin.Context, req models.ChatRequest) {
	sink := &sseSink{writer: c.Writer}
	if err := h.App.Chat.ChatStream(c.Request.Context(), req, sink); err != nil {
		// The orchestrator only returns an error before any event has
		// been written, so a plain JSON error response still works.
		if errors.Is(err, models.ErrValidation) {
			BadRequest(c, err.Error())
			return
		}
		Internal(c, fmt.Sprintf("ChatHandler: stream setup failed: %v", err))
	}
}

// sseSink adapts the orchestrator's event stream onto the SSE wire
// format: one `data: <JSON>` line per event, flushed immediately.
// Headers go out lazily with the first event, which keeps the
// pre-stream error path free to send a regular JSON response.
type sseSink struct {
	writer  gin.ResponseWriter
	started bool
}

var _ services.StreamSink = (*sseSink)(nil)

func (s *sseSink) Content(text string) error {
	return s.send(gin.H{"content": text})
}

func (s *sseSink) Metadata(meta models.StreamMetadata) error {
	return s.send(gin.H{"metadata": meta})
}

func (s *sseSink) Error(msg string) error {
	return s.send(gin.H{"error": msg})
}

func (s *sseSink) send(event any) error {
	if !s.started {
		header := s.writer.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		s.started = true
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode stream event: %w", err)
	}
	if _, err := fmt.Fprintf(s.writer, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.writer.Flush()
	return nil
}
