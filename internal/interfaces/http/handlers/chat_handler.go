package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/airouter/airouter/internal/application/usecase"
	"github.com/airouter/airouter/internal/domain/chat"
	"github.com/airouter/airouter/internal/infrastructure/llm"
	apperrors "github.com/airouter/airouter/pkg/errors"
)

// ChatHandler serves the OpenAI-compatible surface: chat completions, legacy
// completions, and the model list.
type ChatHandler struct {
	dispatcher   *usecase.Dispatcher
	client       *llm.Client
	virtualModel string
	logger       *zap.Logger
}

// NewChatHandler creates the OpenAI-compatible handler.
func NewChatHandler(dispatcher *usecase.Dispatcher, client *llm.Client, virtualModel string, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		dispatcher:   dispatcher,
		client:       client,
		virtualModel: virtualModel,
		logger:       logger,
	}
}

// ChatCompletions handles POST /v1/chat/completions.
func (h *ChatHandler) ChatCompletions(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, apperrors.NewInvalidInputError("unreadable request body"))
		return
	}

	var req chat.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(c, apperrors.NewInvalidInputError("malformed JSON body"))
		return
	}
	if len(req.Messages) == 0 {
		writeError(c, apperrors.NewInvalidInputError("Missing required field: messages"))
		return
	}

	reply, err := h.dispatcher.Dispatch(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	writeReply(c, reply)
}

// Completions handles POST /v1/completions, the legacy text-completions
// endpoint. The payload is piped to the local model untouched apart from the
// model id.
func (h *ChatHandler) Completions(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, apperrors.NewInvalidInputError("unreadable request body"))
		return
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		writeError(c, apperrors.NewInvalidInputError("malformed JSON body"))
		return
	}
	if _, ok := raw["prompt"]; !ok {
		writeError(c, apperrors.NewInvalidInputError("Missing required field: prompt"))
		return
	}

	target := h.client.Targets().Primary
	if model, err := json.Marshal(target.Model); err == nil {
		raw["model"] = model
	}
	var stream bool
	if v, ok := raw["stream"]; ok {
		_ = json.Unmarshal(v, &stream)
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		writeError(c, apperrors.NewInternalError("encode request", err))
		return
	}

	reply, err := h.client.ForwardRaw(c.Request.Context(), target, "/v1/completions", payload, stream)
	if err != nil {
		writeError(c, err)
		return
	}
	writeReply(c, reply)
}

// ListModels handles GET /v1/models. The gateway advertises exactly one
// model, the virtual one; clients never see the backends.
func (h *ChatHandler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data": []gin.H{
			{
				"id":       h.virtualModel,
				"object":   "model",
				"created":  time.Now().Unix(),
				"owned_by": "ai-router",
			},
		},
	})
}

// writeReply sends a backend reply to the client: SSE passthrough for
// streams, verbatim body otherwise.
func writeReply(c *gin.Context, reply *llm.Reply) {
	if reply.Stream == nil {
		c.Data(reply.Status, reply.ContentType, reply.Body)
		return
	}
	defer reply.Stream.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(reply.Status)

	// Chunks pass through as they arrive; each write is flushed so the
	// client's time-to-first-token matches the backend's.
	buf := make([]byte, 4096)
	for {
		n, err := reply.Stream.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				return
			}
			c.Writer.Flush()
		}
		if err != nil {
			return
		}
	}
}

// writeError sends the JSON error body for a pipeline failure.
func writeError(c *gin.Context, err error) {
	label, message := apperrors.Body(err)
	c.JSON(apperrors.HTTPStatus(err), gin.H{
		"error":   label,
		"message": message,
	})
}
