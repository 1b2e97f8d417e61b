package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/airouter/airouter/internal/application/usecase"
	"github.com/airouter/airouter/internal/domain/chat"
	"github.com/airouter/airouter/internal/domain/routing"
	apperrors "github.com/airouter/airouter/pkg/errors"
)

// RouteHandler serves the routing test endpoint: send a request down an
// explicit route, or "auto" to observe what the classifier would pick.
type RouteHandler struct {
	dispatcher *usecase.Dispatcher
	logger     *zap.Logger
}

// NewRouteHandler creates the routing test handler.
func NewRouteHandler(dispatcher *usecase.Dispatcher, logger *zap.Logger) *RouteHandler {
	return &RouteHandler{dispatcher: dispatcher, logger: logger}
}

type routeRequest struct {
	Route string        `json:"route"`
	Path  string        `json:"path"`
	Data  *chat.Request `json:"data"`
}

// Route handles POST /api/route. Accepted routes: primary, xai, enrich,
// auto. Meta is not addressable here; it only triggers through detection on
// the main endpoint. An optional path overrides the default
// /v1/chat/completions on the chosen backend.
func (h *RouteHandler) Route(c *gin.Context) {
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.NewInvalidInputError("malformed JSON body"))
		return
	}
	if req.Data == nil || len(req.Data.Messages) == 0 {
		writeError(c, apperrors.NewInvalidInputError("Missing required field: messages"))
		return
	}

	route := routing.Route(req.Route)
	switch route {
	case routing.RoutePrimary, routing.RouteXAI, routing.RouteEnrich:
	case "auto":
		route = h.dispatcher.ResolveRoute(c.Request.Context(), req.Data.Messages)
		h.logger.Info("Auto route resolved", zap.String("route", string(route)))
	default:
		writeError(c, apperrors.NewInvalidInputError("Invalid route: "+req.Route))
		return
	}

	c.Header("X-Selected-Route", string(route))
	reply, err := h.dispatcher.DispatchRoute(c.Request.Context(), req.Data, route, req.Path)
	if err != nil {
		writeError(c, err)
		return
	}
	writeReply(c, reply)
}
