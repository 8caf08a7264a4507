package http

import (
	"context"
	"net/http"
	"time"

	"sharecast/pkg/errors"
	"sharecast/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
)

// OfferHandler answers a viewer's offer for the published share tracks.
type OfferHandler interface {
	HandleOffer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
}

type SessionHandler struct {
	negotiator    OfferHandler
	gatherTimeout time.Duration
}

func NewSessionHandler(negotiator OfferHandler, gatherTimeout time.Duration) *SessionHandler {
	if gatherTimeout <= 0 {
		gatherTimeout = 10 * time.Second
	}
	return &SessionHandler{
		negotiator:    negotiator,
		gatherTimeout: gatherTimeout,
	}
}

func (h *SessionHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/session/offer", h.HandleOffer)
}

type OfferRequest struct {
	Type string `json:"type" binding:"required"`
	SDP  string `json:"sdp" binding:"required"`
}

func (h *SessionHandler) HandleOffer(c *gin.Context) {
	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	if err := validation.ValidateOffer(req.Type, req.SDP); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.gatherTimeout)
	defer cancel()

	answer, err := h.negotiator.HandleOffer(ctx, webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  req.SDP,
	})
	if err != nil {
		if ctx.Err() != nil {
			c.Error(errors.WrapError(err, errors.ErrCodeServiceUnavailable, "ice gathering timed out", http.StatusServiceUnavailable))
			return
		}
		c.Error(errors.WrapError(err, errors.ErrCodeInvalidInput, "offer could not be applied", http.StatusBadRequest))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"type": answer.Type.String(),
		"sdp":  answer.SDP,
	})
}
