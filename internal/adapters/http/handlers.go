package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Bridge/internal/adapters/plivo"
	"github.com/dkeye/Bridge/internal/core"
	"github.com/dkeye/Bridge/internal/domain"
	"github.com/dkeye/Bridge/internal/protocol"
)

type handlers struct {
	deps Deps
}

// answer is the call-answer webhook. It must always hand the platform
// a usable markup document: on internal failure it degrades to a
// spoken error announcement instead of failing the HTTP call.
func (h *handlers) answer(c *gin.Context) {
	callUUID := c.PostForm("CallUUID")
	from := c.PostForm("From")
	to := c.PostForm("To")

	log.Info().
		Str("module", "adapters.http").
		Str("call_id", callUUID).
		Str("from", from).
		Str("to", to).
		Msg("answer webhook")

	wsURL := h.deps.Config.StreamWSURL()
	if wsURL == "" {
		c.Data(http.StatusOK, "application/xml", protocol.ErrorXML("Error connecting to bridge server"))
		return
	}
	c.Data(http.StatusOK, "application/xml", protocol.AnswerXML(wsURL, h.deps.Config.TelephonyRate))
}

type makeCallRequest struct {
	To string `json:"to" binding:"required"`
}

type makeCallResponse struct {
	Success bool   `json:"success"`
	CallID  string `json:"callId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// makeCall validates and normalizes the destination before the
// telephony API is ever contacted.
func (h *handlers) makeCall(c *gin.Context) {
	var req makeCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, makeCallResponse{Success: false, Error: "to is required"})
		return
	}

	to, err := plivo.ValidateNumber(req.To)
	if err != nil {
		if h.deps.Metrics != nil {
			h.deps.Metrics.CallsFailed.Inc()
		}
		c.JSON(http.StatusOK, makeCallResponse{Success: false, Error: core.ErrInvalidNumber.Error()})
		return
	}

	callID, err := h.deps.Dialer.Dial(c.Request.Context(), to)
	if err != nil {
		if h.deps.Metrics != nil {
			h.deps.Metrics.CallsFailed.Inc()
		}
		log.Error().Str("module", "adapters.http").Err(err).Msg("dial failed")
		c.JSON(http.StatusOK, makeCallResponse{Success: false, Error: err.Error()})
		return
	}

	if h.deps.Metrics != nil {
		h.deps.Metrics.CallsDialed.Inc()
	}
	h.deps.CallLog.Add(domain.Call{ID: callID, To: to, CreatedAt: time.Now()})
	c.JSON(http.StatusOK, makeCallResponse{Success: true, CallID: string(callID)})
}

func (h *handlers) callMetadata(c *gin.Context) {
	call, ok := h.deps.CallLog.Get(domain.CallID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "unknown call"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"metadata": gin.H{
			"to_number":  call.To,
			"created_at": call.CreatedAt.Format(time.RFC3339),
		},
	})
}

func (h *handlers) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.deps.Registry.Snapshot()})
}

// duplicateSession reports whether register failed on a live call.
func duplicateSession(err error) bool {
	return errors.Is(err, core.ErrDuplicateSession)
}
