package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paperlens/internal/models"
	"paperlens/internal/workspace"
)

type messageRequest struct {
	Message string `form:"message" json:"message"`
}

func (h *Handler) openChat(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	if err := h.assistant.OpenChat(c.Request.Context(), ws); err != nil {
		status, msg := classify(err)
		if wantsJSON(c) {
			c.JSON(status, gin.H{"error": msg, "messages": ws.Chat().Messages()})
			return
		}
		// The failure is already in the transcript.
		if status == http.StatusBadGateway {
			c.Redirect(http.StatusSeeOther, "/")
			return
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"messages": ws.Chat().Messages()})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// sendMessage runs one chat turn. Clients asking for text/event-stream get
// the reply as SSE events; everyone else waits for the full reply.
func (h *Handler) sendMessage(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	var req messageRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		h.fail(c, workspace.ErrEmptyMessage)
		return
	}
	if _, _, _, err := ws.Paper(); err != nil {
		h.fail(c, err)
		return
	}
	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		h.streamMessage(c, ws, text)
		return
	}

	err := h.assistant.SendChat(c.Request.Context(), ws, text, nil)
	if wantsJSON(c) {
		if err != nil {
			status, msg := classify(err)
			c.JSON(status, gin.H{"error": msg, "messages": ws.Chat().Messages()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": ws.Chat().Messages()})
		return
	}
	// Upstream failures are already in the transcript.
	if err != nil {
		if status, _ := classify(err); status != http.StatusBadGateway {
			h.fail(c, err)
			return
		}
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) streamMessage(c *gin.Context, ws *workspace.Workspace, text string) {
	conv := ws.Chat()
	if conv.State() == workspace.ChatUninitialized {
		if err := h.assistant.OpenChat(c.Request.Context(), ws); err != nil {
			status, msg := classify(err)
			c.JSON(status, gin.H{"error": msg, "messages": conv.Messages()})
			return
		}
	}
	if !conv.CanSend() {
		if conv.State() == workspace.ChatFailed {
			h.fail(c, workspace.ErrChatUnavailable)
			return
		}
		h.fail(c, workspace.ErrChatBusy)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sendEvent := func(event string, payload interface{}) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\n", event); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := sendEvent("ack", gin.H{
		"message": models.ChatMessage{Role: models.RoleUser, Text: text},
	}); err != nil {
		return
	}
	err := h.assistant.SendChat(c.Request.Context(), ws, text, func(fragment string, _ models.ChatMessage) error {
		return sendEvent("stream", gin.H{"content": fragment})
	})
	if err != nil {
		_, msg := classify(err)
		h.logger.Debug("chat stream ended with error", zap.String("workspace", ws.ID), zap.Error(err))
		_ = sendEvent("error", gin.H{"message": msg})
		return
	}
	payload := gin.H{}
	if msgs := conv.Messages(); len(msgs) > 0 {
		payload["message"] = msgs[len(msgs)-1]
	}
	_ = sendEvent("done", payload)
}
