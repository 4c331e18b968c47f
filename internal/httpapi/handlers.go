package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/muzz-connect/internal/db"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/service/chat"
	"github.com/oggyb/muzz-connect/internal/service/discovery"
	"github.com/oggyb/muzz-connect/internal/service/match"
)

type decisionBody struct {
	TargetID string `json:"target_id" binding:"required"`
}

type messageBody struct {
	Text        string          `json:"text"`
	Type        string          `json:"type"`
	Attachments []db.Attachment `json:"attachments"`
}

// GET /v1/discover?limit=
func (h *Handler) Discover(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	resp, err := h.discovery.Discover(c.Request.Context(), &discovery.DiscoverRequest{
		UserID: c.GetString(userIDKey),
		Limit:  limit,
	})
	respond(c, http.StatusOK, resp, err)
}

// POST /v1/likes {"target_id": "..."}
func (h *Handler) Like(c *gin.Context) {
	var body decisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "target_id is required")
		return
	}
	resp, err := h.match.Like(c.Request.Context(), &match.LikeRequest{
		UserID:   c.GetString(userIDKey),
		TargetID: body.TargetID,
	})
	respond(c, http.StatusOK, resp, err)
}

// POST /v1/passes {"target_id": "..."}
func (h *Handler) Pass(c *gin.Context) {
	var body decisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "target_id is required")
		return
	}
	resp, err := h.match.Pass(c.Request.Context(), &match.PassRequest{
		UserID:   c.GetString(userIDKey),
		TargetID: body.TargetID,
	})
	respond(c, http.StatusOK, resp, err)
}

// GET /v1/likes/received?limit=&pagination_token=
func (h *Handler) ListLikedYou(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	resp, err := h.match.ListLikedYou(c.Request.Context(), &match.ListLikedYouRequest{
		UserID:          c.GetString(userIDKey),
		PaginationToken: c.Query("pagination_token"),
		Limit:           limit,
	})
	respond(c, http.StatusOK, resp, err)
}

// GET /v1/likes/received/count
func (h *Handler) CountLikedYou(c *gin.Context) {
	resp, err := h.match.CountLikedYou(c.Request.Context(), &match.CountLikedYouRequest{
		UserID: c.GetString(userIDKey),
	})
	respond(c, http.StatusOK, resp, err)
}

// GET /v1/conversations
func (h *Handler) GetConversations(c *gin.Context) {
	resp, err := h.chat.GetConversations(c.Request.Context(), &chat.GetConversationsRequest{
		UserID: c.GetString(userIDKey),
	})
	respond(c, http.StatusOK, resp, err)
}

// GET /v1/conversations/:id/messages?limit=&before=
func (h *Handler) GetMessages(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	resp, err := h.chat.GetMessages(c.Request.Context(), &chat.GetMessagesRequest{
		ConversationID: c.Param("id"),
		UserID:         c.GetString(userIDKey),
		Limit:          limit,
		Before:         c.Query("before"),
	})
	respond(c, http.StatusOK, resp, err)
}

// POST /v1/conversations/:id/messages
func (h *Handler) SendMessage(c *gin.Context) {
	var body messageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid message body")
		return
	}
	resp, err := h.chat.SendMessage(c.Request.Context(), &chat.SendMessageRequest{
		ConversationID: c.Param("id"),
		SenderID:       c.GetString(userIDKey),
		Text:           body.Text,
		Type:           body.Type,
		Attachments:    body.Attachments,
	})
	respond(c, http.StatusCreated, resp, err)
}

// --- helpers ---

func respond(c *gin.Context, status int, body any, err error) {
	if err != nil {
		code := svcErr.HTTPStatus(err)
		msg := err.Error()
		var e *svcErr.Error
		if errors.As(err, &e) {
			msg = e.Message
		} else if code == http.StatusInternalServerError {
			msg = "internal error"
		}
		c.JSON(code, gin.H{"error": msg, "kind": svcErr.KindOf(err)})
		return
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": svcErr.KindInvalidArgument})
}

// queryInt parses an optional integer query parameter. Writes a 400 and
// reports false when it is malformed.
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
