// Conversation HTTP handlers.
//
// This file exposes REST endpoints for direct messages:
//   - GET    /conversations/{peer}/messages   (history, ETag support)
//   - POST   /conversations/{peer}/messages   (send)
//   - PUT    /messages/{id}                   (edit)
//   - DELETE /messages/{id}                   (delete)
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-local-messenger/internal/domain"
	"github.com/tbourn/go-local-messenger/internal/services"
)

//
// DTOs
//

// SendMessageRequest is the JSON payload for sending a message.
type SendMessageRequest struct {
	Content string `json:"content" example:"hi there"`
}

// EditMessageRequest is the JSON payload for editing a message.
type EditMessageRequest struct {
	Content string `json:"content" example:"hello there"`
}

// MessagesResponse wraps a conversation, oldest first.
type MessagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

// conversationETag fingerprints the visible state of a conversation. Any
// send, edit or delete changes it.
func conversationETag(a, b int64, msgs []domain.Message) string {
	d := xxhash.New()
	var buf []byte
	for _, m := range msgs {
		buf = buf[:0]
		buf = strconv.AppendInt(buf, m.ID, 10)
		buf = append(buf, 0)
		buf = strconv.AppendInt(buf, m.CreatedAt, 10)
		buf = append(buf, 0)
		buf = append(buf, m.Content...)
		buf = append(buf, 0)
		_, _ = d.Write(buf)
	}
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf(`W/"conv:%d:%d:%d:%x"`, a, b, len(msgs), d.Sum64())
}

//
// Handlers
//

// ListMessages godoc
// @ID          listMessages
// @Summary     Conversation history
// @Description Returns the messages exchanged with peer in either direction, oldest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Messages
// @Produce     json
//
// @Param       X-User-ID      header  int     true   "Acting user id"              example(1)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"  example(W/\"conv:1:2:2:9f2c\")
// @Param       peer           path    int     true   "Peer user id"                example(2)
//
// @Success     200  {object} handlers.MessagesResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing user"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{peer}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	peer, okPeer := pathID(c, "peer")
	if !okPeer {
		return
	}

	msgs, err := h.convSvc.History(c.Request.Context(), uid, peer)
	if err != nil {
		storageFail(c, err, ErrCodeListFailed)
		return
	}

	etag := conversationETag(uid, peer, msgs)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}
	ok(c, http.StatusOK, MessagesResponse{Messages: msgs})
}

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send a message
// @Description Stores a message from the acting user to peer, stamped with the current time.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  int  true  "Acting user id"  example(1)
// @Param       peer       path    int  true  "Peer user id"    example(2)
// @Param       body       body    handlers.SendMessageRequest  true  "Message payload"
//
// @Success     201  {object}  handlers.IDResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing user"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Failure     503  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router      /conversations/{peer}/messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	peer, okPeer := pathID(c, "peer")
	if !okPeer {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	id, err := h.convSvc.Send(c.Request.Context(), uid, peer, req.Content)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, IDResponse{ID: id})
	case errors.Is(err, services.ErrEmptyContent), errors.Is(err, services.ErrInvalidUser):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		storageFail(c, err, ErrCodeCreateFailed)
	}
}

// EditMessage godoc
// @ID          editMessage
// @Summary     Edit a message
// @Description Replaces the content of a message in place.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  int  true  "Acting user id"  example(1)
// @Param       id         path    int  true  "Message id"      example(7)
// @Param       body       body    handlers.EditMessageRequest  true  "New content"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Message not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /messages/{id} [put]
func (h *Handlers) EditMessage(c *gin.Context) {
	if _, okUser := currentUser(c); !okUser {
		return
	}
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	err := h.convSvc.Edit(c.Request.Context(), id, req.Content)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrEmptyContent):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	default:
		storageFail(c, err, ErrCodeUpdateFailed)
	}
}

// DeleteMessage godoc
// @ID          deleteMessage
// @Summary     Delete a message
// @Tags        Messages
// @Produce     json
//
// @Param       X-User-ID  header  int  true  "Acting user id"  example(1)
// @Param       id         path    int  true  "Message id"      example(7)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Message not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /messages/{id} [delete]
func (h *Handlers) DeleteMessage(c *gin.Context) {
	if _, okUser := currentUser(c); !okUser {
		return
	}
	id, okID := pathID(c, "id")
	if !okID {
		return
	}

	err := h.convSvc.Delete(c.Request.Context(), id)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	default:
		storageFail(c, err, ErrCodeDeleteFailed)
	}
}
