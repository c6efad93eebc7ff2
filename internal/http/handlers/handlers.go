package handlers

// Handlers validate input, call the services and translate results into HTTP
// responses. The acting user is named by the numeric X-User-ID header; there
// are no tokens.

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-local-messenger/internal/domain"
	"github.com/tbourn/go-local-messenger/internal/http/middleware"
	"github.com/tbourn/go-local-messenger/internal/repo"
	"github.com/tbourn/go-local-messenger/internal/utils"
)

//
// Service contracts (context-aware)
//

// UserService defines the account operations consumed by HTTP handlers.
type UserService interface {
	// Register creates an account and returns its id.
	Register(ctx context.Context, username, password string, profileURI *string) (int64, error)
	// Login returns the public projection of the matching user.
	Login(ctx context.Context, username, password string) (*domain.Contact, error)
	// Contacts lists every user except userID.
	Contacts(ctx context.Context, userID int64) ([]domain.Contact, error)
}

// ConversationService defines direct-message operations.
type ConversationService interface {
	Send(ctx context.Context, fromID, toID int64, content string) (int64, error)
	History(ctx context.Context, a, b int64) ([]domain.Message, error)
	Edit(ctx context.Context, id int64, content string) error
	Delete(ctx context.Context, id int64) error
}

// Handlers groups the HTTP endpoints for accounts, contacts and messages.
type Handlers struct {
	userSvc UserService
	convSvc ConversationService
}

// New constructs a Handlers instance bound to the given services.
func New(userSvc UserService, convSvc ConversationService) *Handlers {
	return &Handlers{userSvc: userSvc, convSvc: convSvc}
}

// HeaderUserID names the header carrying the acting user's id.
const HeaderUserID = "X-User-ID"

// currentUser extracts the acting user id from the Gin context (if upstream
// middleware set "userID") or from the X-User-ID header. It aborts with 401
// and reports false when neither holds a positive integer.
func currentUser(c *gin.Context) (int64, bool) {
	if v, ok := c.Get("userID"); ok {
		if id, ok := v.(int64); ok && id > 0 {
			return id, true
		}
	}
	if id, ok := utils.ParseID(c.GetHeader(HeaderUserID)); ok {
		return id, true
	}
	fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "X-User-ID header must carry a positive user id")
	return 0, false
}

// pathID parses the positive integer path parameter name, aborting with 400
// when it is malformed.
func pathID(c *gin.Context, name string) (int64, bool) {
	if id, ok := utils.ParseID(c.Param(name)); ok {
		return id, true
	}
	fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a positive integer")
	return 0, false
}

// storageFail maps an unexpected service error. A rejected write-through
// (strict persistence) is reported as 503 so clients can retry.
func storageFail(c *gin.Context, err error, code string) {
	middleware.LoggerFrom(c).Error().Err(err).Str("code", code).Msg("storage operation failed")
	if errors.Is(err, repo.ErrPersistence) {
		fail(c, http.StatusServiceUnavailable, ErrCodeStorageFailed, "storage temporarily unavailable")
		return
	}
	fail(c, http.StatusInternalServerError, code, err.Error())
}
