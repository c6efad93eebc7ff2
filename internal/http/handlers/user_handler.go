// User HTTP handlers.
//
// This file exposes REST endpoints for accounts and contacts:
//   - POST   /users      (register)
//   - POST   /sessions   (login)
//   - GET    /contacts   (everyone but the caller)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-local-messenger/internal/domain"
	"github.com/tbourn/go-local-messenger/internal/services"
)

//
// DTOs
//

// RegisterRequest is the JSON payload for creating an account.
type RegisterRequest struct {
	Username   string  `json:"username" example:"alice"`
	Password   string  `json:"password" example:"secret"`
	ProfileURI *string `json:"profile_uri,omitempty" example:"file:///avatars/alice.png"`
}

// LoginRequest is the JSON payload for logging in.
type LoginRequest struct {
	Username string `json:"username" example:"alice"`
	Password string `json:"password" example:"secret"`
}

// ContactsResponse wraps the contact list.
type ContactsResponse struct {
	Contacts []domain.Contact `json:"contacts"`
}

//
// Handlers
//

// Register godoc
// @ID          registerUser
// @Summary     Register an account
// @Description Creates a local account. Usernames are trimmed and unique (case-sensitive).
// @Tags        Users
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RegisterRequest  true  "Account payload"
//
// @Success     201  {object}  handlers.IDResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Username already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	id, err := h.userSvc.Register(c.Request.Context(), req.Username, req.Password, req.ProfileURI)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, IDResponse{ID: id})
	case errors.Is(err, services.ErrEmptyUsername), errors.Is(err, services.ErrEmptyPassword):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrUsernameTaken):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		storageFail(c, err, ErrCodeCreateFailed)
	}
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Returns the user matching username and password exactly. The password is never echoed.
// @Tags        Users
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
//
// @Success     200  {object}  domain.Contact
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid credentials"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sessions [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	contact, err := h.userSvc.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		ok(c, http.StatusOK, contact)
	case errors.Is(err, services.ErrEmptyUsername), errors.Is(err, services.ErrEmptyPassword):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	default:
		storageFail(c, err, ErrCodeInternal)
	}
}

// ListContacts godoc
// @ID          listContacts
// @Summary     List contacts
// @Description Returns every other user ordered by username, ignoring case.
// @Tags        Users
// @Produce     json
//
// @Param       X-User-ID  header  int  true  "Acting user id"  example(1)
//
// @Success     200  {object}  handlers.ContactsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing user"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /contacts [get]
func (h *Handlers) ListContacts(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}

	contacts, err := h.userSvc.Contacts(c.Request.Context(), uid)
	if err != nil {
		storageFail(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ContactsResponse{Contacts: contacts})
}
