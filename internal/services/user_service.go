// Package services – UserService
//
// This file implements account registration, login and contact listing on
// top of the storage façade. Usernames are trimmed before they are stored or
// looked up; passwords are compared verbatim.
//
// Observability: public methods are OpenTelemetry-instrumented. Spans never
// carry passwords.
package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-local-messenger/internal/domain"
	"github.com/tbourn/go-local-messenger/internal/repo"
)

// UserService manages local accounts.
type UserService struct {
	Store Executor
}

// NewUserService constructs a UserService over store.
func NewUserService(store Executor) *UserService {
	return &UserService{Store: store}
}

// Register creates an account and returns its id. A blank profileURI is
// stored as absent.
func (s *UserService) Register(ctx context.Context, username, password string, profileURI *string) (int64, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Register")
	defer span.End()

	username = strings.TrimSpace(username)
	if username == "" {
		return 0, ErrEmptyUsername
	}
	if password == "" {
		return 0, ErrEmptyPassword
	}
	span.SetAttributes(attribute.String("user.name", username))

	res, err := s.Store.Execute(ctx, repo.InsertUser{
		Username:   username,
		Password:   password,
		ProfileURI: normalizeURI(profileURI),
	})
	if err != nil {
		if errors.Is(err, repo.ErrUniqueViolation) {
			return 0, ErrUsernameTaken
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert user")
		return 0, err
	}
	span.SetAttributes(attribute.Int64("user.id", res.InsertID))
	return res.InsertID, nil
}

// Login returns the public projection of the user matching username and
// password exactly.
func (s *UserService) Login(ctx context.Context, username, password string) (*domain.Contact, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Login")
	defer span.End()

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if password == "" {
		return nil, ErrEmptyPassword
	}

	res, err := s.Store.Execute(ctx, repo.Authenticate{Username: username, Password: password})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authenticate")
		return nil, err
	}
	if res.Rows.Len() == 0 {
		return nil, ErrInvalidCredentials
	}
	c := repo.ContactFromRow(res.Rows.Item(0))
	span.SetAttributes(attribute.Int64("user.id", c.ID))
	return &c, nil
}

// Contacts lists every other user, ordered by username without regard to
// case.
func (s *UserService) Contacts(ctx context.Context, userID int64) ([]domain.Contact, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Contacts",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	if userID <= 0 {
		return nil, ErrInvalidUser
	}
	res, err := s.Store.Execute(ctx, repo.ListContacts{ExcludeID: userID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list contacts")
		return nil, err
	}
	out := res.Rows.Contacts()
	span.SetAttributes(attribute.Int("contacts.count", len(out)))
	return out, nil
}

func normalizeURI(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
