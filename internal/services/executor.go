package services

import (
	"context"

	"github.com/tbourn/go-local-messenger/internal/repo"
)

// Executor is the storage contract the services need. *repo.Store
// satisfies it.
type Executor interface {
	Execute(ctx context.Context, q repo.Query) (*repo.Result, error)
}

var _ Executor = (*repo.Store)(nil)
