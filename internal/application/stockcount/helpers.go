package stockcount

import (
	"context"
	"errors"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/google/uuid"
)

// requireInProgress locks the count row for the rest of the transaction and
// fails with a state conflict unless it is InProgress. Complete and Commit take
// the same row lock, so a write that passes the gate lands before they do.
func requireInProgress(ctx context.Context, repos TransactionalRepositories, countID uuid.UUID) error {
	count, err := repos.CountRepo().FindByIDForUpdate(ctx, countID)
	if err != nil {
		return notFoundAs(err, "count")
	}
	return count.EnsureInProgress()
}

// notFoundAs names the missing resource when err is a not-found error
func notFoundAs(err error, resource string) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NewNotFound(resource)
	}
	return err
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
