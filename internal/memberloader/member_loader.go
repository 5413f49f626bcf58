package memberloader

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/memberdesk/internal/domain"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

type memberSource interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Member, error)
}

type MemberLoader struct {
	Loader *dataloader.Loader
}

func NewMemberLoader(repo memberSource) *MemberLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				return errorResults(len(keys), fmt.Errorf("invalid UUID: %w", err))
			}
			ids[i] = id
		}

		members, err := repo.GetByIDs(ctx, ids)
		if err != nil {
			return errorResults(len(keys), err)
		}

		memberMap := make(map[uuid.UUID]domain.Member, len(members))
		for _, m := range members {
			memberMap[m.ID] = m
		}

		// Results must line up with keys
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if m, ok := memberMap[id]; ok {
				member := m
				results[i] = &dataloader.Result{Data: &member}
			} else {
				results[i] = &dataloader.Result{Data: (*domain.Member)(nil)}
			}
		}

		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))

	return &MemberLoader{Loader: loader}
}

// LoadMany resolves members by id in a single batch. Unknown ids map to nil.
func (l *MemberLoader) LoadMany(ctx context.Context, ids []uuid.UUID) ([]*domain.Member, error) {
	if len(ids) == 0 {
		return []*domain.Member{}, nil
	}
	keys := make(dataloader.Keys, len(ids))
	for i, id := range ids {
		keys[i] = dataloader.StringKey(id.String())
	}

	values, errs := l.Loader.LoadMany(ctx, keys)()
	members := make([]*domain.Member, len(ids))
	for i, value := range values {
		if i < len(errs) && errs[i] != nil {
			return nil, errs[i]
		}
		member, _ := value.(*domain.Member)
		members[i] = member
	}
	return members, nil
}

func errorResults(n int, err error) []*dataloader.Result {
	results := make([]*dataloader.Result, n)
	for i := range results {
		results[i] = &dataloader.Result{Error: err}
	}
	return results
}
