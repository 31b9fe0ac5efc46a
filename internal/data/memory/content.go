package memory

import (
	"context"
	"sort"
	"time"

	"github.com/creator-coin-ledger/internal/domain/content"
)

type contentRepo struct{ view }

func (r contentRepo) Upsert(_ context.Context, item *content.Item) error {
	return r.do(func(st *state) error {
		next := *item
		if cur, ok := st.items[item.ID]; ok {
			if st.itemVersions[item.ID].After(item.UpdatedAt) {
				return nil
			}
			next.UnlockCount = cur.UnlockCount
			next.RevenueTotal = cur.RevenueTotal
			next.CreatedAt = cur.CreatedAt
		}
		st.items[item.ID] = next
		st.itemVersions[item.ID] = item.UpdatedAt
		return nil
	})
}

func (r contentRepo) Get(_ context.Context, id string) (*content.Item, error) {
	var out content.Item
	err := r.do(func(st *state) error {
		item, ok := st.items[id]
		if !ok {
			return content.ErrContentNotFound{ID: id}
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r contentRepo) ListSubscriberOnly(_ context.Context, ownerID string) ([]*content.Item, error) {
	var out []*content.Item
	_ = r.do(func(st *state) error {
		for _, item := range st.items {
			if item.OwnerID == ownerID && item.SubscriberOnly && !item.Deleted {
				found := item
				out = append(out, &found)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r contentRepo) GrantAccess(_ context.Context, grant content.Grant) error {
	return r.do(func(st *state) error {
		key := grantKey{contentID: grant.ContentID, userID: grant.UserID, sourceID: grant.SourceID}
		if _, ok := st.grants[key]; !ok {
			st.grants[key] = grant
		}
		return nil
	})
}

func (r contentRepo) HasAccess(_ context.Context, contentID, userID string) (bool, error) {
	found := false
	_ = r.do(func(st *state) error {
		for key := range st.grants {
			if key.contentID == contentID && key.userID == userID {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, nil
}

func (r contentRepo) RevokeBySource(_ context.Context, sourceID string) (int64, error) {
	var n int64
	err := r.do(func(st *state) error {
		for key := range st.grants {
			if key.sourceID == sourceID {
				delete(st.grants, key)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r contentRepo) RecordUnlock(_ context.Context, contentID string, countDelta, revenueDelta int64, at time.Time) error {
	return r.do(func(st *state) error {
		item, ok := st.items[contentID]
		if !ok {
			return content.ErrContentNotFound{ID: contentID}
		}
		item.UnlockCount += countDelta
		item.RevenueTotal += revenueDelta
		item.UpdatedAt = at
		st.items[contentID] = item
		return nil
	})
}
