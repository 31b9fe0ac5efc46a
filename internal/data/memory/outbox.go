package memory

import (
	"context"
	"sort"
	"time"

	"github.com/creator-coin-ledger/internal/domain/outbox"
	"github.com/creator-coin-ledger/internal/domain/shared"
)

type outboxRepo struct{ view }

func (r outboxRepo) Create(_ context.Context, message *outbox.Message) error {
	return r.do(func(st *state) error {
		st.outboxSeq++
		message.ID = st.outboxSeq
		st.outbox[message.ID] = *message
		return nil
	})
}

func (r outboxRepo) GetPending(_ context.Context, limit int) ([]*outbox.Message, error) {
	var out []*outbox.Message
	_ = r.do(func(st *state) error {
		for _, m := range st.outbox {
			if m.Status == shared.OutboxStatusPending {
				found := m
				out = append(out, &found)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r outboxRepo) UpdateStatus(_ context.Context, id int64, status shared.OutboxStatus) error {
	return r.do(func(st *state) error {
		m, ok := st.outbox[id]
		if !ok {
			return outbox.ErrMessageNotFound{ID: id}
		}
		m.Status = status
		now := time.Now().UTC()
		m.LastAttemptAt = &now
		st.outbox[id] = m
		return nil
	})
}

func (r outboxRepo) IncrementAttempts(_ context.Context, id int64) error {
	return r.do(func(st *state) error {
		m, ok := st.outbox[id]
		if !ok {
			return outbox.ErrMessageNotFound{ID: id}
		}
		m.Attempts++
		now := time.Now().UTC()
		m.LastAttemptAt = &now
		st.outbox[id] = m
		return nil
	})
}
