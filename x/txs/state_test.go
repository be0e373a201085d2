package txs

import (
	"context"
	"testing"
	"time"

	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/cosigntest/assert"
	"github.com/iov-one/cosign/errors"
	"github.com/iov-one/cosign/store"
)

func TestStateCanTransition(t *testing.T) {
	cases := map[string]struct {
		state *State
		to    Status
		want  bool
	}{
		"collecting to ready":          {state: &State{Status: Collecting}, to: ReadyToBroadcast, want: true},
		"collecting to broadcasting":   {state: &State{Status: Collecting}, to: Broadcasting, want: false},
		"ready to broadcasting":        {state: &State{Status: ReadyToBroadcast}, to: Broadcasting, want: true},
		"ready to broadcast":           {state: &State{Status: ReadyToBroadcast}, to: Broadcast, want: false},
		"ready cannot be assembled":    {state: &State{Status: ReadyToBroadcast}, to: Failed, want: true},
		"broadcasting to broadcast":    {state: &State{Status: Broadcasting}, to: Broadcast, want: true},
		"broadcasting to failed":       {state: &State{Status: Broadcasting}, to: Failed, want: true},
		"broadcast is terminal":        {state: &State{Status: Broadcast}, to: Broadcasting, want: false},
		"retryable failure":            {state: &State{Status: Failed, Retryable: true}, to: Broadcasting, want: true},
		"non retryable failure":        {state: &State{Status: Failed}, to: Broadcasting, want: false},
		"failure back to ready":        {state: &State{Status: Failed}, to: ReadyToBroadcast, want: true},
		"failure back to collecting":   {state: &State{Status: Failed}, to: Collecting, want: false},
		"broadcast back to collecting": {state: &State{Status: Broadcast}, to: Collecting, want: false},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.state.CanTransition(tc.to))
		})
	}
}

func TestStateValidate(t *testing.T) {
	now := cosign.Now()
	cases := map[string]struct {
		state   *State
		wantErr *errors.Error
	}{
		"collecting":            {state: &State{Status: Collecting}},
		"unknown status":        {state: &State{Status: "lost"}, wantErr: errors.ErrState},
		"broadcast no hash":     {state: &State{Status: Broadcast}, wantErr: errors.ErrEmpty},
		"broadcast":             {state: &State{Status: Broadcast, TxHash: "AB"}},
		"failed no reason":      {state: &State{Status: Failed}, wantErr: errors.ErrEmpty},
		"broadcasting":          {state: &State{Status: Broadcasting, LeaseUntil: now}},
		"broadcasting no lease": {state: &State{Status: Broadcasting}, wantErr: errors.ErrEmpty},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			assert.IsErr(t, tc.wantErr, tc.state.Validate())
		})
	}
}

func TestStateLease(t *testing.T) {
	now := cosign.Now()
	s := &State{Status: Broadcasting, LeaseUntil: now.Add(time.Minute)}
	assert.Equal(t, false, s.IsLeaseExpired(now))
	assert.Equal(t, true, s.IsLeaseExpired(now.Add(2*time.Minute)))

	s.Status = Broadcast
	assert.Equal(t, false, s.IsLeaseExpired(now.Add(2*time.Minute)))
}

func TestStateBucketTransition(t *testing.T) {
	db := store.MemStore()
	ctx := context.Background()
	b := NewStateBucket()
	id := []byte("tx")

	err := db.Update(ctx, func(kv cosign.KVStore) error {
		if err := b.Put(kv, id, &State{Status: Collecting, UpdatedAt: cosign.Now()}); err != nil {
			return err
		}

		_, err := b.Transition(kv, id, Broadcasting, nil)
		assert.IsErr(t, errors.ErrState, err)

		s, err := b.Transition(kv, id, ReadyToBroadcast, nil)
		assert.Nil(t, err)
		assert.Equal(t, ReadyToBroadcast, s.Status)

		s, err = b.Transition(kv, id, Broadcasting, func(s *State) {
			s.Attempt++
			s.LeaseUntil = cosign.Now().Add(time.Minute)
		})
		assert.Nil(t, err)
		assert.Equal(t, int64(1), s.Attempt)

		// A failed state requires a reason.
		_, err = b.Transition(kv, id, Failed, nil)
		assert.IsErr(t, errors.ErrEmpty, err)

		_, err = b.Transition(kv, []byte("other"), ReadyToBroadcast, nil)
		assert.IsErr(t, errors.ErrTransactionNotFound, err)
		return nil
	})
	assert.Nil(t, err)

	s, err := GetState(ctx, db, id)
	assert.Nil(t, err)
	assert.Equal(t, Broadcasting, s.Status)
}
