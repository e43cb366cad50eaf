package cart_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-supplier-portal/cart"
	apperrors "github.com/jrsteele09/go-supplier-portal/internal/errors"
	"github.com/jrsteele09/go-supplier-portal/internal/utils"
	"github.com/jrsteele09/go-supplier-portal/needs"
	"github.com/jrsteele09/go-supplier-portal/portal"
	"github.com/jrsteele09/go-supplier-portal/storage"
	"github.com/jrsteele09/go-supplier-portal/storage/memstore"
	"github.com/stretchr/testify/require"
)

// fakeSubmitter records every batch and answers with err. When block is set each call
// signals started and waits for release.
type fakeSubmitter struct {
	lock     sync.Mutex
	requests []portal.ProposalRequest
	err      error
	block    bool
	started  chan struct{}
	release  chan struct{}
}

func newBlockingSubmitter() *fakeSubmitter {
	return &fakeSubmitter{
		block:   true,
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (fs *fakeSubmitter) SubmitProposal(ctx context.Context, req portal.ProposalRequest) error {
	fs.lock.Lock()
	fs.requests = append(fs.requests, req)
	err := fs.err
	fs.lock.Unlock()

	if fs.block {
		fs.started <- struct{}{}
		<-fs.release
	}
	return err
}

func (fs *fakeSubmitter) calls() []portal.ProposalRequest {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return append([]portal.ProposalRequest(nil), fs.requests...)
}

type testFixture struct {
	store     *memstore.MemStore
	submitter *fakeSubmitter
	cart      *cart.Cart
}

func setupTestFixture(t *testing.T, submitter *fakeSubmitter) *testFixture {
	t.Helper()
	if submitter == nil {
		submitter = &fakeSubmitter{}
	}

	store := memstore.New()
	c, err := cart.New(store, submitter)
	require.NoError(t, err)
	return &testFixture{store: store, submitter: submitter, cart: c}
}

// failingStore fails writes on demand. Reads always go through.
type failingStore struct {
	*memstore.MemStore
	failSet   atomic.Bool
	failClear atomic.Bool
}

var errDiskFull = errors.New("disk full")

func (fs *failingStore) Set(key, value string) error {
	if fs.failSet.Load() {
		return errDiskFull
	}
	return fs.MemStore.Set(key, value)
}

func (fs *failingStore) Clear(key string) error {
	if fs.failClear.Load() {
		return errDiskFull
	}
	return fs.MemStore.Clear(key)
}

func setupFailingCart(t *testing.T, submitter *fakeSubmitter) (*failingStore, *cart.Cart) {
	t.Helper()
	if submitter == nil {
		submitter = &fakeSubmitter{}
	}

	store := &failingStore{MemStore: memstore.New()}
	c, err := cart.New(store, submitter)
	require.NoError(t, err)
	return store, c
}

func reloadedIDs(t *testing.T, store storage.Store) []string {
	t.Helper()
	c, err := cart.New(store, &fakeSubmitter{})
	require.NoError(t, err)
	return c.IDs()
}

func (f *testFixture) persisted(t *testing.T) []string {
	t.Helper()
	raw, found, err := f.store.Get(storage.CartKey)
	require.NoError(t, err)
	if !found {
		return nil
	}
	var ids []string
	require.NoError(t, json.Unmarshal([]byte(raw), &ids))
	return ids
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := cart.New(nil, &fakeSubmitter{})
	require.Error(t, err)

	_, err = cart.New(memstore.New(), nil)
	require.Error(t, err)
}

func TestCart_AddRemove(t *testing.T) {
	t.Run("add then remove", func(t *testing.T) {
		f := setupTestFixture(t, nil)

		require.NoError(t, f.cart.Add("REQ1"))
		require.NoError(t, f.cart.Add("REQ2"))
		require.NoError(t, f.cart.Remove("REQ1"))

		require.Equal(t, []string{"REQ2"}, f.cart.IDs())
		require.Equal(t, []string{"REQ2"}, f.persisted(t))
		require.False(t, f.cart.Contains("REQ1"))
		require.True(t, f.cart.Contains("REQ2"))
	})

	t.Run("idempotent", func(t *testing.T) {
		f := setupTestFixture(t, nil)

		require.NoError(t, f.cart.Add("REQ1"))
		require.NoError(t, f.cart.Add("REQ1"))
		require.Equal(t, 1, f.cart.Len())
		require.Equal(t, 1, f.store.Writes())

		require.NoError(t, f.cart.Remove("REQ9"))
		require.Equal(t, []string{"REQ1"}, f.cart.IDs())
		require.Equal(t, 1, f.store.Writes())
	})

	t.Run("empty id", func(t *testing.T) {
		f := setupTestFixture(t, nil)
		require.ErrorIs(t, f.cart.Add("  "), apperrors.ErrInvalidRequest)
		require.Zero(t, f.cart.Len())
	})

	t.Run("toggle", func(t *testing.T) {
		f := setupTestFixture(t, nil)

		selected, err := f.cart.Toggle("REQ1")
		require.NoError(t, err)
		require.True(t, selected)

		selected, err = f.cart.Toggle("REQ1")
		require.NoError(t, err)
		require.False(t, selected)
		require.Empty(t, f.persisted(t))
	})
}

func TestCart_PersistedMatchesSelectionAfterEveryMutation(t *testing.T) {
	f := setupTestFixture(t, nil)

	steps := []struct {
		add bool
		id  string
	}{
		{true, "REQ1"}, {true, "REQ2"}, {true, "REQ1"}, {false, "REQ3"},
		{true, "REQ3"}, {false, "REQ1"}, {true, "REQ1"}, {false, "REQ2"},
	}
	for _, step := range steps {
		if step.add {
			require.NoError(t, f.cart.Add(step.id))
		} else {
			require.NoError(t, f.cart.Remove(step.id))
		}

		reloaded, err := cart.New(f.store, f.submitter)
		require.NoError(t, err)
		require.Equal(t, f.cart.IDs(), reloaded.IDs())
	}
	require.Equal(t, []string{"REQ3", "REQ1"}, f.cart.IDs())
}

func TestCart_SaveFailureKeepsSelection(t *testing.T) {
	t.Run("add", func(t *testing.T) {
		store, c := setupFailingCart(t, nil)
		require.NoError(t, c.Add("REQ1"))
		store.failSet.Store(true)

		require.ErrorIs(t, c.Add("REQ2"), errDiskFull)
		require.Equal(t, []string{"REQ1"}, c.IDs())
		require.False(t, c.Contains("REQ2"))
		require.Equal(t, c.IDs(), reloadedIDs(t, store))
	})

	t.Run("first add", func(t *testing.T) {
		store, c := setupFailingCart(t, nil)
		store.failSet.Store(true)

		require.ErrorContains(t, c.Add("REQ1"), "disk full")
		require.Empty(t, c.IDs())
		require.Empty(t, reloadedIDs(t, store))
	})

	t.Run("remove keeps order", func(t *testing.T) {
		store, c := setupFailingCart(t, nil)
		require.NoError(t, c.Add("REQ1"))
		require.NoError(t, c.Add("REQ2"))
		require.NoError(t, c.Add("REQ3"))
		store.failSet.Store(true)

		require.ErrorIs(t, c.Remove("REQ1"), errDiskFull)
		require.Equal(t, []string{"REQ1", "REQ2", "REQ3"}, c.IDs())
		require.Equal(t, c.IDs(), reloadedIDs(t, store))
	})

	t.Run("toggle", func(t *testing.T) {
		store, c := setupFailingCart(t, nil)
		require.NoError(t, c.Add("REQ1"))
		store.failSet.Store(true)

		_, err := c.Toggle("REQ1")
		require.ErrorIs(t, err, errDiskFull)
		require.True(t, c.Contains("REQ1"))

		_, err = c.Toggle("REQ2")
		require.ErrorIs(t, err, errDiskFull)
		require.False(t, c.Contains("REQ2"))
		require.Equal(t, []string{"REQ1"}, reloadedIDs(t, store))
	})
}

func TestCart_LoadPersisted(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "ordered", raw: `["REQ1","REQ2"]`, want: []string{"REQ1", "REQ2"}},
		{name: "duplicates keep first", raw: `["REQ2","REQ1","REQ2"]`, want: []string{"REQ2", "REQ1"}},
		{name: "blank ids dropped", raw: `["REQ1",""," "]`, want: []string{"REQ1"}},
		{name: "object", raw: `{"REQ1":true}`, want: []string{}},
		{name: "not json", raw: `not json`, want: []string{}},
		{name: "numbers", raw: `[1,2,3]`, want: []string{}},
		{name: "null", raw: `null`, want: []string{}},
		{name: "empty", raw: ``, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.New()
			require.NoError(t, store.Set(storage.CartKey, tt.raw))

			c, err := cart.New(store, &fakeSubmitter{})
			require.NoError(t, err)
			require.Equal(t, tt.want, c.IDs())
			require.Equal(t, tt.want, c.LoadPersisted())
		})
	}
}

func TestCart_Reconcile(t *testing.T) {
	f := setupTestFixture(t, nil)
	require.NoError(t, f.cart.Add("REQ2"))
	require.NoError(t, f.cart.Add("GONE"))
	require.NoError(t, f.cart.Add("REQ1"))

	current := []needs.Need{
		{RequestID: "REQ1", Title: "Бумага А4", TotalQuantity: 500, Unit: utils.Ptr("пачка")},
		{RequestID: "REQ2", Title: "Картридж"},
		{RequestID: "REQ3", Title: "Степлер"},
	}
	rows := f.cart.Reconcile(current)

	require.Len(t, rows, 3)
	require.Equal(t, "REQ2", rows[0].RequestID)
	require.Equal(t, "Картридж", rows[0].Need.Title)
	require.False(t, rows[0].Missing)

	require.Equal(t, "GONE", rows[1].RequestID)
	require.Nil(t, rows[1].Need)
	require.True(t, rows[1].Missing)

	require.Equal(t, "500 пачка", rows[2].Need.Quantity())

	require.Equal(t, []string{"REQ2", "GONE", "REQ1"}, f.cart.IDs())
	require.Len(t, f.cart.Reconcile(nil), 3)
}

func TestCart_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("success empties the cart", func(t *testing.T) {
		f := setupTestFixture(t, nil)
		require.NoError(t, f.cart.Add("REQ2"))

		require.NoError(t, f.cart.Submit(ctx))

		require.Empty(t, f.cart.IDs())
		require.Empty(t, f.persisted(t))
		require.Empty(t, f.cart.Err())
		require.Equal(t, []portal.ProposalRequest{{RequestIDs: []string{"REQ2"}}}, f.submitter.calls())
	})

	t.Run("server message on failure", func(t *testing.T) {
		f := setupTestFixture(t, &fakeSubmitter{
			err: &portal.APIError{Status: http.StatusBadRequest, Message: "ИНН не найден", Err: apperrors.ErrRequestFailed},
		})
		require.NoError(t, f.cart.Add("REQ1"))
		require.NoError(t, f.cart.Add("REQ2"))

		err := f.cart.Submit(ctx)
		require.Error(t, err)
		require.Equal(t, "ИНН не найден", err.Error())
		require.Equal(t, "ИНН не найден", f.cart.Err())
		require.Equal(t, []string{"REQ1", "REQ2"}, f.cart.IDs())
		require.Equal(t, []string{"REQ1", "REQ2"}, f.persisted(t))
		require.False(t, f.cart.Loading())
	})

	t.Run("fallback message", func(t *testing.T) {
		f := setupTestFixture(t, &fakeSubmitter{err: context.DeadlineExceeded})
		require.NoError(t, f.cart.Add("REQ1"))

		require.ErrorIs(t, f.cart.Submit(ctx), context.DeadlineExceeded)
		require.Equal(t, portal.MsgSubmitFailed, f.cart.Err())
		require.Equal(t, []string{"REQ1"}, f.cart.IDs())
	})

	t.Run("empty selection sends nothing", func(t *testing.T) {
		f := setupTestFixture(t, nil)

		require.NoError(t, f.cart.Submit(ctx))
		require.NoError(t, f.cart.SubmitAs(ctx, "a@b.co"))
		require.Empty(t, f.submitter.calls())
		require.Zero(t, f.store.Writes())
	})

	t.Run("anonymous submitter", func(t *testing.T) {
		f := setupTestFixture(t, nil)
		require.NoError(t, f.cart.Add("REQ1"))

		require.ErrorIs(t, f.cart.SubmitAs(ctx, " "), apperrors.ErrSubmitterRequired)
		require.Empty(t, f.submitter.calls())

		require.NoError(t, f.cart.SubmitAs(ctx, "a@b.co"))
		require.Equal(t, []portal.ProposalRequest{{Email: "a@b.co", RequestIDs: []string{"REQ1"}}}, f.submitter.calls())
	})
}

func TestCart_SubmitInFlight(t *testing.T) {
	ctx := context.Background()

	t.Run("second submit is refused and additions survive", func(t *testing.T) {
		submitter := newBlockingSubmitter()
		f := setupTestFixture(t, submitter)
		require.NoError(t, f.cart.Add("REQ1"))

		done := make(chan error, 1)
		go func() { done <- f.cart.Submit(ctx) }()
		<-submitter.started

		require.True(t, f.cart.Loading())
		require.ErrorIs(t, f.cart.Submit(ctx), apperrors.ErrSubmitInProgress)
		require.NoError(t, f.cart.Add("REQ2"))

		close(submitter.release)
		require.NoError(t, <-done)

		require.False(t, f.cart.Loading())
		require.Equal(t, []string{"REQ2"}, f.cart.IDs())
		require.Equal(t, []string{"REQ2"}, f.persisted(t))
		require.Len(t, submitter.calls(), 1)
	})

	t.Run("reset during submit discards the response", func(t *testing.T) {
		submitter := newBlockingSubmitter()
		f := setupTestFixture(t, submitter)
		require.NoError(t, f.cart.Add("REQ1"))

		done := make(chan error, 1)
		go func() { done <- f.cart.Submit(ctx) }()
		<-submitter.started

		require.NoError(t, f.cart.Reset())
		require.NoError(t, f.cart.Add("REQ7"))
		close(submitter.release)

		select {
		case err := <-done:
			require.ErrorIs(t, err, apperrors.ErrStaleResponse)
		case <-time.After(time.Second):
			t.Fatal("submit did not return")
		}
		require.Equal(t, []string{"REQ7"}, f.cart.IDs())
		require.False(t, f.cart.Loading())
	})
}

func TestCart_SubmitSaveFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("emptied cart falls back to clear", func(t *testing.T) {
		store, c := setupFailingCart(t, nil)
		require.NoError(t, c.Add("REQ1"))
		require.NoError(t, c.Add("REQ2"))
		store.failSet.Store(true)

		require.NoError(t, c.Submit(ctx))
		require.Empty(t, c.IDs())
		require.Empty(t, reloadedIDs(t, store))
	})

	t.Run("saved copy cannot be corrected", func(t *testing.T) {
		store, c := setupFailingCart(t, nil)
		require.NoError(t, c.Add("REQ1"))
		store.failSet.Store(true)
		store.failClear.Store(true)

		err := c.Submit(ctx)
		require.ErrorIs(t, err, errDiskFull)
		require.ErrorContains(t, err, "proposal accepted")
		require.Empty(t, c.IDs())
		require.Empty(t, c.Err())
		require.False(t, c.Loading())
	})

	t.Run("additions made in flight cannot be saved", func(t *testing.T) {
		submitter := newBlockingSubmitter()
		store, c := setupFailingCart(t, submitter)
		require.NoError(t, c.Add("REQ1"))

		done := make(chan error, 1)
		go func() { done <- c.Submit(ctx) }()
		<-submitter.started
		require.NoError(t, c.Add("REQ2"))
		store.failSet.Store(true)
		close(submitter.release)

		require.ErrorIs(t, <-done, errDiskFull)
		require.Equal(t, []string{"REQ2"}, c.IDs())
		require.Equal(t, []string{"REQ1", "REQ2"}, reloadedIDs(t, store))
	})
}

func TestCart_Reset(t *testing.T) {
	f := setupTestFixture(t, &fakeSubmitter{err: &portal.APIError{Message: "Ошибка"}})
	require.NoError(t, f.cart.Add("REQ1"))
	require.Error(t, f.cart.Submit(context.Background()))
	require.NotEmpty(t, f.cart.Err())

	require.NoError(t, f.cart.Reset())
	require.NoError(t, f.cart.Reset())

	require.Zero(t, f.cart.Len())
	require.Empty(t, f.cart.Err())
	_, found, err := f.store.Get(storage.CartKey)
	require.NoError(t, err)
	require.False(t, found)
}
