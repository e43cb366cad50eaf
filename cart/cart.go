// Package cart keeps the supplier's proposal: the set of need ids picked for one batch submission.
package cart

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	apperrors "github.com/jrsteele09/go-supplier-portal/internal/errors"
	"github.com/jrsteele09/go-supplier-portal/needs"
	"github.com/jrsteele09/go-supplier-portal/portal"
	"github.com/jrsteele09/go-supplier-portal/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Submitter sends a proposal batch. portal.Client implements it.
type Submitter interface {
	SubmitProposal(ctx context.Context, req portal.ProposalRequest) error
}

// Row is one line of the proposal view. Need is nil and Missing is set when the id is
// no longer among the published needs; such rows stay until the supplier removes them.
type Row struct {
	RequestID string      `json:"requestId" yaml:"requestId"`
	Need      *needs.Need `json:"need,omitempty" yaml:"need,omitempty"`
	Missing   bool        `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// Cart is the persisted selection. Every mutation rewrites the persisted copy before
// the lock is released, so the store never lags the selection by more than one write.
type Cart struct {
	store     storage.Store
	submitter Submitter

	lock       sync.RWMutex
	selected   *idSet
	submitting bool
	lastErr    string
	epoch      uint64
}

func New(store storage.Store, submitter Submitter) (*Cart, error) {
	if store == nil {
		return nil, errors.New("[cart.New] store is required")
	}
	if submitter == nil {
		return nil, errors.New("[cart.New] submitter is required")
	}

	c := &Cart{
		store:     store,
		submitter: submitter,
		selected:  newIDSet(),
	}
	c.LoadPersisted()
	return c, nil
}

// LoadPersisted replaces the in-memory selection with the persisted one and returns it.
// A missing or malformed payload loads as an empty selection.
func (c *Cart) LoadPersisted() []string {
	ids := c.readPersisted()

	c.lock.Lock()
	defer c.lock.Unlock()
	c.selected = newIDSet(ids...)
	return c.selected.list()
}

func (c *Cart) readPersisted() []string {
	raw, found, err := c.store.Get(storage.CartKey)
	if err != nil {
		log.Warn().Err(err).Msg("LoadPersisted: unreadable proposal cart, starting empty")
		return nil
	}
	if !found || strings.TrimSpace(raw) == "" {
		return nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		log.Warn().Err(apperrors.Wrapf(apperrors.ErrMalformedState, "%v", err)).Msg("LoadPersisted: discarding proposal cart")
		return nil
	}

	out := ids[:0]
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Add selects id. Adding a selected id changes nothing and writes nothing. When the
// selection cannot be saved it is left as it was.
func (c *Cart) Add(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "[Cart.Add] empty request id")
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.selected.add(id) {
		return nil
	}
	if err := c.persistLocked(); err != nil {
		c.selected.remove(id)
		return err
	}
	return nil
}

// Remove deselects id. Removing an absent id changes nothing and writes nothing. When the
// selection cannot be saved it is left as it was, order included.
func (c *Cart) Remove(id string) error {
	id = strings.TrimSpace(id)

	c.lock.Lock()
	defer c.lock.Unlock()
	before := c.selected.list()
	if !c.selected.remove(id) {
		return nil
	}
	if err := c.persistLocked(); err != nil {
		c.selected = newIDSet(before...)
		return err
	}
	return nil
}

// Toggle adds id when absent and removes it otherwise. It reports whether id ends up selected.
func (c *Cart) Toggle(id string) (bool, error) {
	if c.Contains(id) {
		return false, c.Remove(id)
	}
	return true, c.Add(id)
}

func (c *Cart) Contains(id string) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.selected.contains(strings.TrimSpace(id))
}

// IDs returns the selection in the order it was made.
func (c *Cart) IDs() []string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.selected.list()
}

func (c *Cart) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.selected.len()
}

// Reconcile pairs every selected id with its need from current. It never changes the selection.
func (c *Cart) Reconcile(current []needs.Need) []Row {
	catalog := needs.NewCatalog(current)
	ids := c.IDs()

	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		need, ok := catalog.Get(id)
		rows = append(rows, Row{RequestID: id, Need: need, Missing: !ok})
	}
	return rows
}

// Submit sends the whole selection as one proposal on behalf of the logged in supplier.
func (c *Cart) Submit(ctx context.Context) error {
	return c.submit(ctx, "")
}

// SubmitAs sends the selection for an anonymous supplier identified by email.
func (c *Cart) SubmitAs(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperrors.ErrSubmitterRequired
	}
	return c.submit(ctx, email)
}

// submit is a no-op for an empty selection. On success exactly the submitted ids are
// dropped; ids added while the request was in flight stay selected. On failure the
// selection is left as it was and Err() holds the message to show. An accepted batch whose
// removal cannot be saved returns the store error.
func (c *Cart) submit(ctx context.Context, email string) error {
	c.lock.Lock()
	if c.submitting {
		c.lock.Unlock()
		return apperrors.ErrSubmitInProgress
	}
	ids := c.selected.list()
	if len(ids) == 0 {
		c.lock.Unlock()
		return nil
	}
	c.submitting = true
	c.lastErr = ""
	started := c.epoch
	c.lock.Unlock()

	err := c.submitter.SubmitProposal(ctx, portal.ProposalRequest{Email: email, RequestIDs: ids})

	c.lock.Lock()
	defer c.lock.Unlock()
	c.submitting = false

	if c.epoch != started {
		log.Debug().Msg("Submit: cart was reset while submitting, response discarded")
		return apperrors.ErrStaleResponse
	}
	if err != nil {
		c.lastErr = portal.Message(err, portal.MsgSubmitFailed)
		return err
	}

	for _, id := range ids {
		c.selected.remove(id)
	}
	log.Info().Int("needs", len(ids)).Msg("Proposal submitted")
	if err := c.persistLocked(); err != nil {
		if c.selected.len() == 0 {
			if cerr := c.store.Clear(storage.CartKey); cerr == nil {
				return nil
			}
		}
		log.Err(err).Msg("Submit: proposal accepted but the saved cart still lists the submitted needs")
		return errors.Wrap(err, "[Cart.Submit] proposal accepted, saved cart is stale")
	}
	return nil
}

// Reset empties the selection and its persisted form. A submission still in flight is
// discarded when it returns.
func (c *Cart) Reset() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.epoch++
	c.selected = newIDSet()
	c.lastErr = ""
	return errors.Wrap(c.store.Clear(storage.CartKey), "[Cart.Reset] clear persisted cart")
}

// Loading reports a submission in flight.
func (c *Cart) Loading() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.submitting
}

// Err is the message of the last failed submission. A new submission clears it.
func (c *Cart) Err() string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.lastErr
}

func (c *Cart) persistLocked() error {
	payload, err := json.Marshal(c.selected.list())
	if err != nil {
		return errors.Wrap(err, "[Cart.persist] encode selection")
	}
	return errors.Wrap(c.store.Set(storage.CartKey, string(payload)), "[Cart.persist] save selection")
}
