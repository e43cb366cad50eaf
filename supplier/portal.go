// Package supplier wires the portal client, the session and the proposal cart into one
// object for front ends such as cmd/portal.
package supplier

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-supplier-portal/cart"
	"github.com/jrsteele09/go-supplier-portal/internal/config"
	apperrors "github.com/jrsteele09/go-supplier-portal/internal/errors"
	"github.com/jrsteele09/go-supplier-portal/needs"
	"github.com/jrsteele09/go-supplier-portal/portal"
	"github.com/jrsteele09/go-supplier-portal/session"
	"github.com/jrsteele09/go-supplier-portal/storage"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Portal is a supplier's view of the procurement portal.
type Portal struct {
	cfg      config.Config
	store    storage.Store
	client   *portal.Client
	sessions *session.Manager
	proposal *cart.Cart
}

type options struct {
	store      storage.Store
	httpClient *http.Client
	registerer prometheus.Registerer
	nowTime    func() time.Time
}

// Option defines a function type to modify how a Portal is built.
type Option func(*options)

// WithStore uses store instead of opening the configured driver. The Portal closes it.
func WithStore(store storage.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithMetrics instruments portal requests and registers the collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithNowTime sets the clock used to check token expiry (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(o *options) {
		o.nowTime = nowFunc
	}
}

func New(cfg config.Config, opts ...Option) (*Portal, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	store := o.store
	if store == nil {
		var err error
		if store, err = OpenStore(cfg); err != nil {
			return nil, err
		}
	}

	p, err := build(cfg, store, o)
	if err != nil {
		if cerr := store.Close(); cerr != nil {
			log.Err(cerr).Msg("New: failed to close store")
		}
		return nil, err
	}
	return p, nil
}

func build(cfg config.Config, store storage.Store, o *options) (*Portal, error) {
	clientOpts := []portal.Option{
		portal.WithTokenSource(session.TokenSource(store)),
		portal.WithTimeout(cfg.GetRequestTimeout()),
		portal.WithUserAgent(cfg.GetUserAgent()),
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, portal.WithHTTPClient(o.httpClient))
	}
	if o.registerer != nil {
		metrics, err := portal.NewMetrics(o.registerer)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, portal.WithMetrics(metrics))
	}

	client, err := portal.New(cfg.GetBaseURL(), clientOpts...)
	if err != nil {
		return nil, err
	}

	managerOpts := []session.ManagerOption{session.WithClearOnLogout(storage.CartKey)}
	if o.nowTime != nil {
		managerOpts = append(managerOpts, session.WithNowTime(o.nowTime))
	}
	sessions, err := session.NewManager(store, client, managerOpts...)
	if err != nil {
		return nil, err
	}

	proposal, err := cart.New(store, client)
	if err != nil {
		return nil, err
	}

	sessions.OnLogout(func() {
		if err := proposal.Reset(); err != nil {
			log.Err(err).Msg("Logout: failed to reset proposal cart")
		}
	})

	return &Portal{
		cfg:      cfg,
		store:    store,
		client:   client,
		sessions: sessions,
		proposal: proposal,
	}, nil
}

// Session exposes the session state for presentation.
func (p *Portal) Session() *session.Manager {
	return p.sessions
}

// Cart exposes the proposal selection for presentation.
func (p *Portal) Cart() *cart.Cart {
	return p.proposal
}

// Restore resumes the persisted session without contacting the portal.
func (p *Portal) Restore() session.State {
	return p.sessions.Restore()
}

func (p *Portal) Login(ctx context.Context, email, password string) error {
	return p.sessions.Login(ctx, portal.Credentials{Email: strings.TrimSpace(email), Password: password})
}

// Logout ends the session and empties the cart.
func (p *Portal) Logout() {
	p.sessions.Logout()
}

// Register submits a supplier application and returns the portal's confirmation.
func (p *Portal) Register(ctx context.Context, reg portal.Registration) (string, error) {
	return p.client.Register(ctx, reg)
}

// Needs fetches the published needs. When the deployment requires auth an anonymous
// caller gets apperrors.ErrNotAuthenticated without a request being sent, and a token
// the portal no longer accepts ends the session.
func (p *Portal) Needs(ctx context.Context) ([]needs.Need, error) {
	if p.cfg.GetNeedsRequireAuth() && p.sessions.State() != session.Authenticated {
		return nil, apperrors.Wrapf(apperrors.ErrNotAuthenticated, "[Portal.Needs] login required")
	}

	list, err := p.client.Needs(ctx)
	if err != nil {
		p.endRejectedSession("Needs", err)
		return nil, err
	}
	return list, nil
}

// endRejectedSession logs out when the portal refused the session token.
func (p *Portal) endRejectedSession(op string, err error) {
	if !apperrors.Is(err, apperrors.ErrNotAuthenticated) || p.sessions.State() != session.Authenticated {
		return
	}
	log.Info().Str("op", op).Msg("Session token rejected by the portal, logging out")
	p.sessions.Logout()
}

// Proposal returns the cart rows reconciled against the currently published needs.
func (p *Portal) Proposal(ctx context.Context) ([]cart.Row, error) {
	list, err := p.Needs(ctx)
	if err != nil {
		return nil, err
	}
	return p.proposal.Reconcile(list), nil
}

// Submit sends the cart as one proposal. In session mode the supplier must be logged in
// and email is ignored. A rejected token ends the session as it does for Needs. In
// anonymous mode email identifies the supplier and defaults to the logged in supplier's email.
func (p *Portal) Submit(ctx context.Context, email string) error {
	switch p.cfg.GetSubmitMode() {
	case config.SubmitModeAnonymous:
		if identity := p.sessions.Identity(); identity != nil && strings.TrimSpace(email) == "" {
			email = identity.Email
		}
		return p.proposal.SubmitAs(ctx, email)
	default:
		if p.sessions.State() != session.Authenticated {
			return apperrors.Wrapf(apperrors.ErrNotAuthenticated, "[Portal.Submit] login required")
		}
		err := p.proposal.Submit(ctx)
		p.endRejectedSession("Submit", err)
		return err
	}
}

func (p *Portal) Close() error {
	return errors.Wrap(p.store.Close(), "[Portal.Close] close store")
}
