// SPDX-License-Identifier: AGPL-3.0-only

// Package authflow runs the VK ID authorization handshake: a one-time PKCE
// verifier is created per attempt, the identity widget or the redirect page
// hands back the code, and the backend trades it for a session token.
package authflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/fluffyriot/vkresender/internal/logging"
	"github.com/fluffyriot/vkresender/internal/vkapi"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

type Phase int

const (
	Idle Phase = iota
	WidgetPending
	RedirectReceived
	Exchanging
	Authorized
	// Linked means the account was attached on the backend but no session
	// token was issued.
	Linked
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case WidgetPending:
		return "widget_pending"
	case RedirectReceived:
		return "redirect_received"
	case Exchanging:
		return "exchanging"
	case Authorized:
		return "authorized"
	case Linked:
		return "linked"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

var transitions = map[Phase][]Phase{
	Idle:             {WidgetPending, Failed},
	WidgetPending:    {RedirectReceived, Failed},
	RedirectReceived: {Exchanging, Failed},
	Exchanging:       {Authorized, Linked, Failed},
}

var (
	ErrWidget          = errors.New("identity widget reported an error")
	ErrMissingCode     = errors.New("authorization code or state is missing")
	ErrMissingVerifier = errors.New("no code verifier stored for this attempt")
	ErrStateMismatch   = errors.New("authorization state does not match this attempt")
	ErrExchange        = errors.New("token exchange failed")
)

// Store is the slice of the operator session the handshake touches. The
// handshake is the only writer of the token.
type Store interface {
	SetToken(token string)
	Verifier() string
	SetVerifier(v string)
	ClearVerifier()
	AuthState() string
	SetAuthState(s string)
}

type Exchanger interface {
	ExchangeCode(ctx context.Context, ex vkapi.CodeExchange) (*vkapi.CallbackResponse, error)
}

// Callback is what the widget success event or the redirect page delivers.
type Callback struct {
	Code     string `json:"code" form:"code"`
	State    string `json:"state" form:"state"`
	DeviceID string `json:"device_id" form:"device_id"`
	Error    string `json:"error" form:"error"`
}

// Start describes a freshly begun attempt, enough to render the widget or
// send the browser to VK ID.
type Start struct {
	URL       string
	State     string
	Challenge string
	AppID     string
	Redirect  string
}

type Result struct {
	Phase Phase
	Err   error
}

// Next is the page the operator goes to after the attempt: the dashboard on
// success, the start of the flow otherwise.
func (r Result) Next() string {
	if r.Phase == Authorized {
		return "/main"
	}
	return "/auth"
}

type Handshake struct {
	exchanger Exchanger
	provider  *Provider
	log       logging.Logger
}

func New(exchanger Exchanger, provider *Provider, log logging.Logger) *Handshake {
	return &Handshake{
		exchanger: exchanger,
		provider:  provider,
		log:       log.With("component", "authflow"),
	}
}

type attempt struct {
	phase Phase
	log   logging.Logger
}

func (a *attempt) advance(ctx context.Context, to Phase) {
	for _, allowed := range transitions[a.phase] {
		if allowed == to {
			a.log.Info(ctx, "auth transition", "from", a.phase, "to", to)
			a.phase = to
			return
		}
	}
	panic(fmt.Sprintf("authflow: illegal transition %s -> %s", a.phase, to))
}

// Begin starts a new attempt: a fresh verifier and state replace whatever a
// previous attempt left behind.
func (h *Handshake) Begin(ctx context.Context, store Store) Start {
	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()

	store.SetVerifier(verifier)
	store.SetAuthState(state)

	a := &attempt{phase: Idle, log: h.log}
	a.advance(ctx, WidgetPending)

	return Start{
		URL:       h.provider.AuthURL(state, verifier),
		State:     state,
		Challenge: oauth2.S256ChallengeFromVerifier(verifier),
		AppID:     h.provider.AppID(),
		Redirect:  h.provider.RedirectURL(),
	}
}

// Complete consumes the callback of a pending attempt. The stored verifier is
// gone afterwards whatever the outcome.
func (h *Handshake) Complete(ctx context.Context, store Store, cb Callback) Result {
	a := &attempt{phase: WidgetPending, log: h.log}

	fail := func(err error) Result {
		store.ClearVerifier()
		a.advance(ctx, Failed)
		h.log.Warn(ctx, "authorization failed", "error", err)
		return Result{Phase: Failed, Err: err}
	}

	if cb.Error != "" {
		return fail(fmt.Errorf("%w: %s", ErrWidget, cb.Error))
	}

	a.advance(ctx, RedirectReceived)

	if cb.Code == "" || cb.State == "" {
		return fail(ErrMissingCode)
	}

	verifier := store.Verifier()
	if verifier == "" {
		return fail(ErrMissingVerifier)
	}

	if expected := store.AuthState(); expected != "" && expected != cb.State {
		return fail(ErrStateMismatch)
	}

	a.advance(ctx, Exchanging)

	resp, err := h.exchanger.ExchangeCode(ctx, vkapi.CodeExchange{
		Code:         cb.Code,
		DeviceID:     cb.DeviceID,
		State:        cb.State,
		CodeVerifier: verifier,
	})
	store.ClearVerifier()
	store.SetAuthState("")

	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrExchange, err))
	}

	token := resp.Token()
	if token == "" {
		a.advance(ctx, Linked)
		return Result{Phase: Linked}
	}

	store.SetToken(token)
	a.advance(ctx, Authorized)
	return Result{Phase: Authorized}
}

// Fail handles an error event of the widget outside of a callback.
func (h *Handshake) Fail(ctx context.Context, store Store, reason string) Result {
	return h.Complete(ctx, store, Callback{Error: reason})
}

// Widget renders a login UI and waits for exactly one login outcome.
type Widget interface {
	Await(ctx context.Context, start Start) (Callback, error)
	Dispose() error
}

// Run drives a whole attempt through w.
func (h *Handshake) Run(ctx context.Context, store Store, w Widget) Result {
	defer func() {
		if err := w.Dispose(); err != nil {
			h.log.Warn(ctx, "widget dispose failed", "error", err)
		}
	}()

	start := h.Begin(ctx, store)

	cb, err := w.Await(ctx, start)
	if err != nil {
		return h.Complete(ctx, store, Callback{Error: err.Error()})
	}
	return h.Complete(ctx, store, cb)
}
