// Package dispatch submits program executions to whichever kind of wallet the session is
// connected to. It never touches reconciled state; results show up on the next refresh.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/cloudx-io/auctionview/core"
	"github.com/cloudx-io/auctionview/ledgerapi"
)

// WalletKind selects how a submission reaches the wallet.
type WalletKind string

const (
	// EventWallet wallets take execution requests as events with fees in credits.
	EventWallet WalletKind = "event"
	// DirectWallet wallets take a transaction with fees in microcredits.
	DirectWallet WalletKind = "direct"
)

// ParseWalletKind accepts "event" or "direct" in any case.
func ParseWalletKind(s string) (WalletKind, error) {
	switch WalletKind(strings.ToLower(strings.TrimSpace(s))) {
	case EventWallet:
		return EventWallet, nil
	case DirectWallet:
		return DirectWallet, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedWallet, s)
	}
}

// ErrUnsupportedWallet is wrapped by SubmitError when the wallet kind is unknown or the
// dispatcher lacks the capability the kind needs.
var ErrUnsupportedWallet = errors.New("unsupported wallet")

// SubmitError reports a submission the wallet did not accept.
type SubmitError struct {
	Kind     WalletKind
	Function string
	Err      error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit %s via %s wallet: %v", e.Function, e.Kind, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Params describe one program execution.
type Params struct {
	Program    string
	Function   string
	Inputs     []string
	Fee        uint64 // microcredits
	FeePrivate bool
	Signer     string // public key of the submitting account
}

// Options configure a Dispatcher. Either capability may be nil when the session's wallet
// does not offer it.
type Options struct {
	Events  ledgerapi.EventCreator
	Direct  ledgerapi.DirectExecutor
	Network string
	Logger  *slog.Logger
}

// Dispatcher routes submissions to the wallet capability matching a WalletKind.
type Dispatcher struct {
	events  ledgerapi.EventCreator
	direct  ledgerapi.DirectExecutor
	network string
	logger  *slog.Logger
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		events:  opts.Events,
		direct:  opts.Direct,
		network: opts.Network,
		logger:  logger,
	}
}

// Submit sends p through the wallet of the given kind. For event wallets the returned id is
// the event id.
func (d *Dispatcher) Submit(ctx context.Context, p Params, kind WalletKind) (ledgerapi.TxID, error) {
	fail := func(err error) (ledgerapi.TxID, error) {
		d.logger.Warn("transaction submission failed", "function", p.Function, "wallet", kind, "error", err)
		return "", &SubmitError{Kind: kind, Function: p.Function, Err: err}
	}
	if p.Program == "" || p.Function == "" {
		return fail(errors.New("program and function are required"))
	}

	switch kind {
	case EventWallet:
		if d.events == nil {
			return fail(ErrUnsupportedWallet)
		}
		req := ledgerapi.EventRequest{
			Type:       ledgerapi.EventTypeExecute,
			ProgramID:  p.Program,
			FunctionID: p.Function,
			Fee:        core.MicrocreditsToCredits(p.Fee),
			Inputs:     p.Inputs,
			Address:    p.Signer,
			RequestID:  uuid.NewString(),
		}
		resp, err := d.events.CreateEvent(ctx, req)
		if err != nil {
			return fail(err)
		}
		if resp.Error != "" {
			return fail(errors.New(resp.Error))
		}
		d.logger.Info("created wallet event", "function", p.Function, "event_id", resp.EventID, "request_id", req.RequestID)
		return ledgerapi.TxID(resp.EventID), nil

	case DirectWallet:
		if d.direct == nil {
			return fail(ErrUnsupportedWallet)
		}
		tx := ledgerapi.Transaction{
			Address:    p.Signer,
			Network:    d.network,
			Program:    p.Program,
			Function:   p.Function,
			Inputs:     p.Inputs,
			Fee:        p.Fee,
			FeePrivate: p.FeePrivate,
		}
		id, err := d.direct.Execute(ctx, tx)
		if err != nil {
			return fail(err)
		}
		d.logger.Info("submitted transaction", "function", p.Function, "tx_id", id)
		return id, nil

	default:
		return fail(fmt.Errorf("%w: %q", ErrUnsupportedWallet, kind))
	}
}
