package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cloudx-io/auctionview/ledgerapi"
)

// outbox stands in for a signing wallet. It keeps prepared submissions so they can be handed
// to a wallet out of band; nothing is broadcast.
type outbox struct {
	logger *slog.Logger

	mu           sync.Mutex
	transactions []ledgerapi.Transaction
	events       []ledgerapi.EventRequest
}

var (
	_ ledgerapi.DirectExecutor = (*outbox)(nil)
	_ ledgerapi.EventCreator   = (*outbox)(nil)
)

func (o *outbox) Execute(ctx context.Context, tx ledgerapi.Transaction) (ledgerapi.TxID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transactions = append(o.transactions, tx)
	id := ledgerapi.TxID(fmt.Sprintf("prepared-%d", len(o.transactions)))
	o.logger.Info("prepared transaction", "function", tx.Function, "id", id)
	return id, nil
}

func (o *outbox) CreateEvent(ctx context.Context, req ledgerapi.EventRequest) (ledgerapi.EventResponse, error) {
	if err := ctx.Err(); err != nil {
		return ledgerapi.EventResponse{}, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, req)
	o.logger.Info("prepared event", "function", req.FunctionID, "request_id", req.RequestID)
	return ledgerapi.EventResponse{EventID: req.RequestID}, nil
}

// pending returns everything prepared so far.
func (o *outbox) pending() ([]ledgerapi.Transaction, []ledgerapi.EventRequest) {
	o.mu.Lock()
	defer o.mu.Unlock()
	txs := make([]ledgerapi.Transaction, len(o.transactions))
	copy(txs, o.transactions)
	events := make([]ledgerapi.EventRequest, len(o.events))
	copy(events, o.events)
	return txs, events
}
