// Package ledgertest provides in-memory implementations of the ledgerapi capabilities for tests.
package ledgertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cloudx-io/auctionview/ledgerapi"
)

// MockMappings is an in-memory MappingSource. Values are raw ledger literals keyed by mapping
// name and key.
type MockMappings struct {
	mu        sync.Mutex
	values    map[string]map[string]string
	listErr   map[string]error
	queryErr  map[string]error
	Queries   atomic.Int32
	Listings  atomic.Int32
	QueryFunc func(mapping, key string) // observed on every point query
}

// NewMockMappings creates an empty MockMappings.
func NewMockMappings() *MockMappings {
	return &MockMappings{
		values:   make(map[string]map[string]string),
		listErr:  make(map[string]error),
		queryErr: make(map[string]error),
	}
}

// Set stores value under mapping[key].
func (m *MockMappings) Set(mapping, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[mapping] == nil {
		m.values[mapping] = make(map[string]string)
	}
	m.values[mapping][key] = value
}

// FailListing makes ListMappingValues fail for mapping.
func (m *MockMappings) FailListing(mapping string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr[mapping] = err
}

// FailQuery makes GetMappingValue fail for mapping.
func (m *MockMappings) FailQuery(mapping string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryErr[mapping] = err
}

func (m *MockMappings) GetMappingValue(ctx context.Context, program, mapping, key string) (string, error) {
	m.Queries.Add(1)
	if m.QueryFunc != nil {
		m.QueryFunc(mapping, key)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.queryErr[mapping]; err != nil {
		return "", err
	}
	v, ok := m.values[mapping][key]
	if !ok {
		return "", ledgerapi.ErrMappingValueNotFound
	}
	return v, nil
}

func (m *MockMappings) ListMappingValues(ctx context.Context, program, mapping string) ([]ledgerapi.MappingEntry, error) {
	m.Listings.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.listErr[mapping]; err != nil {
		return nil, err
	}
	entries := make([]ledgerapi.MappingEntry, 0, len(m.values[mapping]))
	for k, v := range m.values[mapping] {
		entries = append(entries, ledgerapi.MappingEntry{Key: k, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// MockWallet is an in-memory Wallet that also records submitted transactions and events.
type MockWallet struct {
	mu           sync.Mutex
	Records      []ledgerapi.RawRecord
	RecordsErr   error
	ExecuteErr   error
	EventError   string
	Transactions []ledgerapi.Transaction
	Events       []ledgerapi.EventRequest
	Requests     atomic.Int32

	// Waiting, when set, receives a value each time RequestRecords is entered.
	Waiting chan struct{}
	// Gate, when set, holds RequestRecords until it is closed or the context ends.
	Gate chan struct{}
}

func (w *MockWallet) Connect(ctx context.Context) error {
	return ctx.Err()
}

func (w *MockWallet) RequestRecords(ctx context.Context, programID string) ([]ledgerapi.RawRecord, error) {
	w.Requests.Add(1)
	if w.Waiting != nil {
		w.Waiting <- struct{}{}
	}
	if w.Gate != nil {
		select {
		case <-w.Gate:
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.RecordsErr != nil {
		return nil, w.RecordsErr
	}
	out := make([]ledgerapi.RawRecord, len(w.Records))
	copy(out, w.Records)
	return out, nil
}

// SetRecords replaces the wallet's records.
func (w *MockWallet) SetRecords(records []ledgerapi.RawRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Records = records
}

func (w *MockWallet) Execute(ctx context.Context, tx ledgerapi.Transaction) (ledgerapi.TxID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ExecuteErr != nil {
		return "", w.ExecuteErr
	}
	w.Transactions = append(w.Transactions, tx)
	return ledgerapi.TxID(fmt.Sprintf("at1tx%d", len(w.Transactions))), nil
}

func (w *MockWallet) CreateEvent(ctx context.Context, req ledgerapi.EventRequest) (ledgerapi.EventResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.EventError != "" {
		return ledgerapi.EventResponse{Error: w.EventError}, nil
	}
	w.Events = append(w.Events, req)
	return ledgerapi.EventResponse{EventID: fmt.Sprintf("event-%d", len(w.Events))}, nil
}
