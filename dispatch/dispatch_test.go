package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/auctionview/ledgerapi"
	"github.com/cloudx-io/auctionview/ledgerapi/ledgertest"
)

func sampleParams() Params {
	return Params{
		Program:  "private_auction.aleo",
		Function: "bid_public",
		Inputs:   []string{"5000000u64", "1field", "7field", "true"},
		Fee:      90_000,
		Signer:   "aleo1alice",
	}
}

func TestSubmit_EventWallet(t *testing.T) {
	wallet := &ledgertest.MockWallet{}
	d := New(Options{Events: wallet, Direct: wallet, Network: "testnet"})

	id, err := d.Submit(context.Background(), sampleParams(), EventWallet)
	assert.NoError(t, err)
	check.Equal(t, ledgerapi.TxID("event-1"), id)

	assert.Equal(t, 1, len(wallet.Events))
	req := wallet.Events[0]
	check.Equal(t, ledgerapi.EventTypeExecute, req.Type)
	check.Equal(t, "private_auction.aleo", req.ProgramID)
	check.Equal(t, "bid_public", req.FunctionID)
	check.True(t, decimal.RequireFromString("0.09").Equal(req.Fee))
	check.Equal(t, []string{"5000000u64", "1field", "7field", "true"}, req.Inputs)
	check.Equal(t, "aleo1alice", req.Address)
	check.NotEqual(t, "", req.RequestID)
	check.Equal(t, 0, len(wallet.Transactions))
}

func TestSubmit_EventWalletRejects(t *testing.T) {
	wallet := &ledgertest.MockWallet{EventError: "user rejected"}
	d := New(Options{Events: wallet})

	_, err := d.Submit(context.Background(), sampleParams(), EventWallet)
	var submitErr *SubmitError
	assert.True(t, errors.As(err, &submitErr))
	check.Equal(t, EventWallet, submitErr.Kind)
	check.Equal(t, "bid_public", submitErr.Function)
	check.Equal(t, "user rejected", submitErr.Err.Error())
}

func TestSubmit_DirectWallet(t *testing.T) {
	wallet := &ledgertest.MockWallet{}
	d := New(Options{Direct: wallet, Network: "testnet"})

	p := sampleParams()
	p.FeePrivate = true
	id, err := d.Submit(context.Background(), p, DirectWallet)
	assert.NoError(t, err)
	check.Equal(t, ledgerapi.TxID("at1tx1"), id)

	assert.Equal(t, 1, len(wallet.Transactions))
	tx := wallet.Transactions[0]
	check.Equal(t, "aleo1alice", tx.Address)
	check.Equal(t, "testnet", tx.Network)
	check.Equal(t, "private_auction.aleo", tx.Program)
	check.Equal(t, "bid_public", tx.Function)
	check.Equal(t, uint64(90_000), tx.Fee)
	check.True(t, tx.FeePrivate)
}

func TestSubmit_DirectWalletFailure(t *testing.T) {
	cause := errors.New("insufficient balance")
	wallet := &ledgertest.MockWallet{ExecuteErr: cause}
	d := New(Options{Direct: wallet})

	_, err := d.Submit(context.Background(), sampleParams(), DirectWallet)
	check.True(t, errors.Is(err, cause))
	var submitErr *SubmitError
	check.True(t, errors.As(err, &submitErr))
}

func TestSubmit_Unsupported(t *testing.T) {
	wallet := &ledgertest.MockWallet{}
	tests := []struct {
		name string
		d    *Dispatcher
		kind WalletKind
	}{
		{name: "unknown kind", d: New(Options{Events: wallet, Direct: wallet}), kind: "carrier-pigeon"},
		{name: "missing event capability", d: New(Options{Direct: wallet}), kind: EventWallet},
		{name: "missing direct capability", d: New(Options{Events: wallet}), kind: DirectWallet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.d.Submit(context.Background(), sampleParams(), tt.kind)
			check.True(t, errors.Is(err, ErrUnsupportedWallet))
			var submitErr *SubmitError
			check.True(t, errors.As(err, &submitErr))
		})
	}
	check.Equal(t, 0, len(wallet.Events))
	check.Equal(t, 0, len(wallet.Transactions))
}

func TestSubmit_MissingFunction(t *testing.T) {
	d := New(Options{Direct: &ledgertest.MockWallet{}})
	p := sampleParams()
	p.Function = ""
	_, err := d.Submit(context.Background(), p, DirectWallet)
	check.Error(t, err)
}

func TestParseWalletKind(t *testing.T) {
	tests := []struct {
		in      string
		want    WalletKind
		wantErr bool
	}{
		{in: "event", want: EventWallet},
		{in: " Direct ", want: DirectWallet},
		{in: "", wantErr: true},
		{in: "leo", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseWalletKind(tt.in)
		if tt.wantErr {
			check.True(t, errors.Is(err, ErrUnsupportedWallet))
			continue
		}
		check.NoError(t, err)
		check.Equal(t, tt.want, got)
	}
}
