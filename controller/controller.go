// Package controller holds the view-state of each page: what was loaded from the
// ledger, the operator's filters, and the outcome of the last action.
//
// Controllers never hand raw errors to the rendering layer. Each failure is
// mapped to a short message kept in the view, and the error is returned so the
// caller can pick a status code.
package controller

import (
	"context"
	"sync"

	"github.com/safwentrabelsi/civilchain-server/ethclient"
	"github.com/safwentrabelsi/civilchain-server/types"
)

// State is where a page stands with the ledger.
type State int

// Enum values for State.
const (
	Disconnected State = iota
	Connecting
	Connected
	Error
)

// String method provides a string representation for the State enum.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON views.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reader is the read half of the ledger client.
type Reader interface {
	CheckContract(ctx context.Context) error
	ReadAllRequests(ctx context.Context) ([]types.ServiceRequest, error)
	ReadCreationEvents(ctx context.Context) ([]types.CreationEvent, error)
	ReadStatusEvents(ctx context.Context) ([]types.StatusEvent, error)
	BlockTimestamp(ctx context.Context, block uint64) (uint64, error)
}

// Session is the wallet connection shared by the pages.
type Session interface {
	Connect(ctx context.Context) error
	Account() string
	Writer() (ethclient.Writer, error)
	Accounts(ctx context.Context) ([]string, error)
	RequestAccounts(ctx context.Context) ([]string, error)
}

// ReasonStore is the sidecar holding rejection reasons.
type ReasonStore interface {
	All(ctx context.Context) (map[uint64]string, error)
	Put(ctx context.Context, id uint64, reason string) error
}

// page is the state every controller carries besides its data.
// mu also guards the data fields of the embedding controller.
type page struct {
	mu     sync.RWMutex
	state  State
	errMsg string
	notice string
	busy   bool
}

func (p *page) setState(state State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
}

// fail records err as the page error and returns it.
func (p *page) fail(err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = Error
	p.errMsg = types.UserMessage(err)
	return err
}

func (p *page) setNotice(notice string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notice = notice
}

// begin marks an action in flight. A second action fails with ErrBusy until end is called.
func (p *page) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy {
		return types.ErrBusy
	}
	p.busy = true
	return nil
}

func (p *page) end() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busy = false
}
