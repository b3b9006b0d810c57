package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/safwentrabelsi/civilchain-server/ethclient"
	"github.com/safwentrabelsi/civilchain-server/types"
)

const (
	citizenAccount = "0xABC0000000000000000000000000000000000005"
	otherAccount   = "0x1111111111111111111111111111111111111111"
	officerAccount = "0x1F926A6cBf8a77C3faA98ef7C82c503d5349d985"
	contract       = "0x0C179c4Ef979364b28F4A9d6531a00FD3aAEFb03"
)

// fakeLedger is an in-memory contract. It serves reads and, bound to a signer, writes.
type fakeLedger struct {
	mu sync.Mutex

	requests   []types.ServiceRequest
	creations  []types.CreationEvent
	updates    []types.StatusEvent
	blockTimes map[uint64]uint64
	block      uint64

	checkErr  error
	readErr   error
	eventsErr error
	submitErr error

	reads  int
	writes int
	gate   chan struct{}
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{blockTimes: map[uint64]uint64{}, block: 100}
}

func txHash(block uint64) string {
	return fmt.Sprintf("0x%064x", block)
}

// seed adds a request created by citizen in its own block.
func (l *fakeLedger) seed(id uint64, citizen, serviceType string, status types.RequestStatus) string {
	hash, _ := l.create(id, citizen, serviceType, status)
	return hash
}

func (l *fakeLedger) create(id uint64, citizen, serviceType string, status types.RequestStatus) (string, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.block++
	hash := txHash(l.block)
	l.blockTimes[l.block] = 1700000000 + l.block
	l.requests = append(l.requests, types.ServiceRequest{
		ID:          id,
		Citizen:     citizen,
		ServiceType: serviceType,
		Status:      status,
		Timestamp:   l.blockTimes[l.block],
	})
	l.creations = append(l.creations, types.CreationEvent{
		TxHash:      hash,
		BlockNumber: l.block,
		RequestID:   id,
		Citizen:     citizen,
		ServiceType: serviceType,
	})
	return hash, l.block
}

func (l *fakeLedger) CheckContract(ctx context.Context) error {
	return l.checkErr
}

func (l *fakeLedger) ReadAllRequests(ctx context.Context) ([]types.ServiceRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	if l.readErr != nil {
		return nil, l.readErr
	}
	out := make([]types.ServiceRequest, len(l.requests))
	copy(out, l.requests)
	return out, nil
}

func (l *fakeLedger) ReadCreationEvents(ctx context.Context) ([]types.CreationEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.eventsErr != nil {
		return nil, l.eventsErr
	}
	out := make([]types.CreationEvent, len(l.creations))
	copy(out, l.creations)
	return out, nil
}

func (l *fakeLedger) ReadStatusEvents(ctx context.Context) ([]types.StatusEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.eventsErr != nil {
		return nil, l.eventsErr
	}
	out := make([]types.StatusEvent, len(l.updates))
	copy(out, l.updates)
	return out, nil
}

func (l *fakeLedger) BlockTimestamp(ctx context.Context, block uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts, ok := l.blockTimes[block]
	if !ok {
		return 0, fmt.Errorf("%w: unknown block %d", types.ErrRead, block)
	}
	return ts, nil
}

// signer returns a writer acting as account.
func (l *fakeLedger) signer(account string) ethclient.Writer {
	return &fakeWriter{ledger: l, account: account}
}

type fakeWriter struct {
	ledger  *fakeLedger
	account string
}

func (w *fakeWriter) SubmitCreateRequest(ctx context.Context, serviceType string) (types.Receipt, error) {
	l := w.ledger
	if l.gate != nil {
		<-l.gate
	}
	l.mu.Lock()
	l.writes++
	if l.submitErr != nil {
		l.mu.Unlock()
		return types.Receipt{}, l.submitErr
	}
	id := uint64(len(l.requests) + 1)
	l.mu.Unlock()

	hash, block := l.create(id, w.account, serviceType, types.PENDING)
	return types.Receipt{Hash: hash, BlockNumber: block}, nil
}

func (w *fakeWriter) SubmitStatusUpdate(ctx context.Context, id uint64, status types.RequestStatus) (types.Receipt, error) {
	l := w.ledger
	if l.gate != nil {
		<-l.gate
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writes++
	if l.submitErr != nil {
		return types.Receipt{}, l.submitErr
	}
	if !strings.EqualFold(w.account, officerAccount) {
		return types.Receipt{}, fmt.Errorf("%w: caller is not the officer", types.ErrSubmission)
	}
	for i := range l.requests {
		if l.requests[i].ID != id {
			continue
		}
		l.block++
		l.blockTimes[l.block] = 1700000000 + l.block
		l.requests[i].Status = status
		l.updates = append(l.updates, types.StatusEvent{TxHash: txHash(l.block), BlockNumber: l.block, RequestID: id, Status: status})
		return types.Receipt{Hash: txHash(l.block), BlockNumber: l.block}, nil
	}
	return types.Receipt{}, fmt.Errorf("%w: request %d does not exist", types.ErrSubmission, id)
}

// fakeSession connects to wallet, the account the operator's wallet holds.
type fakeSession struct {
	mu         sync.Mutex
	wallet     string
	account    string
	ledger     *fakeLedger
	connectErr error
}

func (s *fakeSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		return s.connectErr
	}
	if s.wallet == "" {
		return types.ErrNoWallet
	}
	s.account = s.wallet
	return nil
}

func (s *fakeSession) Account() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

func (s *fakeSession) Writer() (ethclient.Writer, error) {
	account := s.Account()
	if account == "" {
		return nil, types.ErrNotConnected
	}
	return s.ledger.signer(account), nil
}

func (s *fakeSession) Accounts(ctx context.Context) ([]string, error) {
	if account := s.Account(); account != "" {
		return []string{account}, nil
	}
	return []string{}, nil
}

func (s *fakeSession) RequestAccounts(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wallet == "" {
		return nil, errors.New("user rejected the request")
	}
	return []string{s.wallet}, nil
}
