// Package session holds the wallet connection shared by every page controller.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/safwentrabelsi/civilchain-server/ethclient"
	"github.com/safwentrabelsi/civilchain-server/types"

	log "github.com/sirupsen/logrus"
)

// State is the lifecycle of a session.
type State int

// Enum values for State.
const (
	Uninitialized State = iota
	Connecting
	Ready
	Failed
)

// String method provides a string representation for the State enum.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Connector is the part of the ledger client a session drives.
type Connector interface {
	Connect(ctx context.Context) (*ethclient.Connection, error)
	Network(ctx context.Context) (types.Network, error)
	Accounts(ctx context.Context) ([]string, error)
	RequestAccounts(ctx context.Context) ([]string, error)
}

// Session is the explicit replacement of a shared wallet context.
// It is safe for concurrent use.
type Session struct {
	id           string
	connector    Connector
	pollInterval time.Duration

	mu    sync.RWMutex
	state State
	conn  *ethclient.Connection
}

const sessionIDField = "session_id"

// New creates an uninitialized session.
func New(connector Connector, pollInterval time.Duration) *Session {
	return &Session{
		id:           uuid.NewString(),
		connector:    connector,
		pollInterval: pollInterval,
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Connect moves the session to ready or failed. Only one connect may run at a time.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Connecting {
		s.mu.Unlock()
		return types.ErrBusy
	}
	s.state = Connecting
	s.mu.Unlock()

	conn, err := s.connector.Connect(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = Failed
		s.conn = nil
		log.WithField(sessionIDField, s.id).Error("failed to connect session: ", err)
		return err
	}
	s.state = Ready
	s.conn = conn
	log.WithField(sessionIDField, s.id).WithField("account", conn.Address.Hex()).Info("Session ready")
	return nil
}

// Teardown resets the session after a disconnect or a network change.
func (s *Session) Teardown(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Uninitialized {
		return
	}
	s.state = Uninitialized
	s.conn = nil
	log.WithField(sessionIDField, s.id).Info("Session torn down: ", reason)
}

// Account returns the connected address, empty unless ready.
func (s *Session) Account() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return ""
	}
	return s.conn.Address.Hex()
}

// Network returns the network the session connected to.
func (s *Session) Network() types.Network {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return types.Network{}
	}
	return s.conn.Network
}

// Writer returns the write capability of a ready session.
func (s *Session) Writer() (ethclient.Writer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Ready || s.conn == nil {
		return nil, types.ErrNotConnected
	}
	return s.conn.Writer, nil
}

// Accounts returns the known accounts without prompting.
func (s *Session) Accounts(ctx context.Context) ([]string, error) {
	if account := s.Account(); account != "" {
		return []string{account}, nil
	}
	return s.connector.Accounts(ctx)
}

// RequestAccounts explicitly asks the wallet for its accounts.
func (s *Session) RequestAccounts(ctx context.Context) ([]string, error) {
	if account := s.Account(); account != "" {
		return []string{account}, nil
	}
	return s.connector.RequestAccounts(ctx)
}

// Monitor polls the provider's network and tears a ready session down
// when the chain changes or the provider stops answering.
func (s *Session) Monitor(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.checkNetwork(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) checkNetwork(ctx context.Context) {
	if s.State() != Ready {
		return
	}
	connected := s.Network()

	network, err := s.connector.Network(ctx)
	if err != nil {
		log.WithField(sessionIDField, s.id).Error("failed to query network: ", err)
		s.Teardown("provider disconnected")
		return
	}
	if network.ChainID != connected.ChainID {
		log.WithField(sessionIDField, s.id).WithField("chain_id", network.ChainID).Warn("Provider switched network")
		s.Teardown("network changed")
	}
}
