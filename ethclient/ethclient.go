package ethclient

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	gethclient "github.com/ethereum/go-ethereum/ethclient"
	"github.com/safwentrabelsi/civilchain-server/config"
	"github.com/safwentrabelsi/civilchain-server/types"

	log "github.com/sirupsen/logrus"
)

// Provider is the transport half of a wallet provider: contract calls, log queries,
// transaction submission and receipts. *ethclient.Client from go-ethereum implements it.
type Provider interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// Client is the only bridge between the controllers and the service registry contract.
type Client struct {
	provider Provider
	wallet   Wallet
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
}

const (
	txHashField    = "tx_hash"
	requestIDField = "request_id"
	chainIDField   = "chain_id"
)

// New binds the service registry at address. provider and wallet may be nil, in which
// case every operation that needs them fails with types.ErrNoWallet.
func New(provider Provider, wallet Wallet, address common.Address) (*Client, error) {
	parsed, err := ContractABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	c := &Client{
		provider: provider,
		wallet:   wallet,
		address:  address,
		abi:      parsed,
	}
	if provider != nil {
		c.contract = bind.NewBoundContract(address, parsed, provider, provider, provider)
	}
	return c, nil
}

// Init dials the configured node and loads the configured signing key, if any.
func Init(ctx context.Context, cfg config.Config) (*Client, error) {
	provider, err := gethclient.DialContext(ctx, cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.URL(), err)
	}

	var wallet Wallet
	keystorePath, passphrase := cfg.Keystore()
	switch {
	case cfg.PrivateKey() != "":
		wallet, err = NewKeyWallet(cfg.PrivateKey())
	case keystorePath != "":
		wallet, err = NewKeystoreWallet(keystorePath, passphrase)
	default:
		log.Warn("No wallet configured, the server will only serve read-only pages")
	}
	if err != nil {
		provider.Close()
		return nil, err
	}

	return New(provider, wallet, common.HexToAddress(cfg.ContractAddress()))
}

// ContractAddress returns the address of the bound contract.
func (c *Client) ContractAddress() common.Address {
	return c.address
}

// Network returns the chain id and name of the provider's current network.
func (c *Client) Network(ctx context.Context) (types.Network, error) {
	if c.provider == nil {
		return types.Network{}, types.ErrNoWallet
	}
	chainID, err := c.provider.ChainID(ctx)
	if err != nil {
		return types.Network{}, fmt.Errorf("%w: %v", types.ErrUnknown, err)
	}
	return types.NetworkFor(chainID.Uint64()), nil
}

// CheckContract verifies that the contract has deployed code on the current network.
func (c *Client) CheckContract(ctx context.Context) error {
	if c.provider == nil {
		return types.ErrNoWallet
	}
	code, err := c.provider.CodeAt(ctx, c.address, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrUnknown, err)
	}
	if len(code) == 0 {
		return types.ErrNoContract
	}
	return nil
}

// Connect queries the network, checks the contract and resolves the signer.
// The returned connection carries the capability to submit writes.
func (c *Client) Connect(ctx context.Context) (*Connection, error) {
	if c.provider == nil || c.wallet == nil {
		return nil, types.ErrNoWallet
	}

	network, err := c.Network(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.CheckContract(ctx); err != nil {
		return nil, err
	}

	opts, err := c.wallet.Transactor(new(big.Int).SetUint64(network.ChainID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnknown, err)
	}

	log.WithField(chainIDField, network.ChainID).WithField("account", c.wallet.Address().Hex()).Info("Connected to service registry")

	return &Connection{
		Address: c.wallet.Address(),
		Network: network,
		Writer:  &signer{client: c, opts: opts},
	}, nil
}

// Accounts returns the authorized accounts without prompting, empty when no wallet is configured.
func (c *Client) Accounts(ctx context.Context) ([]string, error) {
	if c.wallet == nil {
		return []string{}, nil
	}
	return []string{c.wallet.Address().Hex()}, nil
}

// RequestAccounts is the explicit account request, it fails when no wallet can answer it.
func (c *Client) RequestAccounts(ctx context.Context) ([]string, error) {
	if c.wallet == nil {
		return nil, types.ErrNoWallet
	}
	return c.Accounts(ctx)
}

// ReadAllRequests returns every request known to the contract. No partial results.
func (c *Client) ReadAllRequests(ctx context.Context) (requests []types.ServiceRequest, err error) {
	if c.contract == nil {
		return nil, types.ErrNoWallet
	}
	defer func(start time.Time) { observe("read_requests", start, err) }(time.Now())

	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodGetAllRequests); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrRead, err)
	}
	requests, err = decodeRequests(c.abi, out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrRead, err)
	}

	log.WithField("count", len(requests)).Debug("Read requests from contract")
	return requests, nil
}

// ReadCreationEvents returns every RequestCreated log of the contract, in the order the node returns them.
func (c *Client) ReadCreationEvents(ctx context.Context) (events []types.CreationEvent, err error) {
	defer func(start time.Time) { observe("read_creation_events", start, err) }(time.Now())

	logs, err := c.filterLogs(ctx, eventRequestCreated)
	if err != nil {
		return nil, err
	}
	events = make([]types.CreationEvent, 0, len(logs))
	for _, lg := range logs {
		event, err := decodeCreationEvent(c.abi, lg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrEventQuery, err)
		}
		events = append(events, event)
	}
	return events, nil
}

// ReadStatusEvents returns every StatusUpdated log of the contract, in the order the node returns them.
func (c *Client) ReadStatusEvents(ctx context.Context) (events []types.StatusEvent, err error) {
	defer func(start time.Time) { observe("read_status_events", start, err) }(time.Now())

	logs, err := c.filterLogs(ctx, eventStatusUpdated)
	if err != nil {
		return nil, err
	}
	events = make([]types.StatusEvent, 0, len(logs))
	for _, lg := range logs {
		event, err := decodeStatusEvent(c.abi, lg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrEventQuery, err)
		}
		events = append(events, event)
	}
	return events, nil
}

// filterLogs scans the full history of the contract for one event.
func (c *Client) filterLogs(ctx context.Context, name string) ([]ethTypes.Log, error) {
	if c.provider == nil {
		return nil, types.ErrNoWallet
	}
	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(0),
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{c.abi.Events[name].ID}},
	}
	logs, err := c.provider.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrEventQuery, err)
	}
	log.WithField("event", name).WithField("count", len(logs)).Debug("Queried contract events")
	return logs, nil
}

// BlockTimestamp returns the timestamp of a block in seconds.
func (c *Client) BlockTimestamp(ctx context.Context, block uint64) (ts uint64, err error) {
	if c.provider == nil {
		return 0, types.ErrNoWallet
	}
	defer func(start time.Time) { observe("block_timestamp", start, err) }(time.Now())

	header, err := c.provider.HeaderByNumber(ctx, new(big.Int).SetUint64(block))
	if err != nil {
		return 0, fmt.Errorf("%w: block %d: %v", types.ErrRead, block, err)
	}
	return header.Time, nil
}
