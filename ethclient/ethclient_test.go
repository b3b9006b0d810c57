package ethclient

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/safwentrabelsi/civilchain-server/types"
	"github.com/stretchr/testify/require"
)

var (
	contractAddress = common.HexToAddress("0x0C179c4Ef979364b28F4A9d6531a00FD3aAEFb03")
	citizenAddress  = common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	creationTxHash  = common.HexToHash("0x3e3598fb8aabc3733686dd0a7a84ea35e25a34d959a68b9aeb1f5c5f7ab5877a")
	updateTxHash    = common.HexToHash("0x8f6b3c1d2e4a5b6c7d8e9f0a1b2c3d4e5f60718293a4b5c6d7e8f9a0b1c2d3e4")
)

// fakeProvider is an in-memory node serving a single contract.
type fakeProvider struct {
	mu sync.Mutex

	chainID    *big.Int
	chainIDErr error
	code       []byte
	callOutput []byte
	callErr    error
	logs       []ethTypes.Log
	logsErr    error
	blockTimes map[uint64]uint64

	receiptStatus uint64
	sendErr       error
	sent          []*ethTypes.Transaction
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		chainID:       big.NewInt(11155111),
		code:          []byte{0x60, 0x80},
		blockTimes:    map[uint64]uint64{},
		receiptStatus: ethTypes.ReceiptStatusSuccessful,
	}
}

func (p *fakeProvider) ChainID(ctx context.Context) (*big.Int, error) {
	return p.chainID, p.chainIDErr
}

func (p *fakeProvider) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return p.code, nil
}

func (p *fakeProvider) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return p.callOutput, p.callErr
}

func (p *fakeProvider) HeaderByNumber(ctx context.Context, number *big.Int) (*ethTypes.Header, error) {
	header := &ethTypes.Header{Number: big.NewInt(100), BaseFee: big.NewInt(1)}
	if number != nil {
		ts, ok := p.blockTimes[number.Uint64()]
		if !ok {
			return nil, errors.New("header not found")
		}
		header.Number = number
		header.Time = ts
	}
	return header, nil
}

func (p *fakeProvider) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return p.code, nil
}

func (p *fakeProvider) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return uint64(len(p.sent)), nil
}

func (p *fakeProvider) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (p *fakeProvider) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (p *fakeProvider) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 100000, nil
}

func (p *fakeProvider) SendTransaction(ctx context.Context, tx *ethTypes.Transaction) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, tx)
	return nil
}

func (p *fakeProvider) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethTypes.Log, error) {
	if p.logsErr != nil {
		return nil, p.logsErr
	}
	var out []ethTypes.Log
	for _, lg := range p.logs {
		if len(q.Topics) > 0 && len(q.Topics[0]) > 0 && len(lg.Topics) > 0 && lg.Topics[0] != q.Topics[0][0] {
			continue
		}
		out = append(out, lg)
	}
	return out, nil
}

func (p *fakeProvider) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- ethTypes.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions are not supported")
}

func (p *fakeProvider) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethTypes.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tx := range p.sent {
		if tx.Hash() == txHash {
			return &ethTypes.Receipt{Status: p.receiptStatus, TxHash: txHash, BlockNumber: big.NewInt(42)}, nil
		}
	}
	return nil, ethereum.NotFound
}

func newTestClient(t *testing.T, provider Provider, wallet Wallet) *Client {
	t.Helper()
	client, err := New(provider, wallet, contractAddress)
	require.NoError(t, err)
	return client
}

func newTestWallet(t *testing.T) *KeyWallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &KeyWallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

func packRequests(t *testing.T, rows []ledgerRequest) []byte {
	t.Helper()
	parsed, err := ContractABI()
	require.NoError(t, err)
	out, err := parsed.Methods[methodGetAllRequests].Outputs.Pack(rows)
	require.NoError(t, err)
	return out
}

func creationLog(t *testing.T, id int64, citizen common.Address, serviceType string, txHash common.Hash, block uint64, index uint) ethTypes.Log {
	t.Helper()
	parsed, err := ContractABI()
	require.NoError(t, err)
	event := parsed.Events[eventRequestCreated]
	data, err := event.Inputs.NonIndexed().Pack(serviceType)
	require.NoError(t, err)
	return ethTypes.Log{
		Address:     contractAddress,
		Topics:      []common.Hash{event.ID, common.BigToHash(big.NewInt(id)), common.BytesToHash(citizen.Bytes())},
		Data:        data,
		BlockNumber: block,
		TxHash:      txHash,
		Index:       index,
	}
}

func statusLog(t *testing.T, id int64, status types.RequestStatus, txHash common.Hash, block uint64, index uint) ethTypes.Log {
	t.Helper()
	parsed, err := ContractABI()
	require.NoError(t, err)
	event := parsed.Events[eventStatusUpdated]
	data, err := event.Inputs.NonIndexed().Pack(uint8(status))
	require.NoError(t, err)
	return ethTypes.Log{
		Address:     contractAddress,
		Topics:      []common.Hash{event.ID, common.BigToHash(big.NewInt(id))},
		Data:        data,
		BlockNumber: block,
		TxHash:      txHash,
		Index:       index,
	}
}

func TestConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("when no provider is configured, return ErrNoWallet", func(t *testing.T) {
		client := newTestClient(t, nil, nil)
		_, err := client.Connect(ctx)
		require.ErrorIs(t, err, types.ErrNoWallet)
	})

	t.Run("when no wallet is configured, return ErrNoWallet", func(t *testing.T) {
		client := newTestClient(t, newFakeProvider(), nil)
		_, err := client.Connect(ctx)
		require.ErrorIs(t, err, types.ErrNoWallet)
	})

	t.Run("when the contract has no code, return ErrNoContract", func(t *testing.T) {
		provider := newFakeProvider()
		provider.code = nil
		client := newTestClient(t, provider, newTestWallet(t))
		_, err := client.Connect(ctx)
		require.ErrorIs(t, err, types.ErrNoContract)
	})

	t.Run("when the provider fails, wrap the failure as ErrUnknown", func(t *testing.T) {
		provider := newFakeProvider()
		provider.chainIDErr = errors.New("connection refused")
		client := newTestClient(t, provider, newTestWallet(t))
		_, err := client.Connect(ctx)
		require.ErrorIs(t, err, types.ErrUnknown)
		require.Contains(t, err.Error(), "connection refused")
	})

	t.Run("it returns the signer address and the network", func(t *testing.T) {
		wallet := newTestWallet(t)
		client := newTestClient(t, newFakeProvider(), wallet)
		conn, err := client.Connect(ctx)
		require.NoError(t, err)
		require.Equal(t, wallet.Address(), conn.Address)
		require.Equal(t, types.Network{ChainID: 11155111, Name: "sepolia"}, conn.Network)
		require.NotNil(t, conn.Writer)
	})
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()

	t.Run("when no wallet is configured, accounts are empty and requesting them fails", func(t *testing.T) {
		client := newTestClient(t, newFakeProvider(), nil)
		accounts, err := client.Accounts(ctx)
		require.NoError(t, err)
		require.Empty(t, accounts)

		_, err = client.RequestAccounts(ctx)
		require.ErrorIs(t, err, types.ErrNoWallet)
	})

	t.Run("it returns the wallet address", func(t *testing.T) {
		wallet := newTestWallet(t)
		client := newTestClient(t, newFakeProvider(), wallet)
		accounts, err := client.RequestAccounts(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{wallet.Address().Hex()}, accounts)
	})
}

func TestReadAllRequests(t *testing.T) {
	ctx := context.Background()

	t.Run("it decodes every request", func(t *testing.T) {
		provider := newFakeProvider()
		provider.callOutput = packRequests(t, []ledgerRequest{
			{ID: big.NewInt(1), Citizen: citizenAddress, ServiceType: "Passport", Status: 0, Timestamp: big.NewInt(1704207845)},
			{ID: big.NewInt(2), Citizen: citizenAddress, ServiceType: "Birth Certificate", Description: "for school", Status: 2, Timestamp: big.NewInt(1704207900)},
		})
		client := newTestClient(t, provider, nil)

		requests, err := client.ReadAllRequests(ctx)
		require.NoError(t, err)
		require.Equal(t, []types.ServiceRequest{
			{ID: 1, Citizen: citizenAddress.Hex(), ServiceType: "Passport", Status: types.PENDING, Timestamp: 1704207845},
			{ID: 2, Citizen: citizenAddress.Hex(), ServiceType: "Birth Certificate", Description: "for school", Status: types.REJECTED, Timestamp: 1704207900},
		}, requests)
	})

	t.Run("when the contract holds no requests, return an empty set", func(t *testing.T) {
		provider := newFakeProvider()
		provider.callOutput = packRequests(t, []ledgerRequest{})
		client := newTestClient(t, provider, nil)

		requests, err := client.ReadAllRequests(ctx)
		require.NoError(t, err)
		require.Empty(t, requests)
	})

	t.Run("when the call fails, return ErrRead", func(t *testing.T) {
		provider := newFakeProvider()
		provider.callErr = errors.New("execution reverted")
		client := newTestClient(t, provider, nil)

		_, err := client.ReadAllRequests(ctx)
		require.ErrorIs(t, err, types.ErrRead)
	})

	t.Run("when the output does not match the record shape, return ErrRead", func(t *testing.T) {
		provider := newFakeProvider()
		provider.callOutput = common.FromHex("0x" + strings.Repeat("ff", 32))
		client := newTestClient(t, provider, nil)

		requests, err := client.ReadAllRequests(ctx)
		require.ErrorIs(t, err, types.ErrRead)
		require.Nil(t, requests)
	})

	t.Run("when no provider is configured, return ErrNoWallet", func(t *testing.T) {
		client := newTestClient(t, nil, nil)
		_, err := client.ReadAllRequests(ctx)
		require.ErrorIs(t, err, types.ErrNoWallet)
	})
}

func TestReadEvents(t *testing.T) {
	ctx := context.Background()

	provider := newFakeProvider()
	provider.logs = []ethTypes.Log{
		creationLog(t, 7, citizenAddress, "Birth Certificate", creationTxHash, 10, 0),
		statusLog(t, 7, types.APPROVED, updateTxHash, 12, 3),
	}
	client := newTestClient(t, provider, nil)

	t.Run("it decodes creation events", func(t *testing.T) {
		events, err := client.ReadCreationEvents(ctx)
		require.NoError(t, err)
		require.Equal(t, []types.CreationEvent{{
			TxHash:      creationTxHash.Hex(),
			BlockNumber: 10,
			LogIndex:    0,
			RequestID:   7,
			Citizen:     citizenAddress.Hex(),
			ServiceType: "Birth Certificate",
		}}, events)
	})

	t.Run("it decodes status events", func(t *testing.T) {
		events, err := client.ReadStatusEvents(ctx)
		require.NoError(t, err)
		require.Equal(t, []types.StatusEvent{{
			TxHash:      updateTxHash.Hex(),
			BlockNumber: 12,
			LogIndex:    3,
			RequestID:   7,
			Status:      types.APPROVED,
		}}, events)
	})

	t.Run("when the log query fails, return ErrEventQuery", func(t *testing.T) {
		failing := newFakeProvider()
		failing.logsErr = errors.New("query timeout")
		_, err := newTestClient(t, failing, nil).ReadCreationEvents(ctx)
		require.ErrorIs(t, err, types.ErrEventQuery)
	})

	t.Run("when a log is truncated, fail the whole query", func(t *testing.T) {
		broken := newFakeProvider()
		lg := creationLog(t, 8, citizenAddress, "Passport", creationTxHash, 11, 0)
		lg.Topics = lg.Topics[:2]
		broken.logs = []ethTypes.Log{creationLog(t, 7, citizenAddress, "Passport", creationTxHash, 10, 0), lg}

		events, err := newTestClient(t, broken, nil).ReadCreationEvents(ctx)
		require.ErrorIs(t, err, types.ErrEventQuery)
		require.Nil(t, events)
	})
}

func TestBlockTimestamp(t *testing.T) {
	provider := newFakeProvider()
	provider.blockTimes[12] = 1704207845
	client := newTestClient(t, provider, nil)

	ts, err := client.BlockTimestamp(context.Background(), 12)
	require.NoError(t, err)
	require.Equal(t, uint64(1704207845), ts)

	_, err = client.BlockTimestamp(context.Background(), 13)
	require.ErrorIs(t, err, types.ErrRead)
}

func TestWriter(t *testing.T) {
	ctx := context.Background()

	connect := func(t *testing.T, provider *fakeProvider) *Connection {
		client := newTestClient(t, provider, newTestWallet(t))
		conn, err := client.Connect(ctx)
		require.NoError(t, err)
		return conn
	}

	t.Run("it waits for the create request to be mined", func(t *testing.T) {
		provider := newFakeProvider()
		conn := connect(t, provider)

		receipt, err := conn.SubmitCreateRequest(ctx, "Birth Certificate")
		require.NoError(t, err)
		require.Len(t, provider.sent, 1)
		require.Equal(t, provider.sent[0].Hash().Hex(), receipt.Hash)
		require.Equal(t, uint64(42), receipt.BlockNumber)
		require.Equal(t, contractAddress, *provider.sent[0].To())
	})

	t.Run("when the service type is blank, nothing is sent", func(t *testing.T) {
		provider := newFakeProvider()
		conn := connect(t, provider)

		_, err := conn.SubmitCreateRequest(ctx, "  ")
		require.ErrorIs(t, err, types.ErrValidation)
		require.Empty(t, provider.sent)
	})

	t.Run("it submits approvals and rejections", func(t *testing.T) {
		provider := newFakeProvider()
		conn := connect(t, provider)

		_, err := conn.SubmitStatusUpdate(ctx, 7, types.APPROVED)
		require.NoError(t, err)
		_, err = conn.SubmitStatusUpdate(ctx, 8, types.REJECTED)
		require.NoError(t, err)
		require.Len(t, provider.sent, 2)
	})

	t.Run("when the status is PENDING, return ErrValidation", func(t *testing.T) {
		provider := newFakeProvider()
		conn := connect(t, provider)

		_, err := conn.SubmitStatusUpdate(ctx, 7, types.PENDING)
		require.ErrorIs(t, err, types.ErrValidation)
		require.Empty(t, provider.sent)
	})

	t.Run("when the transaction reverts, return ErrSubmission", func(t *testing.T) {
		provider := newFakeProvider()
		provider.receiptStatus = ethTypes.ReceiptStatusFailed
		conn := connect(t, provider)

		_, err := conn.SubmitStatusUpdate(ctx, 7, types.APPROVED)
		require.ErrorIs(t, err, types.ErrSubmission)
		require.Contains(t, types.UserMessage(err), "reverted")
	})

	t.Run("when the node rejects the transaction, return ErrSubmission", func(t *testing.T) {
		provider := newFakeProvider()
		provider.sendErr = errors.New("insufficient funds for gas * price + value")
		conn := connect(t, provider)

		_, err := conn.SubmitCreateRequest(ctx, "Passport")
		require.ErrorIs(t, err, types.ErrSubmission)
		require.Equal(t, "Transaction failed: insufficient funds for gas * price + value", types.UserMessage(err))
	})
}

func TestNewKeyWallet(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := common.Bytes2Hex(crypto.FromECDSA(key))

	t.Run("it accepts keys with and without the 0x prefix", func(t *testing.T) {
		for _, in := range []string{hexKey, "0x" + hexKey} {
			wallet, err := NewKeyWallet(in)
			require.NoError(t, err)
			require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), wallet.Address())
		}
	})

	t.Run("when the key is malformed, return error", func(t *testing.T) {
		_, err := NewKeyWallet("0xnot-a-key")
		require.Error(t, err)
	})
}
