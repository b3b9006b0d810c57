package ethclient

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/safwentrabelsi/civilchain-server/types"

	log "github.com/sirupsen/logrus"
)

// Wallet is the signing half of a wallet provider.
type Wallet interface {
	Address() common.Address
	Transactor(chainID *big.Int) (*bind.TransactOpts, error)
}

// KeyWallet signs with a single in-memory private key.
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeyWallet loads a hex encoded private key, with or without the 0x prefix.
func NewKeyWallet(hexKey string) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid WALLET_PRIVATE_KEY: %w", err)
	}
	return &KeyWallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// NewKeystoreWallet decrypts a V3 keystore file.
func NewKeystoreWallet(path, passphrase string) (*KeyWallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}
	key, err := keystore.DecryptKey(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore %s: %w", path, err)
	}
	return &KeyWallet{key: key.PrivateKey, address: key.Address}, nil
}

// Address returns the signer address.
func (w *KeyWallet) Address() common.Address {
	return w.address
}

// Transactor returns EIP-155 signing options for chainID.
func (w *KeyWallet) Transactor(chainID *big.Int) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(w.key, chainID)
}

// Writer submits writes to the contract and waits for them to be mined.
type Writer interface {
	SubmitCreateRequest(ctx context.Context, serviceType string) (types.Receipt, error)
	SubmitStatusUpdate(ctx context.Context, id uint64, status types.RequestStatus) (types.Receipt, error)
}

// Connection is the result of a successful Connect.
type Connection struct {
	Address common.Address
	Network types.Network
	Writer
}

type signer struct {
	client *Client
	opts   *bind.TransactOpts
}

// SubmitCreateRequest sends createRequest(serviceType) as the connected account.
func (s *signer) SubmitCreateRequest(ctx context.Context, serviceType string) (types.Receipt, error) {
	if strings.TrimSpace(serviceType) == "" {
		return types.Receipt{}, fmt.Errorf("%w: Please select a service type", types.ErrValidation)
	}
	return s.transact(ctx, "create_request", methodCreateRequest, serviceType)
}

// SubmitStatusUpdate sends updateStatus(id, status). Only APPROVED and REJECTED can be written.
func (s *signer) SubmitStatusUpdate(ctx context.Context, id uint64, status types.RequestStatus) (types.Receipt, error) {
	if status != types.APPROVED && status != types.REJECTED {
		return types.Receipt{}, fmt.Errorf("%w: status %s cannot be submitted", types.ErrValidation, status)
	}
	receipt, err := s.transact(ctx, "update_status", methodUpdateStatus, new(big.Int).SetUint64(id), uint8(status))
	if err == nil {
		log.WithField(requestIDField, id).WithField(txHashField, receipt.Hash).Infof("Request status set to %s", status)
	}
	return receipt, err
}

// transact sends a transaction and blocks until its receipt is available.
// A reverted transaction is reported as a submission failure.
func (s *signer) transact(ctx context.Context, op, method string, params ...interface{}) (receipt types.Receipt, err error) {
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	opts := *s.opts
	opts.Context = ctx

	tx, err := s.client.contract.Transact(&opts, method, params...)
	if err != nil {
		return types.Receipt{}, fmt.Errorf("%w: %v", types.ErrSubmission, err)
	}
	log.WithField(txHashField, tx.Hash().Hex()).Info("Transaction sent, waiting for it to be mined")

	mined, err := bind.WaitMined(ctx, s.client.provider, tx)
	if err != nil {
		return types.Receipt{}, fmt.Errorf("%w: %v", types.ErrSubmission, err)
	}
	if mined.Status != ethTypes.ReceiptStatusSuccessful {
		return types.Receipt{}, fmt.Errorf("%w: transaction %s reverted", types.ErrSubmission, tx.Hash().Hex())
	}

	log.WithField(txHashField, tx.Hash().Hex()).WithField("block", mined.BlockNumber).Info("Transaction mined")
	return types.Receipt{Hash: tx.Hash().Hex(), BlockNumber: mined.BlockNumber.Uint64()}, nil
}
