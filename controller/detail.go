package controller

import (
	"context"
	"errors"
	"strings"

	"github.com/safwentrabelsi/civilchain-server/types"

	log "github.com/sirupsen/logrus"
)

const detailFailure = "Failed to load transaction details"

// Detail pairs a creation transaction with the last status update of its request.
// Nothing is cached, every Load reads the ledger again.
type Detail struct {
	reader   Reader
	contract string
}

// DetailView is the result of one lookup.
type DetailView struct {
	State  State                    `json:"state"`
	Error  string                   `json:"error,omitempty"`
	Detail *types.TransactionDetail `json:"detail,omitempty"`
}

// NewDetail creates the detail controller for the contract at contractAddress.
func NewDetail(reader Reader, contractAddress string) *Detail {
	return &Detail{reader: reader, contract: contractAddress}
}

// Load looks hash up among the creation events. The destination is the last
// status event for the request in the order the node returned them; the
// current status comes from the live request set.
func (d *Detail) Load(ctx context.Context, hash string) (DetailView, error) {
	detail, err := d.lookup(ctx, hash)
	if err != nil {
		msg := detailFailure
		if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrNoWallet) {
			msg = types.UserMessage(err)
		}
		log.WithField("tx_hash", hash).Debug("Transaction lookup failed: ", err)
		return DetailView{State: Error, Error: msg}, err
	}
	return DetailView{State: Connected, Detail: &detail}, nil
}

func (d *Detail) lookup(ctx context.Context, hash string) (types.TransactionDetail, error) {
	creations, err := d.reader.ReadCreationEvents(ctx)
	if err != nil {
		return types.TransactionDetail{}, err
	}

	var created *types.CreationEvent
	for i := range creations {
		if strings.EqualFold(creations[i].TxHash, hash) {
			created = &creations[i]
			break
		}
	}
	if created == nil {
		return types.TransactionDetail{}, types.ErrNotFound
	}

	detail := types.TransactionDetail{
		RequestID:       created.RequestID,
		Citizen:         created.Citizen,
		ServiceType:     created.ServiceType,
		Status:          types.PENDING,
		SourceTx:        created.TxHash,
		ContractAddress: d.contract,
	}

	updates, err := d.reader.ReadStatusEvents(ctx)
	if err != nil {
		return types.TransactionDetail{}, err
	}
	if last := LastStatusEvent(updates, created.RequestID); last != nil {
		detail.DestinationTx = last.TxHash
		ts, err := d.reader.BlockTimestamp(ctx, last.BlockNumber)
		if err != nil {
			return types.TransactionDetail{}, err
		}
		detail.DestinationTimestamp = ts
	}

	requests, err := d.reader.ReadAllRequests(ctx)
	if err != nil {
		return types.TransactionDetail{}, err
	}
	for _, request := range requests {
		if request.ID == created.RequestID {
			detail.Status = request.Status
			detail.Timestamp = request.Timestamp
			break
		}
	}
	return detail, nil
}
