package ethclient

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/safwentrabelsi/civilchain-server/types"
)

// Contract surface of the service registry, as called by the front-end.
const (
	methodGetAllRequests = "getAllRequests"
	methodCreateRequest  = "createRequest"
	methodUpdateStatus   = "updateStatus"
	eventRequestCreated  = "RequestCreated"
	eventStatusUpdated   = "StatusUpdated"
)

// ServiceRegistryABI is the ABI of the deployed service registry contract.
const ServiceRegistryABI = `[
	{"type":"function","name":"createRequest","stateMutability":"nonpayable",
	 "inputs":[{"name":"serviceType","type":"string"}],"outputs":[]},
	{"type":"function","name":"updateStatus","stateMutability":"nonpayable",
	 "inputs":[{"name":"id","type":"uint256"},{"name":"status","type":"uint8"}],"outputs":[]},
	{"type":"function","name":"getAllRequests","stateMutability":"view","inputs":[],
	 "outputs":[{"name":"","type":"tuple[]","components":[
		{"name":"id","type":"uint256"},
		{"name":"citizen","type":"address"},
		{"name":"serviceType","type":"string"},
		{"name":"description","type":"string"},
		{"name":"status","type":"uint8"},
		{"name":"timestamp","type":"uint256"}]}]},
	{"type":"event","name":"RequestCreated","anonymous":false,"inputs":[
		{"name":"id","type":"uint256","indexed":true},
		{"name":"citizen","type":"address","indexed":true},
		{"name":"serviceType","type":"string","indexed":false}]},
	{"type":"event","name":"StatusUpdated","anonymous":false,"inputs":[
		{"name":"id","type":"uint256","indexed":true},
		{"name":"status","type":"uint8","indexed":false}]}
]`

// ContractABI parses ServiceRegistryABI.
func ContractABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(ServiceRegistryABI))
}

// ledgerRequest mirrors one element of the getAllRequests() tuple array.
// Field order must follow the ABI components.
type ledgerRequest struct {
	ID          *big.Int       `abi:"id"`
	Citizen     common.Address `abi:"citizen"`
	ServiceType string         `abi:"serviceType"`
	Description string         `abi:"description"`
	Status      uint8          `abi:"status"`
	Timestamp   *big.Int       `abi:"timestamp"`
}

// decodeRequests converts the unpacked getAllRequests() output into typed records.
func decodeRequests(contractABI abi.ABI, values []interface{}) ([]types.ServiceRequest, error) {
	var rows []ledgerRequest
	if err := contractABI.Methods[methodGetAllRequests].Outputs.Copy(&rows, values); err != nil {
		return nil, fmt.Errorf("unexpected getAllRequests output: %w", err)
	}

	requests := make([]types.ServiceRequest, 0, len(rows))
	for i, row := range rows {
		if row.ID == nil || !row.ID.IsUint64() {
			return nil, fmt.Errorf("request at index %d has an invalid id", i)
		}
		if row.Timestamp == nil || !row.Timestamp.IsUint64() {
			return nil, fmt.Errorf("request %s has an invalid timestamp", row.ID)
		}
		requests = append(requests, types.ServiceRequest{
			ID:          row.ID.Uint64(),
			Citizen:     row.Citizen.Hex(),
			ServiceType: row.ServiceType,
			Description: row.Description,
			Status:      types.RequestStatus(row.Status),
			Timestamp:   row.Timestamp.Uint64(),
		})
	}
	return requests, nil
}

// unpackEvent decodes both the data and the indexed topics of an event log into one map.
func unpackEvent(contractABI abi.ABI, name string, lg ethTypes.Log) (map[string]interface{}, error) {
	event, ok := contractABI.Events[name]
	if !ok {
		return nil, fmt.Errorf("event %s is not part of the contract ABI", name)
	}
	if len(lg.Topics) == 0 || lg.Topics[0] != event.ID {
		return nil, fmt.Errorf("log %s/%d is not a %s event", lg.TxHash.Hex(), lg.Index, name)
	}

	fields := make(map[string]interface{})
	if err := contractABI.UnpackIntoMap(fields, name, lg.Data); err != nil {
		return nil, err
	}

	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(lg.Topics)-1 != len(indexed) {
		return nil, fmt.Errorf("log %s/%d has %d topics, want %d", lg.TxHash.Hex(), lg.Index, len(lg.Topics)-1, len(indexed))
	}
	if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
		return nil, err
	}
	return fields, nil
}

func decodeCreationEvent(contractABI abi.ABI, lg ethTypes.Log) (types.CreationEvent, error) {
	fields, err := unpackEvent(contractABI, eventRequestCreated, lg)
	if err != nil {
		return types.CreationEvent{}, err
	}

	id, err := requestID(fields)
	if err != nil {
		return types.CreationEvent{}, err
	}
	citizen, ok := fields["citizen"].(common.Address)
	if !ok {
		return types.CreationEvent{}, errors.New("RequestCreated: citizen is not an address")
	}
	serviceType, ok := fields["serviceType"].(string)
	if !ok {
		return types.CreationEvent{}, errors.New("RequestCreated: serviceType is not a string")
	}

	return types.CreationEvent{
		TxHash:      lg.TxHash.Hex(),
		BlockNumber: lg.BlockNumber,
		LogIndex:    lg.Index,
		RequestID:   id,
		Citizen:     citizen.Hex(),
		ServiceType: serviceType,
	}, nil
}

func decodeStatusEvent(contractABI abi.ABI, lg ethTypes.Log) (types.StatusEvent, error) {
	fields, err := unpackEvent(contractABI, eventStatusUpdated, lg)
	if err != nil {
		return types.StatusEvent{}, err
	}

	id, err := requestID(fields)
	if err != nil {
		return types.StatusEvent{}, err
	}
	status, ok := fields["status"].(uint8)
	if !ok {
		return types.StatusEvent{}, errors.New("StatusUpdated: status is not a uint8")
	}

	return types.StatusEvent{
		TxHash:      lg.TxHash.Hex(),
		BlockNumber: lg.BlockNumber,
		LogIndex:    lg.Index,
		RequestID:   id,
		Status:      types.RequestStatus(status),
	}, nil
}

func requestID(fields map[string]interface{}) (uint64, error) {
	id, ok := fields["id"].(*big.Int)
	if !ok || !id.IsUint64() {
		return 0, fmt.Errorf("event id %v is not a valid request id", fields["id"])
	}
	return id.Uint64(), nil
}
