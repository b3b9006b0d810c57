package types

import "strings"

// JSONRPCRequest defines the structure of an incoming JSON-RPC request.
type JSONRPCRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      interface{}   `json:"id"`
}

// JSONRPCResponse defines the structure of a JSON-RPC response.
type JSONRPCResponse struct {
	Jsonrpc string        `json:"jsonrpc"`
	ID      interface{}   `json:"id"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// JSONRPCError defines the structure of an error in a JSON-RPC response.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RequestStatus is the review state of a service request as stored by the contract.
type RequestStatus uint8

// Enum values for RequestStatus. The numeric values are part of the contract ABI.
const (
	PENDING RequestStatus = iota
	APPROVED
	REJECTED
)

// String method provides a string representation for the RequestStatus enum.
func (s RequestStatus) String() string {
	if !s.Valid() {
		return "UNKNOWN"
	}
	return [...]string{"PENDING", "APPROVED", "REJECTED"}[s]
}

// Valid reports whether s is one of the statuses the contract can hold.
func (s RequestStatus) Valid() bool {
	return s <= REJECTED
}

// ServiceTypes is the fixed catalogue citizens can file requests for.
var ServiceTypes = []string{
	"Birth Certificate",
	"Marriage Certificate",
	"Death Certificate",
	"Business License",
	"Building Permit",
	"Tax Clearance",
	"Identity Card",
	"Passport",
	"Other",
}

// IsServiceType reports whether name is part of the service catalogue.
func IsServiceType(name string) bool {
	for _, s := range ServiceTypes {
		if s == name {
			return true
		}
	}
	return false
}

// ServiceRequest is a request record decoded from getAllRequests().
// RejectionReason never comes from the ledger, it is filled from the sidecar store.
type ServiceRequest struct {
	ID              uint64        `json:"id"`
	Citizen         string        `json:"citizen"`
	ServiceType     string        `json:"serviceType"`
	Description     string        `json:"description"`
	Status          RequestStatus `json:"status"`
	Timestamp       uint64        `json:"timestamp"`
	RejectionReason string        `json:"rejectionReason,omitempty"`
}

// IsPending reports whether the request still awaits an officer decision.
func (r ServiceRequest) IsPending() bool {
	return r.Status == PENDING
}

// OwnedBy compares the submitter with account, ignoring hex case.
func (r ServiceRequest) OwnedBy(account string) bool {
	return account != "" && strings.EqualFold(r.Citizen, account)
}

// CreationEvent is a decoded RequestCreated log.
type CreationEvent struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	LogIndex    uint   `json:"logIndex"`
	RequestID   uint64 `json:"requestId"`
	Citizen     string `json:"citizen"`
	ServiceType string `json:"serviceType"`
}

// StatusEvent is a decoded StatusUpdated log.
type StatusEvent struct {
	TxHash      string        `json:"txHash"`
	BlockNumber uint64        `json:"blockNumber"`
	LogIndex    uint          `json:"logIndex"`
	RequestID   uint64        `json:"requestId"`
	Status      RequestStatus `json:"status"`
}

// ListingRow is a request joined with the hash of the transaction that created it.
type ListingRow struct {
	ServiceRequest
	TransactionHash string `json:"transactionHash,omitempty"`
}

// TransactionDetail pairs the creation transaction of a request with its last status update.
// An empty DestinationTx means the request has not been reviewed yet.
type TransactionDetail struct {
	RequestID            uint64        `json:"requestId"`
	Citizen              string        `json:"citizen"`
	ServiceType          string        `json:"serviceType"`
	Status               RequestStatus `json:"status"`
	SourceTx             string        `json:"sourceTx"`
	Timestamp            uint64        `json:"timestamp"`
	DestinationTx        string        `json:"destinationTx,omitempty"`
	DestinationTimestamp uint64        `json:"destinationTimestamp,omitempty"`
	ContractAddress      string        `json:"contractAddress"`
}

// Network identifies the chain the provider is connected to.
type Network struct {
	ChainID uint64 `json:"chainId"`
	Name    string `json:"name"`
}

// Receipt is what a finalized write reports back.
type Receipt struct {
	Hash        string `json:"hash"`
	BlockNumber uint64 `json:"blockNumber"`
}
