package types

import (
	"errors"
	"strings"
)

// Error kinds surfaced by the ledger client and the page controllers.
// Callers classify with errors.Is, the concrete failure is wrapped after the kind.
var (
	ErrNoWallet     = errors.New("wallet not detected")
	ErrNoContract   = errors.New("no contract found at this address on the selected network")
	ErrUnknown      = errors.New("unknown error")
	ErrRead         = errors.New("failed to read requests")
	ErrEventQuery   = errors.New("failed to query events")
	ErrSubmission   = errors.New("transaction failed")
	ErrNotFound     = errors.New("transaction not found")
	ErrValidation   = errors.New("invalid input")
	ErrBusy         = errors.New("another action is in progress")
	ErrNotConnected = errors.New("wallet not connected")
)

// UserMessage maps an error to the short message shown on a page.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoWallet):
		return "Wallet not detected. Please configure a wallet for this server."
	case errors.Is(err, ErrNoContract):
		return "No contract found at this address. Please ensure the server is connected to the correct blockchain network."
	case errors.Is(err, ErrRead), errors.Is(err, ErrEventQuery):
		return "Failed to load blockchain data. Please ensure the node is reachable and on the correct network."
	case errors.Is(err, ErrNotFound):
		return "Transaction not found"
	case errors.Is(err, ErrValidation):
		return detail(err, ErrValidation)
	case errors.Is(err, ErrSubmission):
		return "Transaction failed: " + detail(err, ErrSubmission)
	case errors.Is(err, ErrBusy):
		return "Please wait for the current transaction to complete."
	case errors.Is(err, ErrNotConnected):
		return "Please connect your wallet first."
	case errors.Is(err, ErrUnknown):
		return detail(err, ErrUnknown)
	default:
		return "Unknown error"
	}
}

// detail strips the kind prefix from a wrapped error so only the reason is shown.
func detail(err, kind error) string {
	msg := err.Error()
	prefix := kind.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	if msg == kind.Error() {
		return "Unknown error"
	}
	return msg
}
