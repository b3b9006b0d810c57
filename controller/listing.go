package controller

import (
	"strconv"
	"strings"

	"github.com/safwentrabelsi/civilchain-server/types"
)

// JoinTransactions attaches to each request the hash of the transaction that created it.
// When several creation events carry the same id the last one wins.
func JoinTransactions(requests []types.ServiceRequest, events []types.CreationEvent) []types.ListingRow {
	hashes := make(map[uint64]string, len(events))
	for _, event := range events {
		hashes[event.RequestID] = event.TxHash
	}

	rows := make([]types.ListingRow, 0, len(requests))
	for _, request := range requests {
		rows = append(rows, types.ListingRow{
			ServiceRequest:  request,
			TransactionHash: hashes[request.ID],
		})
	}
	return rows
}

// FilterRows keeps the rows where query is a case-insensitive substring of the id,
// the citizen, the service, the description or the transaction hash.
// A blank query keeps every row.
func FilterRows(rows []types.ListingRow, query string) []types.ListingRow {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]types.ListingRow, 0, len(rows))
	for _, row := range rows {
		if query == "" || rowMatches(row, query) {
			out = append(out, row)
		}
	}
	return out
}

func rowMatches(row types.ListingRow, query string) bool {
	fields := []string{
		strconv.FormatUint(row.ID, 10),
		row.Citizen,
		row.ServiceType,
		row.Description,
		row.TransactionHash,
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// OnlyMine keeps the rows submitted by account.
func OnlyMine(rows []types.ListingRow, account string) []types.ListingRow {
	out := make([]types.ListingRow, 0, len(rows))
	for _, row := range rows {
		if row.OwnedBy(account) {
			out = append(out, row)
		}
	}
	return out
}

// OwnRequests keeps the requests submitted by account.
func OwnRequests(requests []types.ServiceRequest, account string) []types.ServiceRequest {
	out := make([]types.ServiceRequest, 0, len(requests))
	for _, request := range requests {
		if request.OwnedBy(account) {
			out = append(out, request)
		}
	}
	return out
}

// WithReasons copies requests and fills RejectionReason from the sidecar reasons.
func WithReasons(requests []types.ServiceRequest, reasons map[uint64]string) []types.ServiceRequest {
	out := make([]types.ServiceRequest, len(requests))
	for i, request := range requests {
		request.RejectionReason = reasons[request.ID]
		out[i] = request
	}
	return out
}

// Filter selects which requests the officer dashboard lists.
type Filter string

// Supported filters.
const (
	FilterPending  Filter = "pending"
	FilterAll      Filter = "all"
	FilterApproved Filter = "approved"
	FilterRejected Filter = "rejected"
)

// Filters lists the filters in the order the dashboard offers them.
var Filters = []Filter{FilterPending, FilterAll, FilterApproved, FilterRejected}

// ParseFilter accepts a filter name or the numeric status it selects. Blank means pending.
func ParseFilter(s string) (Filter, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pending", "0":
		return FilterPending, true
	case "all":
		return FilterAll, true
	case "approved", "1":
		return FilterApproved, true
	case "rejected", "2":
		return FilterRejected, true
	default:
		return "", false
	}
}

// Match reports whether request is listed under f.
func (f Filter) Match(request types.ServiceRequest) bool {
	switch f {
	case FilterAll:
		return true
	case FilterApproved:
		return request.Status == types.APPROVED
	case FilterRejected:
		return request.Status == types.REJECTED
	default:
		return request.Status == types.PENDING
	}
}

// EmptyMessage is shown when no request matches f.
func (f Filter) EmptyMessage() string {
	if f == FilterAll {
		return "No requests found"
	}
	return "No " + string(f) + " requests found"
}

// FilterByStatus keeps the requests listed under f.
func FilterByStatus(requests []types.ServiceRequest, f Filter) []types.ServiceRequest {
	out := make([]types.ServiceRequest, 0, len(requests))
	for _, request := range requests {
		if f.Match(request) {
			out = append(out, request)
		}
	}
	return out
}

// Stats counts requests per status.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// CountStatuses computes Stats over the full request set.
func CountStatuses(requests []types.ServiceRequest) Stats {
	stats := Stats{Total: len(requests)}
	for _, request := range requests {
		switch request.Status {
		case types.PENDING:
			stats.Pending++
		case types.APPROVED:
			stats.Approved++
		case types.REJECTED:
			stats.Rejected++
		}
	}
	return stats
}

// LastStatusEvent returns the last event for id in the order given, nil when there is none.
func LastStatusEvent(events []types.StatusEvent, id uint64) *types.StatusEvent {
	var last *types.StatusEvent
	for i := range events {
		if events[i].RequestID == id {
			last = &events[i]
		}
	}
	return last
}
