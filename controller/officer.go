package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/safwentrabelsi/civilchain-server/types"

	log "github.com/sirupsen/logrus"
)

const rejectReasonMessage = "Please provide a reason for rejection"

// Officer is the review dashboard.
// The officer address check only decides what the page shows, the contract enforces who may write.
type Officer struct {
	page
	reader  Reader
	session Session
	reasons ReasonStore
	officer string

	requests []types.ServiceRequest
	filter   Filter
}

// OfficerView is a snapshot of the dashboard.
type OfficerView struct {
	State          State                  `json:"state"`
	Error          string                 `json:"error,omitempty"`
	Notice         string                 `json:"notice,omitempty"`
	Account        string                 `json:"account,omitempty"`
	OfficerAddress string                 `json:"officerAddress"`
	Authorized     bool                   `json:"authorized"`
	Busy           bool                   `json:"busy"`
	Filter         Filter                 `json:"filter"`
	Stats          Stats                  `json:"stats"`
	Requests       []types.ServiceRequest `json:"requests"`
	Empty          string                 `json:"empty,omitempty"`
}

// NewOfficer creates the dashboard controller for the configured officer address.
func NewOfficer(reader Reader, session Session, reasons ReasonStore, officerAddress string) *Officer {
	return &Officer{
		reader:  reader,
		session: session,
		reasons: reasons,
		officer: officerAddress,
		filter:  FilterPending,
	}
}

// Connect connects the session and loads every request.
func (o *Officer) Connect(ctx context.Context) error {
	o.setState(Connecting)
	if err := o.session.Connect(ctx); err != nil {
		return o.fail(err)
	}
	return o.Load(ctx)
}

// Authorized reports whether the connected account is the officer address.
func (o *Officer) Authorized() bool {
	account := o.session.Account()
	return account != "" && strings.EqualFold(account, o.officer)
}

// Load reads the full request set and adds the stored rejection reasons.
func (o *Officer) Load(ctx context.Context) error {
	if o.session.Account() == "" {
		return o.fail(types.ErrNotConnected)
	}

	all, err := o.reader.ReadAllRequests(ctx)
	if err != nil {
		return o.fail(err)
	}
	requests := WithReasons(all, loadReasons(ctx, o.reasons))

	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = requests
	o.state = Connected
	o.errMsg = ""
	log.WithField("count", len(requests)).Debug("Loaded requests for review")
	return nil
}

// SetFilter selects the listed requests. Unknown filters are rejected.
func (o *Officer) SetFilter(filter string) error {
	f, ok := ParseFilter(filter)
	if !ok {
		return fmt.Errorf("%w: unknown filter %q", types.ErrValidation, filter)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.filter = f
	return nil
}

// Approve sets request id to APPROVED.
func (o *Officer) Approve(ctx context.Context, id uint64) error {
	return o.update(ctx, id, types.APPROVED, "")
}

// Reject sets request id to REJECTED and keeps reason in the sidecar once the write is mined.
func (o *Officer) Reject(ctx context.Context, id uint64, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		err := fmt.Errorf("%w: %s", types.ErrValidation, rejectReasonMessage)
		o.setNotice(types.UserMessage(err))
		return err
	}
	return o.update(ctx, id, types.REJECTED, reason)
}

func (o *Officer) update(ctx context.Context, id uint64, status types.RequestStatus, reason string) error {
	if err := o.begin(); err != nil {
		o.setNotice(types.UserMessage(err))
		return err
	}
	defer o.end()

	writer, err := o.session.Writer()
	if err != nil {
		o.setNotice(types.UserMessage(err))
		return err
	}
	receipt, err := writer.SubmitStatusUpdate(ctx, id, status)
	if err != nil {
		log.WithField("request_id", id).Error("failed to update request status: ", err)
		o.setNotice(types.UserMessage(err))
		return err
	}

	if status == types.REJECTED && reason != "" && o.reasons != nil {
		if err := o.reasons.Put(ctx, id, reason); err != nil {
			log.WithField("request_id", id).Error("failed to store rejection reason: ", err)
		}
	}

	verb := "approved"
	if status == types.REJECTED {
		verb = "rejected"
	}
	o.setNotice(fmt.Sprintf("Request #%d %s successfully! Transaction Hash: %s Block Number: %d", id, verb, receipt.Hash, receipt.BlockNumber))
	return o.Load(ctx)
}

// View filters the full set and recomputes the counters on every call.
func (o *Officer) View() OfficerView {
	o.mu.RLock()
	defer o.mu.RUnlock()

	requests := FilterByStatus(o.requests, o.filter)
	view := OfficerView{
		State:          o.state,
		Error:          o.errMsg,
		Notice:         o.notice,
		Account:        o.session.Account(),
		OfficerAddress: o.officer,
		Authorized:     o.Authorized(),
		Busy:           o.busy,
		Filter:         o.filter,
		Stats:          CountStatuses(o.requests),
		Requests:       requests,
	}
	if len(requests) == 0 {
		view.Empty = o.filter.EmptyMessage()
	}
	return view
}
