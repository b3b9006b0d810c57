package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/safwentrabelsi/civilchain-server/types"

	log "github.com/sirupsen/logrus"
)

const submittedNotice = "Request submitted successfully to blockchain!"

// Citizen lists the connected account's requests and submits new ones.
type Citizen struct {
	page
	reader  Reader
	session Session
	reasons ReasonStore

	requests []types.ServiceRequest
}

// CitizenView is a snapshot of the citizen page.
type CitizenView struct {
	State        State                  `json:"state"`
	Error        string                 `json:"error,omitempty"`
	Notice       string                 `json:"notice,omitempty"`
	Account      string                 `json:"account,omitempty"`
	Busy         bool                   `json:"busy"`
	Requests     []types.ServiceRequest `json:"requests"`
	ServiceTypes []string               `json:"serviceTypes"`
}

// NewCitizen creates the citizen controller.
func NewCitizen(reader Reader, session Session, reasons ReasonStore) *Citizen {
	return &Citizen{reader: reader, session: session, reasons: reasons}
}

// Connect connects the session and loads the account's requests.
func (c *Citizen) Connect(ctx context.Context) error {
	c.setState(Connecting)
	if err := c.session.Connect(ctx); err != nil {
		return c.fail(err)
	}
	return c.Load(ctx)
}

// Load reads every request, keeps the connected account's ones and adds the
// locally stored rejection reasons.
func (c *Citizen) Load(ctx context.Context) error {
	account := c.session.Account()
	if account == "" {
		return c.fail(types.ErrNotConnected)
	}

	all, err := c.reader.ReadAllRequests(ctx)
	if err != nil {
		return c.fail(err)
	}
	requests := WithReasons(OwnRequests(all, account), loadReasons(ctx, c.reasons))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = requests
	c.state = Connected
	c.errMsg = ""
	log.WithField("account", account).WithField("count", len(requests)).Debug("Loaded citizen requests")
	return nil
}

// Submit validates the service type, sends createRequest and reloads once it is mined.
// Only one submission runs at a time.
func (c *Citizen) Submit(ctx context.Context, serviceType string) error {
	serviceType = strings.TrimSpace(serviceType)
	if serviceType == "" {
		return c.reject(fmt.Errorf("%w: Please select a service type", types.ErrValidation))
	}
	if !types.IsServiceType(serviceType) {
		return c.reject(fmt.Errorf("%w: Unknown service type %q", types.ErrValidation, serviceType))
	}

	if err := c.begin(); err != nil {
		return c.reject(err)
	}
	defer c.end()

	writer, err := c.session.Writer()
	if err != nil {
		return c.reject(err)
	}
	receipt, err := writer.SubmitCreateRequest(ctx, serviceType)
	if err != nil {
		log.WithField("service_type", serviceType).Error("failed to submit request: ", err)
		return c.reject(err)
	}

	log.WithField("tx_hash", receipt.Hash).Info("Service request submitted")
	c.setNotice(submittedNotice)
	return c.Load(ctx)
}

// reject keeps err as the notice of the page without leaving the connected state.
func (c *Citizen) reject(err error) error {
	c.setNotice(types.UserMessage(err))
	return err
}

// View returns the current snapshot.
func (c *Citizen) View() CitizenView {
	c.mu.RLock()
	defer c.mu.RUnlock()

	requests := make([]types.ServiceRequest, len(c.requests))
	copy(requests, c.requests)
	return CitizenView{
		State:        c.state,
		Error:        c.errMsg,
		Notice:       c.notice,
		Account:      c.session.Account(),
		Busy:         c.busy,
		Requests:     requests,
		ServiceTypes: types.ServiceTypes,
	}
}

// loadReasons reads the sidecar. A failure only drops the reasons.
func loadReasons(ctx context.Context, store ReasonStore) map[uint64]string {
	if store == nil {
		return nil
	}
	reasons, err := store.All(ctx)
	if err != nil {
		log.Error("failed to read rejection reasons: ", err)
		return nil
	}
	return reasons
}
