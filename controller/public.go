package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/safwentrabelsi/civilchain-server/types"

	log "github.com/sirupsen/logrus"
)

const onlyMineNotice = "Please connect your wallet to use 'Only Mine' filter"

// Public is the read-only record listing. It does not need a signer.
type Public struct {
	page
	reader  Reader
	session Session

	rows     []types.ListingRow
	query    string
	onlyMine bool
	account  string
}

// PublicView is a snapshot of the listing page.
type PublicView struct {
	State    State              `json:"state"`
	Error    string             `json:"error,omitempty"`
	Notice   string             `json:"notice,omitempty"`
	Query    string             `json:"query"`
	OnlyMine bool               `json:"onlyMine"`
	Account  string             `json:"account,omitempty"`
	Total    int                `json:"total"`
	Rows     []types.ListingRow `json:"rows"`
	Empty    string             `json:"empty,omitempty"`
}

// NewPublic creates the listing controller.
func NewPublic(reader Reader, session Session) *Public {
	return &Public{reader: reader, session: session}
}

// Load reads the requests and their creation transactions, then looks up
// an already authorized account without prompting.
func (p *Public) Load(ctx context.Context) error {
	p.setState(Connecting)

	if err := p.reader.CheckContract(ctx); err != nil {
		if !errors.Is(err, types.ErrNoWallet) && !errors.Is(err, types.ErrNoContract) {
			err = fmt.Errorf("%w: %v", types.ErrRead, err)
		}
		return p.fail(err)
	}
	requests, err := p.reader.ReadAllRequests(ctx)
	if err != nil {
		return p.fail(err)
	}
	events, err := p.reader.ReadCreationEvents(ctx)
	if err != nil {
		return p.fail(err)
	}
	rows := JoinTransactions(requests, events)

	var account string
	accounts, err := p.session.Accounts(ctx)
	if err != nil {
		log.Debug("No wallet connected yet: ", err)
	} else if len(accounts) > 0 {
		account = strings.ToLower(accounts[0])
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = rows
	if account != "" {
		p.account = account
	}
	p.state = Connected
	p.errMsg = ""
	log.WithField("count", len(rows)).Debug("Loaded public listing")
	return nil
}

// SetQuery sets the free-text search.
func (p *Public) SetQuery(query string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.query = query
}

// SetOnlyMine toggles the "only mine" filter. Turning it on without a known
// account asks the wallet for one first; if that fails the toggle stays off.
func (p *Public) SetOnlyMine(ctx context.Context, on bool) error {
	p.mu.Lock()
	if !on || p.account != "" {
		p.onlyMine = on
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	accounts, err := p.session.RequestAccounts(ctx)
	if err == nil && len(accounts) == 0 {
		err = types.ErrNoWallet
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.onlyMine = false
		p.notice = onlyMineNotice
		return err
	}
	p.account = strings.ToLower(accounts[0])
	p.onlyMine = true
	p.notice = ""
	return nil
}

// Target returns the detail route of hash when it belongs to a loaded row.
// Rows without a transaction hash have no target.
func (p *Public) Target(hash string) string {
	if hash == "" {
		return ""
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, row := range p.rows {
		if row.TransactionHash != "" && strings.EqualFold(row.TransactionHash, hash) {
			return "/" + row.TransactionHash
		}
	}
	return ""
}

// View applies the filters to the loaded rows.
func (p *Public) View() PublicView {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rows := p.rows
	if p.onlyMine && p.account != "" {
		rows = OnlyMine(rows, p.account)
	}
	rows = FilterRows(rows, p.query)

	view := PublicView{
		State:    p.state,
		Error:    p.errMsg,
		Notice:   p.notice,
		Query:    p.query,
		OnlyMine: p.onlyMine,
		Account:  p.account,
		Total:    len(p.rows),
		Rows:     rows,
	}
	if len(rows) == 0 {
		if len(p.rows) == 0 {
			view.Empty = "No records found"
		} else {
			view.Empty = "No matching records found"
		}
	}
	return view
}
