// Package format turns ledger values into the strings shown on pages.
package format

import (
	"math"
	"strings"
	"time"

	"github.com/safwentrabelsi/civilchain-server/types"
)

const timeLayout = "January 02, 2006, 03:04:05 PM"

// FormatTime renders a unix timestamp in seconds, "N/A" when unset or out of range.
func FormatTime(ts uint64) string {
	if ts == 0 || ts > math.MaxInt64 {
		return "N/A"
	}
	return time.Unix(int64(ts), 0).UTC().Format(timeLayout)
}

// TruncateAddress shortens an address or hash to 0x1234...abcd.
func TruncateAddress(addr string) string {
	return ShortAddress(addr, 6, 4)
}

// ShortAddress keeps head leading and tail trailing characters of addr.
func ShortAddress(addr string, head, tail int) string {
	if len(addr) <= head+tail {
		return addr
	}
	return addr[:head] + "..." + addr[len(addr)-tail:]
}

// Display is how a status is presented: label, icon and css class.
type Display struct {
	Text  string
	Icon  string
	Class string
}

// StatusDisplay maps a request status to the public badge.
func StatusDisplay(status types.RequestStatus) Display {
	switch status {
	case types.PENDING:
		return Display{Text: "Under review", Icon: "🔵", Class: "status-review"}
	case types.APPROVED:
		return Display{Text: "Completed", Icon: "✅", Class: "status-completed"}
	case types.REJECTED:
		return Display{Text: "Rejected", Icon: "🔶", Class: "status-rejected"}
	default:
		return Display{Text: "Unknown", Icon: "❓", Class: "status-unknown"}
	}
}

// StatusLabel maps a request status to the badge on request cards.
// Values outside the enum fall back to PENDING.
func StatusLabel(status types.RequestStatus) Display {
	switch status {
	case types.APPROVED:
		return Display{Text: "APPROVED", Icon: "✅", Class: "status-approved"}
	case types.REJECTED:
		return Display{Text: "REJECTED", Icon: "❌", Class: "status-rejected"}
	default:
		return Display{Text: "PENDING", Icon: "⏳", Class: "status-pending"}
	}
}

// Upper is the uppercase variant used on transaction cards.
func (d Display) Upper() Display {
	d.Text = strings.ToUpper(d.Text)
	return d
}

// TxURL links a transaction hash on the configured block explorer.
func TxURL(explorer, hash string) string {
	return strings.TrimRight(explorer, "/") + "/tx/" + hash
}
