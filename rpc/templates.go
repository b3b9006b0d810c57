package rpc

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/safwentrabelsi/civilchain-server/controller"
	"github.com/safwentrabelsi/civilchain-server/format"
	"github.com/safwentrabelsi/civilchain-server/types"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("pages").Funcs(template.FuncMap{
	"formatTime":      format.FormatTime,
	"truncate":        format.TruncateAddress,
	"short":           func(addr string) string { return format.ShortAddress(addr, 8, 6) },
	"status":          format.StatusDisplay,
	"label":           format.StatusLabel,
	"txURL":           format.TxURL,
	"lower":           strings.ToLower,
	"even":            func(i int) bool { return i%2 == 0 },
	"connected":       func(s controller.State) bool { return s == controller.Connected },
	"filters":         func() []controller.Filter { return controller.Filters },
	"title":           filterTitle,
	"card":            newCard,
	"copyOf":          newCopyButton,
	"sourceCard":      sourceCard,
	"destinationCard": destinationCard,
}).ParseFS(templateFS, "templates/*.html"))

// pageData is what every page template receives.
type pageData struct {
	Title    string
	Path     string
	Explorer string
	View     interface{}
	// Target resolves a listing row's hash to its detail route, "" when the row has none.
	Target   func(hash string) string
}

type cardData struct {
	Request types.ServiceRequest
	Review  bool
	Busy    bool
}

func newCard(request types.ServiceRequest, review, busy bool) cardData {
	return cardData{Request: request, Review: review, Busy: busy}
}

type copyButton struct {
	Text  string
	Label string
}

func newCopyButton(text, label string) copyButton {
	return copyButton{Text: text, Label: label}
}

type txRow struct {
	Label string
	Value string
	Copy  *copyButton
	Link  string
}

// txCard is one side of the source/destination pair on the detail page.
// A nil Badge renders the "request created" marker.
type txCard struct {
	Title string
	Badge *format.Display
	Rows  []txRow
}

func sourceCard(explorer string, d *types.TransactionDetail) txCard {
	return txCard{
		Title: "SOURCE TRANSACTION:",
		Rows: []txRow{
			{Label: "TXN HASH", Value: d.SourceTx, Copy: &copyButton{d.SourceTx, "Source Transaction Hash"}, Link: format.TxURL(explorer, d.SourceTx)},
			{Label: "REQUEST ID", Value: fmt.Sprint(d.RequestID)},
			{Label: "SENDER ADDRESS", Value: d.Citizen, Copy: &copyButton{d.Citizen, "Citizen Address"}},
			{Label: "TIME STAMP", Value: format.FormatTime(d.Timestamp)},
		},
	}
}

func destinationCard(explorer string, d *types.TransactionDetail) txCard {
	badge := format.StatusDisplay(d.Status).Upper()
	hash := txRow{Label: "TXN HASH", Value: "No updates yet"}
	stamp := txRow{Label: "TIME STAMP", Value: "Pending"}
	if d.DestinationTx != "" {
		hash.Value = d.DestinationTx
		hash.Copy = &copyButton{d.DestinationTx, "Destination Transaction Hash"}
		hash.Link = format.TxURL(explorer, d.DestinationTx)
	}
	if d.DestinationTimestamp != 0 {
		stamp.Value = format.FormatTime(d.DestinationTimestamp)
	}
	return txCard{
		Title: "DESTINATION TRANSACTION:",
		Badge: &badge,
		Rows: []txRow{
			hash,
			{Label: "SERVICE TYPE", Value: d.ServiceType},
			{Label: "RECEIVER ADDRESS", Value: d.ContractAddress, Copy: &copyButton{d.ContractAddress, "Contract Address"}},
			stamp,
		},
	}
}

func filterTitle(f controller.Filter) string {
	s := string(f)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func render(w io.Writer, name string, data pageData) error {
	return pages.ExecuteTemplate(w, name, data)
}
