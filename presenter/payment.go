package presenter

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/davedumto/nex402/types"
	"github.com/davedumto/nex402/utils"
)

type paymentOutput struct {
	URL        string                    `json:"url" yaml:"url"`
	Status     int                       `json:"status" yaml:"status"`
	StatusText string                    `json:"statusText" yaml:"statusText"`
	OK         bool                      `json:"ok" yaml:"ok"`
	Attempts   int                       `json:"attempts" yaml:"attempts"`
	Wallet     string                    `json:"wallet,omitempty" yaml:"wallet,omitempty"`
	Receipt    *types.TransactionReceipt `json:"receipt,omitempty" yaml:"receipt,omitempty"`
	Body       any                       `json:"body,omitempty" yaml:"body,omitempty"`
}

// Payment renders the outcome of a pay invocation: status, receipt and the
// response body. JSON bodies are pretty-printed; other bodies are cut at
// 50 lines in text mode.
func (p *Presenter) Payment(url string, res *types.PaymentRequestResult) error {
	isJSON := strings.Contains(res.ContentType, "application/json")

	if p.format != FormatText {
		out := paymentOutput{
			URL:        url,
			Status:     res.HTTPStatus,
			StatusText: res.StatusText,
			OK:         res.OK,
			Attempts:   res.Attempts,
			Wallet:     res.Wallet,
			Receipt:    res.Receipt,
		}
		if len(res.ResponseBody) > 0 {
			out.Body = string(res.ResponseBody)
			if isJSON {
				if v, err := utils.DecodeJSON(res.ResponseBody); err == nil {
					out.Body = v
				}
			}
		}
		return p.encode(out)
	}

	if res.Wallet != "" {
		p.printf("\n  Wallet loaded: %s\n", utils.ShortAddress(res.Wallet))
	}
	p.printf("\n")
	p.rule()
	mark := "✅"
	if !res.OK {
		mark = "❌"
	}
	p.printf("\n  %s Status: %d %s\n\n", mark, res.HTTPStatus, res.StatusText)

	if r := res.Receipt; r != nil {
		p.rule()
		p.printf("\n  Payment Receipt:\n\n")
		p.field("Transaction", r.TransactionID)
		if r.Network != "" {
			p.field("Network", types.Network(r.Network).Label())
		}
		if r.Payer != "" {
			p.field("Payer", r.Payer)
		}
		p.field("Explorer", r.ExplorerURL)
		p.printf("\n")
	}

	p.rule()
	p.printf("\n  Response:\n\n")
	if isJSON {
		var buf bytes.Buffer
		if err := json.Indent(&buf, res.ResponseBody, "", "  "); err == nil {
			p.indented(buf.String(), 0)
		} else {
			p.indented(string(res.ResponseBody), maxBodyLines)
		}
	} else {
		p.indented(string(res.ResponseBody), maxBodyLines)
	}
	p.printf("\n")
	p.rule()
	p.printf("\n  Done.\n\n")
	return nil
}
