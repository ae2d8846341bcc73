// Package presenter normalizes payment challenges into reports and renders
// them for a terminal or as machine-readable JSON / YAML.
package presenter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/davedumto/nex402/types"
	"github.com/davedumto/nex402/utils"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

const (
	labelWidth     = 15
	ruleWidth      = 60
	maxHeaderWidth = 80
	maxBodyLines   = 50
)

var skipExtraKeys = map[string]bool{"symbol": true, "decimals": true}

// Presenter writes reports to w in one format.
type Presenter struct {
	w      io.Writer
	format Format
}

func New(w io.Writer, format Format) *Presenter {
	return &Presenter{w: w, format: format}
}

// notGated is the machine-readable form of a probe that was not challenged.
type notGated struct {
	URL        string `json:"url" yaml:"url"`
	Status     int    `json:"status" yaml:"status"`
	StatusText string `json:"statusText" yaml:"statusText"`
	Gated      bool   `json:"gated" yaml:"gated"`
	Message    string `json:"message" yaml:"message"`
}

// unparsed is the machine-readable form of a 402 without recognizable data.
type unparsed struct {
	URL     string            `json:"url" yaml:"url"`
	Status  int               `json:"status" yaml:"status"`
	Gated   bool              `json:"gated" yaml:"gated"`
	Source  string            `json:"source" yaml:"source"`
	Message string            `json:"message" yaml:"message"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

const (
	msgPublic   = "The endpoint is publicly accessible, no payment required."
	msgUnparsed = "Could not parse payment requirements."
)

// NotGated renders a probe result whose status was not 402.
func (p *Presenter) NotGated(res *types.ProbeResult) error {
	msg := msgPublic
	if !res.OK() {
		msg = fmt.Sprintf("The endpoint returned an error (%d).", res.Status)
	}

	if p.format != FormatText {
		return p.encode(notGated{
			URL:        res.URL,
			Status:     res.Status,
			StatusText: res.StatusText,
			Message:    msg,
		})
	}

	p.printf("\n  Status: %d %s\n", res.Status, res.StatusText)
	p.printf("\n  This endpoint is not x402-protected (no 402 response).\n")
	p.printf("\n  %s\n\n", msg)
	return nil
}

// Report renders a normalized challenge. A challenge with no located data
// renders the response headers instead so the operator can debug.
func (p *Presenter) Report(report types.RequirementsReport, c types.PaymentChallenge) error {
	if !c.Found() {
		return p.unparsed(report.URL, c)
	}
	if p.format != FormatText {
		return p.encode(report)
	}

	p.printf("  x402 Endpoint Detected!\n\n")
	p.rule()
	p.field("URL", report.URL)
	p.field("Source", report.Source)
	if report.Version != nil {
		p.field("x402 Version", fmt.Sprint(*report.Version))
	}
	if report.Description != "" {
		p.field("Description", report.Description)
	}
	if report.MimeType != "" {
		p.field("Content Type", report.MimeType)
	}

	if !report.Recognized() {
		p.printf("\n  Payment structure not recognized. Raw data:\n\n")
		raw, err := utils.NormalizeJSON(report.Raw)
		if err != nil {
			raw = []byte(fmt.Sprint(report.Raw))
		}
		p.indented(string(raw), 0)
		p.printf("\n")
		p.rule()
		return nil
	}

	p.printf("\n")
	p.rule()
	p.printf("\n  Payment Options (%d):\n\n", len(report.Options))
	for i, opt := range report.Options {
		if len(report.Options) > 1 {
			p.printf("  --- Option %d ---\n", i+1)
		}
		p.option(opt)
		p.printf("\n")
	}
	p.rule()
	return nil
}

func (p *Presenter) option(opt types.PaymentOption) {
	if opt.Scheme != "" {
		p.field("Scheme", opt.Scheme)
	}

	price := DescribePrice(opt)
	switch {
	case price.Human != "" && price.Atomic != "":
		p.field("Price", price.Human)
		p.field("Raw Amount", price.Atomic)
	case price.Human != "":
		p.field("Price", price.Human)
	case price.Atomic != "":
		p.field("Amount", price.Atomic)
	}

	if opt.Network != "" {
		p.field("Network", types.Network(opt.Network).Label())
	}
	if opt.PayTo != "" {
		p.field("Pay To", opt.PayTo)
	}
	if opt.Asset != "" {
		p.field("Asset", opt.Asset)
	}
	if opt.MaxTimeoutSeconds > 0 {
		p.field("Timeout", fmt.Sprintf("%ds", opt.MaxTimeoutSeconds))
	}

	keys := make([]string, 0, len(opt.Extra))
	for k := range opt.Extra {
		if !skipExtraKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.field(utils.TitleCase(k), fmt.Sprint(opt.Extra[k]))
	}
}

func (p *Presenter) unparsed(url string, c types.PaymentChallenge) error {
	if p.format != FormatText {
		return p.encode(unparsed{
			URL:     url,
			Status:  c.HTTPStatus,
			Gated:   true,
			Source:  string(types.SourceNone),
			Message: msgUnparsed,
			Headers: c.Headers,
		})
	}

	p.printf("  x402 Endpoint Detected!\n\n")
	p.rule()
	p.field("URL", url)
	p.field("Status", "402 Payment Required")
	p.printf("\n  %s\n", msgUnparsed)
	p.printf("  The endpoint returned 402 but the payment details\n")
	p.printf("  could not be extracted automatically.\n\n")

	if len(c.Headers) > 0 {
		p.printf("  Response Headers:\n\n")
		names := make([]string, 0, len(c.Headers))
		for k := range c.Headers {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			p.printf("    %s: %s\n", k, Truncate(c.Headers[k], maxHeaderWidth))
		}
	}
	p.printf("\n")
	p.rule()
	return nil
}

// PriceDisplay is the rendered price of one option.
type PriceDisplay struct {
	// Human is e.g. "0.01 USDC"; empty when the amount is outside the
	// displayable range.
	Human string `json:"human,omitempty"`
	// Atomic is e.g. "10000 atomic units"; empty without an atomic amount.
	Atomic string `json:"atomic,omitempty"`
}

// DescribePrice converts an option's atomic amount into a human price. The
// human price is shown only when 0 < amount/10^decimals < 1,000,000.
func DescribePrice(opt types.PaymentOption) PriceDisplay {
	if opt.RawAtomicAmount != "" {
		d := PriceDisplay{Atomic: opt.RawAtomicAmount + " atomic units"}
		human, err := utils.HumanAmount(opt.RawAtomicAmount, opt.Decimals)
		if err == nil && utils.InDisplayRange(human) {
			d.Human = human.String() + " " + opt.Symbol
		}
		return d
	}
	if opt.PriceDecimal != "" {
		return PriceDisplay{Human: opt.PriceDecimal + " " + opt.Symbol}
	}
	return PriceDisplay{}
}

// Truncate shortens s to n characters followed by "...".
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (p *Presenter) encode(v any) error {
	switch p.format {
	case FormatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

func (p *Presenter) field(label, value string) {
	pad := labelWidth - len(label) - 1
	if pad < 1 {
		pad = 1
	}
	p.printf("  %s:%s%s\n", label, strings.Repeat(" ", pad), value)
}

func (p *Presenter) rule() {
	p.printf("  %s\n", strings.Repeat("─", ruleWidth))
}

func (p *Presenter) indented(text string, maxLines int) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	truncated := false
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
		truncated = true
	}
	for _, line := range lines {
		p.printf("  %s\n", line)
	}
	if truncated {
		p.printf("  ... (truncated)\n")
	}
}

func (p *Presenter) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}
