package presenter

import (
	"encoding/json"
	"strconv"

	"github.com/davedumto/nex402/types"
	"github.com/davedumto/nex402/utils"
)

// locator finds the option list inside challenge data. It returns the
// entries and the object that carries report metadata, if any.
type locator func(data any) (entries []any, meta map[string]any, ok bool)

var locators = []locator{
	locateSequence,
	locateAccepts,
	locateNested,
}

// Normalize turns a located challenge into a RequirementsReport. When no
// option list can be found, or it is empty, Raw carries the data verbatim.
func Normalize(url string, c types.PaymentChallenge) types.RequirementsReport {
	report := types.RequirementsReport{
		URL:    url,
		Source: c.SourceDetail,
	}
	if !c.Found() {
		return report
	}

	var entries []any
	var meta map[string]any
	for _, locate := range locators {
		if e, m, ok := locate(c.Body); ok {
			entries, meta = e, m
			break
		}
	}

	applyMeta(&report, meta)

	for _, e := range entries {
		raw, ok := e.(map[string]any)
		if !ok {
			continue
		}
		// Malformed amounts still render; payment rejects them later.
		opt, _ := utils.DecodeOption(raw)
		report.Options = append(report.Options, opt)
	}

	if len(report.Options) == 0 {
		report.Raw = c.Body
	}
	return report
}

// Options is a shortcut for Normalize(...).Options.
func Options(c types.PaymentChallenge) []types.PaymentOption {
	return Normalize("", c).Options
}

func locateSequence(data any) ([]any, map[string]any, bool) {
	seq, ok := data.([]any)
	return seq, nil, ok
}

func locateAccepts(data any) ([]any, map[string]any, bool) {
	m, ok := data.(map[string]any)
	if !ok {
		return nil, nil, false
	}
	seq, ok := m["accepts"].([]any)
	return seq, m, ok
}

func locateNested(data any) ([]any, map[string]any, bool) {
	m, ok := data.(map[string]any)
	if !ok {
		return nil, nil, false
	}

	for _, key := range []string{"paymentRequirements", "requirements"} {
		switch nested := m[key].(type) {
		case []any:
			return nested, nil, true
		case map[string]any:
			if seq, ok := nested["accepts"].([]any); ok {
				return seq, nested, true
			}
		}
	}
	return nil, nil, false
}

func applyMeta(report *types.RequirementsReport, meta map[string]any) {
	if meta == nil {
		return
	}

	if v, ok := versionOf(meta["x402Version"]); ok {
		report.Version = &v
	}

	resource, _ := meta["resource"].(map[string]any)
	report.Description = firstString(meta["description"], resource["description"])
	report.MimeType = firstString(meta["mimeType"], resource["mimeType"])
}

func versionOf(v any) (int, bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		return int(n), err == nil
	case float64:
		return int(t), true
	case int:
		return t, true
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil
	}
	return 0, false
}

func firstString(values ...any) string {
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}
