package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"portfolio_financials/pkg/core/normalize"
	"portfolio_financials/pkg/core/utils"
)

// Record is one row of an upstream JSON report, e.g.
// {"AccountName": "Rent Income", "SelectedPeriod": "1,234.00"}.
type Record map[string]any

// Field names the accounting API uses for account identity.
var (
	AccountNameFields = []string{"AccountName", "account_name", "Account", "Name"}
	AccountCodeFields = []string{"AccountCode", "AccountNumber", "account_code", "GLAccount"}
)

// First returns the first present, non-nil field among keys.
func (r Record) First(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Text returns the first present field among keys as trimmed text.
func (r Record) Text(keys ...string) string {
	v, _ := r.First(keys...)
	return normalize.Text(v)
}

// AccountName returns the record's account name.
func (r Record) AccountName() string {
	return r.Text(AccountNameFields...)
}

// AccountCode returns the record's account code, "" when absent.
func (r Record) AccountCode() string {
	return r.Text(AccountCodeFields...)
}

// ParseRecords decodes an upstream report body. A bare array is expected; an
// object wrapping one array (e.g. {"results": [...]}) is unwrapped. Bodies that
// are not valid JSON get one repair attempt before the error is returned.
func ParseRecords(data []byte) ([]Record, error) {
	records, err := decodeRecords(data)
	if err == nil {
		return records, nil
	}

	repaired, repairErr := utils.RepairJSON(utils.StripCodeFence(string(data)))
	if repairErr != nil {
		return nil, fmt.Errorf("failed to decode report records: %w", err)
	}
	records, repairedErr := decodeRecords([]byte(repaired))
	if repairedErr != nil {
		return nil, fmt.Errorf("failed to decode report records: %w", err)
	}
	return records, nil
}

func decodeRecords(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty report body")
	}

	if trimmed[0] == '[' {
		var records []Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, err
	}
	for _, raw := range wrapper {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '[' {
			continue
		}
		var records []Record
		if err := json.Unmarshal(raw, &records); err == nil {
			return records, nil
		}
	}
	return nil, fmt.Errorf("no record array in report body (keys: %s)", strings.Join(keysOf(wrapper), ", "))
}

func keysOf(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
