package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"saveup/internal/core"
)

var header = []any{"Date", "Amount", "Method"}

// toRow renders a contribution as [date, amount, method].
func toRow(c core.Contribution) []any {
	return []any{c.Date.UTC().Format(time.RFC3339), c.Amount.Rupees(), c.Method.Label()}
}

// parseRows converts a values matrix (as returned by the Sheets API) back
// into contributions. The header row and rows that do not parse are skipped;
// the second return value counts them.
func parseRows(values [][]any) ([]core.Contribution, int) {
	var (
		out     []core.Contribution
		skipped int
	)
	for i, row := range values {
		cells := toStrings(row)
		if i == 0 && strings.EqualFold(safeGet(cells, 0), "date") {
			continue
		}
		c, err := parseRow(cells)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, c)
	}
	return out, skipped
}

func parseRow(cells []string) (core.Contribution, error) {
	date, err := time.Parse(time.RFC3339, safeGet(cells, 0))
	if err != nil {
		return core.Contribution{}, fmt.Errorf("bad date %q: %w", safeGet(cells, 0), err)
	}
	rupees, err := strconv.ParseFloat(strings.ReplaceAll(safeGet(cells, 1), ",", ""), 64)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("bad amount %q: %w", safeGet(cells, 1), err)
	}
	method, err := core.ParseMethod(safeGet(cells, 2))
	if err != nil {
		return core.Contribution{}, err
	}
	amount := core.FromRupees(rupees)
	if err := amount.Validate(); err != nil {
		return core.Contribution{}, err
	}
	return core.Contribution{Amount: amount, Method: method, Date: date.UTC()}, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
