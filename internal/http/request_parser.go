package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"raport/internal/core"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// errBadRequest marks a body that could not be decoded at all.
var errBadRequest = errors.New("malformed request body")

// expenseRequest is the body of POST /api/expenses. Amount may be a JSON
// number or a string such as "12,50".
type expenseRequest struct {
	Date        string          `json:"date"`
	Amount      json.RawMessage `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
}

// ParseExpenseRequest decodes and converts a create-expense body. A missing
// date means today. Decoding failures wrap errBadRequest; the returned
// expense is not validated beyond parsing.
func ParseExpenseRequest(r *http.Request, w http.ResponseWriter, now time.Time) (core.Expense, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	var req expenseRequest
	if err := dec.Decode(&req); err != nil {
		return core.Expense{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return core.Expense{}, fmt.Errorf("%w: trailing data", errBadRequest)
	}

	date := core.Date{Time: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)}
	if s := strings.TrimSpace(req.Date); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			return core.Expense{}, err
		}
		date = d
	}

	cents, err := parseAmount(req.Amount)
	if err != nil {
		return core.Expense{}, err
	}

	return core.Expense{
		Date:        date,
		Amount:      core.Money{Cents: cents},
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
	}, nil
}

func parseAmount(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, core.ErrInvalidAmount
	}
	s := string(raw)
	if raw[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return 0, core.ErrInvalidAmount
		}
		s = unq
	}
	return core.ParseDecimalToCents(s)
}
