// Package core holds the chatbot's domain types.
//
// This file contains the money type used for aggregation totals and its
// Brazilian-real rendering.
package core

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

type Money struct {
	Amount decimal.Decimal
}

func NewMoney(amount decimal.Decimal) Money {
	return Money{Amount: amount}
}

func ZeroMoney() Money {
	return Money{Amount: decimal.Zero}
}

func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount.Add(other.Amount)}
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// FormatBRL renders the amount with two decimals and a comma separator,
// e.g. 123.4 -> "123,40".
func (m Money) FormatBRL() string {
	return strings.Replace(m.Amount.StringFixed(2), ".", ",", 1)
}

// ParseAmount parses a ledger "valor" field. It accepts a JSON number or a
// JSON string holding a dot-separated decimal; anything else, including
// null and comma decimals such as "10,00", is rejected.
func ParseAmount(raw json.RawMessage) (Money, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return Money{}, ErrInvalidAmount
	}
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(raw, &unquoted); err != nil {
			return Money{}, ErrInvalidAmount
		}
		s = strings.TrimSpace(unquoted)
	}
	if s == "" || strings.Contains(s, ",") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return Money{Amount: d}, nil
}
