package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	Cash Method = "cash"
	UPI  Method = "upi"
)

// DateLayout is the wire format of a goal deadline.
const DateLayout = "2006-01-02"

type (
	// Method tags how a contribution was made.
	Method string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Contribution struct {
		Amount Money     `json:"amount"`
		Method Method    `json:"method"`
		Date   time.Time `json:"date"`
	}

	// Goal is the single savings goal owned by a tracker. TargetAmount of zero
	// means no goal has been set yet.
	Goal struct {
		TargetAmount  Money          `json:"targetAmount"`
		Deadline      Date           `json:"deadline"`
		SavedAmount   Money          `json:"savedAmount"`
		Contributions []Contribution `json:"contributions"`
	}
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientData    = errors.New("insufficient data")
	ErrAnalysisUnavailable = errors.New("analysis unavailable")
	ErrStorage             = errors.New("storage error")

	ErrInvalidAmount   = fmt.Errorf("%w: invalid amount", ErrInvalidInput)
	ErrInvalidMethod   = fmt.Errorf("%w: invalid method", ErrInvalidInput)
	ErrMissingDeadline = fmt.Errorf("%w: missing deadline", ErrInvalidInput)
	ErrPastDeadline    = fmt.Errorf("%w: deadline is in the past", ErrInvalidInput)
)

// ParseMethod accepts "cash" or "upi" in any case.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

func (m Method) Validate() error {
	switch m {
	case Cash, UPI:
		return nil
	default:
		return ErrInvalidMethod
	}
}

// Label is the upper-case form shown to users and embedded in prompts.
func (m Method) Label() string {
	return strings.ToUpper(string(m))
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. An RFC 3339 timestamp is accepted
// too and truncated to its calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrMissingDeadline
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: bad date %q", ErrInvalidInput, s)
	}
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// IsEmpty returns true if the date is unset.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON writes the amount as a plain number of rupees.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.Rupees(), 'f', -1, 64)), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*m = FromRupees(x)
		return nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidAmount, x)
		}
		*m = FromRupees(f)
		return nil
	case nil:
		*m = Money{}
		return nil
	default:
		return fmt.Errorf("%w: unexpected %T", ErrInvalidAmount, v)
	}
}

func (c Contribution) Validate() error {
	if err := c.Amount.Validate(); err != nil {
		return err
	}
	return c.Method.Validate()
}

// Active reports whether a goal has been set.
func (g Goal) Active() bool {
	return g.TargetAmount.Cents > 0
}

// Clone returns a copy that shares no memory with g.
func (g Goal) Clone() Goal {
	out := g
	if g.Contributions != nil {
		out.Contributions = make([]Contribution, len(g.Contributions))
		copy(out.Contributions, g.Contributions)
	}
	return out
}

// Sum adds up the contribution amounts.
func (g Goal) Sum() Money {
	var total int64
	for _, c := range g.Contributions {
		total += c.Amount.Cents
	}
	return Money{Cents: total}
}

// Count returns how many contributions were made with method m.
func (g Goal) Count(m Method) int {
	n := 0
	for _, c := range g.Contributions {
		if c.Method == m {
			n++
		}
	}
	return n
}
