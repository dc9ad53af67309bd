// Package limits enforces per-deposit channel ceilings and the rolling
// aggregate cap. It is pure: callers supply the prior sum.
package limits

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	id "cashdesk/pkg/domain"
	dErrors "cashdesk/pkg/domain-errors"
)

// Channel is where the cash entered the bank.
type Channel string

const (
	ChannelATM    Channel = "ATM"
	ChannelBranch Channel = "BRANCH"
)

// ParseChannel accepts the canonical upper-case names only.
func ParseChannel(s string) (Channel, error) {
	c := Channel(s)
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "channel must be ATM or BRANCH")
	}
	return c, nil
}

func (c Channel) IsValid() bool {
	return c == ChannelATM || c == ChannelBranch
}

func (c Channel) String() string { return string(c) }

var (
	DefaultATMCeiling    = decimal.RequireFromString("10000.00")
	DefaultBranchCeiling = decimal.RequireFromString("50000.00")
	DefaultAggregateCap  = decimal.RequireFromString("10000.00")
)

// DefaultAggregateSpan is the rolling look-back for the aggregate cap.
const DefaultAggregateSpan = 24 * time.Hour

// Policy holds the configured ceilings. All boundaries are inclusive.
type Policy struct {
	ceilings      map[Channel]decimal.Decimal
	aggregateCap  decimal.Decimal
	aggregateSpan time.Duration
}

type Option func(*Policy)

func WithChannelCeiling(c Channel, ceiling decimal.Decimal) Option {
	return func(p *Policy) {
		p.ceilings[c] = ceiling
	}
}

func WithAggregateCap(limit decimal.Decimal, span time.Duration) Option {
	return func(p *Policy) {
		p.aggregateCap = limit
		p.aggregateSpan = span
	}
}

func New(opts ...Option) *Policy {
	p := &Policy{
		ceilings: map[Channel]decimal.Decimal{
			ChannelATM:    DefaultATMCeiling,
			ChannelBranch: DefaultBranchCeiling,
		},
		aggregateCap:  DefaultAggregateCap,
		aggregateSpan: DefaultAggregateSpan,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AggregateSince returns the start of the rolling window ending at now.
func (p *Policy) AggregateSince(now time.Time) time.Time {
	return now.Add(-p.aggregateSpan)
}

// Check applies the channel ceiling, then the aggregate cap.
func (p *Policy) Check(channel Channel, amount, prior decimal.Decimal) error {
	ceiling, ok := p.ceilings[channel]
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "channel must be ATM or BRANCH")
	}
	if amount.GreaterThan(ceiling) {
		return dErrors.New(dErrors.CodeChannelLimitExceeded,
			fmt.Sprintf("amount exceeds %s deposit limit of %s", channel, id.FormatCurrency(ceiling)))
	}
	return p.CheckAggregate(amount, prior)
}

// CheckAggregate rejects when prior + amount would exceed the cap. The ledger
// re-runs it under the account lock with the authoritative prior sum.
func (p *Policy) CheckAggregate(amount, prior decimal.Decimal) error {
	if prior.Add(amount).GreaterThan(p.aggregateCap) {
		return dErrors.New(dErrors.CodeAggregateLimitExceeded,
			fmt.Sprintf("deposit would exceed the %s limit of %s; %s already deposited",
				humanSpan(p.aggregateSpan), id.FormatCurrency(p.aggregateCap), id.FormatCurrency(prior)))
	}
	return nil
}

func humanSpan(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return d.String()
}
