// Package cashback splits a purchase's cashback among consumer, platform and referrers.
package cashback

import (
	"errors"
	"fmt"

	"clube_beneficios/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Split holds the four fixed percentages; they must sum to 100
type Split struct {
	Consumer decimal.Decimal
	Platform decimal.Decimal
	Referrer decimal.Decimal
	Upline   decimal.Decimal
}

// NewSplit builds a split from percentages in consumer, platform, referrer, upline order
func NewSplit(pcts [4]decimal.Decimal) (Split, error) {
	s := Split{Consumer: pcts[0], Platform: pcts[1], Referrer: pcts[2], Upline: pcts[3]}
	return s, s.Validate()
}

// Validate checks that no share is negative and the shares cover exactly 100%
func (s Split) Validate() error {
	for _, p := range []decimal.Decimal{s.Consumer, s.Platform, s.Referrer, s.Upline} {
		if p.IsNegative() {
			return errors.New("cashback percentages cannot be negative")
		}
	}
	sum := s.Consumer.Add(s.Platform).Add(s.Referrer).Add(s.Upline)
	if !sum.Equal(hundred) {
		return fmt.Errorf("cashback percentages must sum to 100, got %s", sum.String())
	}
	return nil
}

// Share is the part of a cashback owed to one beneficiary
type Share struct {
	Beneficiary string
	UserID      *uint // Nil for the platform
	Amount      decimal.Decimal
}

// For computes the cashback of a purchase total at pct percent, rounded half-up to cents
func For(total, pct decimal.Decimal) decimal.Decimal {
	return total.Mul(pct).Div(hundred).Round(2)
}

// Distribute splits total among the beneficiaries. Shares are truncated to cents and
// the platform receives the rounding remainder plus the share of any missing referrer,
// so the returned amounts always add up to total (itself rounded to cents).
func (s Split) Distribute(total decimal.Decimal, consumerID uint, referrerID, uplineID *uint) []Share {
	total = total.Round(2)
	if !total.IsPositive() {
		return nil
	}
	part := func(pct decimal.Decimal) decimal.Decimal {
		return total.Mul(pct).Div(hundred).Truncate(2)
	}

	consumer := consumerID
	shares := []Share{{Beneficiary: domain.BeneficiaryConsumer, UserID: &consumer, Amount: part(s.Consumer)}}
	if referrerID != nil {
		shares = append(shares, Share{Beneficiary: domain.BeneficiaryReferrer, UserID: referrerID, Amount: part(s.Referrer)})
	}
	if referrerID != nil && uplineID != nil {
		shares = append(shares, Share{Beneficiary: domain.BeneficiaryUpline, UserID: uplineID, Amount: part(s.Upline)})
	}

	assigned := decimal.Zero
	for _, sh := range shares {
		assigned = assigned.Add(sh.Amount)
	}
	shares = append(shares, Share{Beneficiary: domain.BeneficiaryPlatform, Amount: total.Sub(assigned)})

	out := shares[:0]
	for _, sh := range shares {
		if sh.Amount.IsPositive() {
			out = append(out, sh)
		}
	}
	return out
}
