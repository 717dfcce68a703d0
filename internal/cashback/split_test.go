package cashback

import (
	"testing"

	"clube_beneficios/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func uintPtr(v uint) *uint { return &v }

func defaultSplit(t *testing.T) Split {
	t.Helper()
	s, err := NewSplit([4]decimal.Decimal{d("60"), d("20"), d("15"), d("5")})
	require.NoError(t, err)
	return s
}

func sum(shares []Share) decimal.Decimal {
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s.Amount)
	}
	return total
}

func byBeneficiary(shares []Share) map[string]Share {
	m := make(map[string]Share, len(shares))
	for _, s := range shares {
		m[s.Beneficiary] = s
	}
	return m
}

func TestSplitValidate(t *testing.T) {
	_, err := NewSplit([4]decimal.Decimal{d("60"), d("20"), d("15"), d("4")})
	assert.Error(t, err, "sums to 99")
	_, err = NewSplit([4]decimal.Decimal{d("110"), d("-10"), d("0"), d("0")})
	assert.Error(t, err, "negative share")
	_, err = NewSplit([4]decimal.Decimal{d("100"), d("0"), d("0"), d("0")})
	assert.NoError(t, err)
}

func TestFor(t *testing.T) {
	assert.Equal(t, "5", For(d("100"), d("5")).String())
	assert.Equal(t, "0.5", For(d("9.99"), d("5")).String()) // 0.4995 rounds half-up
	assert.Equal(t, "0", For(d("10"), d("0")).String())
}

func TestDistribute_FullChain(t *testing.T) {
	s := defaultSplit(t)
	shares := s.Distribute(d("10.00"), 1, uintPtr(2), uintPtr(3))
	m := byBeneficiary(shares)

	require.Len(t, shares, 4)
	assert.Equal(t, "6", m[domain.BeneficiaryConsumer].Amount.String())
	assert.Equal(t, "1.5", m[domain.BeneficiaryReferrer].Amount.String())
	assert.Equal(t, "0.5", m[domain.BeneficiaryUpline].Amount.String())
	assert.Equal(t, "2", m[domain.BeneficiaryPlatform].Amount.String())
	assert.Nil(t, m[domain.BeneficiaryPlatform].UserID)
	assert.Equal(t, uint(2), *m[domain.BeneficiaryReferrer].UserID)
	assert.True(t, sum(shares).Equal(d("10")))
}

func TestDistribute_NoReferrerGoesToPlatform(t *testing.T) {
	s := defaultSplit(t)
	shares := s.Distribute(d("10.00"), 1, nil, uintPtr(3))
	m := byBeneficiary(shares)

	require.Len(t, shares, 2)
	assert.Equal(t, "4", m[domain.BeneficiaryPlatform].Amount.String())
	_, hasUpline := m[domain.BeneficiaryUpline]
	assert.False(t, hasUpline, "upline is only paid through a referrer")
}

func TestDistribute_RemainderGoesToPlatform(t *testing.T) {
	s, err := NewSplit([4]decimal.Decimal{d("33.33"), d("33.34"), d("33.33"), d("0")})
	require.NoError(t, err)
	for _, total := range []string{"0.01", "0.07", "1.00", "3.33", "99.99", "12345.67"} {
		shares := s.Distribute(d(total), 1, uintPtr(2), nil)
		assert.True(t, sum(shares).Equal(d(total)), "total %s", total)
		for _, sh := range shares {
			assert.True(t, sh.Amount.IsPositive())
			assert.LessOrEqual(t, sh.Amount.Exponent(), int32(0))
			assert.GreaterOrEqual(t, sh.Amount.Exponent(), int32(-2))
		}
	}
}

func TestDistribute_ZeroTotal(t *testing.T) {
	s := defaultSplit(t)
	assert.Empty(t, s.Distribute(decimal.Zero, 1, nil, nil))
	assert.Empty(t, s.Distribute(d("-5"), 1, nil, nil))
}
