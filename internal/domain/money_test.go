package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateFromBasisPoints(t *testing.T) {
	assert.Equal(t, "0.0525", RateFromBasisPoints(525).String())
	assert.Equal(t, "5.25%", FormatBasisPoints(525))
	assert.Equal(t, "0.00%", FormatBasisPoints(0))
}

func TestFundingProgress(t *testing.T) {
	assert.Equal(t, "0.25", FundingProgress(250, 1000).String())
	assert.True(t, FundingProgress(10, 0).IsZero())
	assert.Equal(t, "1", FundingProgress(2000, 1000).String())
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.50", FormatAmount(150, 2))
	assert.Equal(t, "42", FormatAmount(42, 0))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(InvoiceOpen, InvoiceFunded))
	assert.True(t, CanTransition(InvoiceFunded, InvoiceRepaid))
	assert.True(t, CanTransition(InvoiceFunded, InvoiceDefaulted))
	assert.False(t, CanTransition(InvoiceFunded, InvoiceOpen))
	assert.False(t, CanTransition(InvoiceOpen, InvoiceRepaid))
	assert.False(t, CanTransition(InvoiceRepaid, InvoiceDefaulted))
	assert.True(t, InvoiceDefaulted.Terminal())
	assert.False(t, InvoiceOpen.Terminal())
}

func TestParseEnums(t *testing.T) {
	r, err := ParseRole("issuer")
	assert.NoError(t, err)
	assert.Equal(t, RoleIssuer, r)

	_, err = ParseRole("owner")
	assert.Error(t, err)

	_, err = ParseKycStatus("pending")
	assert.NoError(t, err)
	_, err = ParseNotificationCategory("spam")
	assert.Error(t, err)
}
