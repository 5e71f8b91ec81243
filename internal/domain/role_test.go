package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ayo6706/twinvest-bridge/internal/candid"
)

func TestRoleVariant(t *testing.T) {
	assert.Equal(t, candid.Tag("issuer"), RoleIssuer.Variant())

	r, ok := RoleFromVariant(candid.Some(candid.Tag("admin")))
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, r)

	r, ok = RoleFromVariant(candid.Tag("investor"))
	assert.True(t, ok)
	assert.Equal(t, RoleInvestor, r)

	_, ok = RoleFromVariant(candid.None())
	assert.False(t, ok)
	_, ok = RoleFromVariant(candid.Tag("owner"))
	assert.False(t, ok)
	_, ok = RoleFromVariant(nil)
	assert.False(t, ok)
}
