package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDummyUsername(t *testing.T) {
	assert.True(t, IsDummyUsername("adj1"))
	assert.True(t, IsDummyUsername("team-adj"))
	assert.False(t, IsDummyUsername("mharris"))
	assert.False(t, IsDummyUsername(""))
}

func TestCoderAccess(t *testing.T) {
	coder := Coder{Username: "adj2", AccessLevel: AccessLevelAdjudicator}
	assert.True(t, coder.IsDummy())
	assert.True(t, coder.IsAdjudicator())

	coder = Coder{Username: "jsmith", AccessLevel: AccessLevelCoder}
	assert.False(t, coder.IsDummy())
	assert.False(t, coder.IsAdjudicator())

	admin := Coder{Username: "root", AccessLevel: AccessLevelAdmin}
	assert.True(t, admin.IsAdjudicator())
}
