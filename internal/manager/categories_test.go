package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMask(t *testing.T) {
	mask := ParseMask("system,call, Agent")
	assert.True(t, mask.Contains(CatSystem))
	assert.True(t, mask.Contains(CatCall))
	assert.True(t, mask.Contains(CatAgent))
	assert.False(t, mask.Contains(CatUser))
}

func TestCategoryContainsRequiresAllBits(t *testing.T) {
	mask := CatSystem | CatCall
	assert.True(t, mask.Contains(CatSystem|CatCall))
	assert.False(t, mask.Contains(CatSystem|CatCall|CatAgent))
}

func TestCategoryContainsNoneAlwaysSatisfied(t *testing.T) {
	assert.True(t, CatNone.Contains(CatNone))
	assert.True(t, CatSystem.Contains(CatNone))
}

func TestParseMaskUnknownTokenIgnored(t *testing.T) {
	mask := ParseMask("system,bogus")
	assert.True(t, mask.Contains(CatSystem))
	assert.Equal(t, CatSystem, mask)
}
