package confload

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSectionsAndPairs(t *testing.T) {
	raw := `
; a comment
[general]
persistentmembers = yes

[support]
strategy = leastrecent
member => Agent/1001,1
member => Agent/1002,2
`
	f, err := Parse(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, f.Sections, 2)

	general := f.Section("general")
	require.NotNil(t, general)
	assert.Equal(t, "yes", general.Get("persistentmembers"))

	support := f.Section("SUPPORT")
	require.NotNil(t, support)
	assert.Equal(t, "leastrecent", support.Get("strategy"))
	assert.Equal(t, []string{"Agent/1001,1", "Agent/1002,2"}, support.GetAll("member"))
}

func TestParseIgnoresMalformedLine(t *testing.T) {
	raw := "[general]\nnotakeyvalue\nfoo = bar\n"
	f, err := Parse(strings.NewReader(raw))
	require.NoError(t, err)
	g := f.Section("general")
	require.NotNil(t, g)
	assert.Equal(t, "bar", g.Get("foo"))
}

func TestParseLinesBeforeFirstSectionIgnored(t *testing.T) {
	raw := "stray = value\n[general]\nfoo = bar\n"
	f, err := Parse(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, f.Sections, 1)
	assert.Equal(t, "bar", f.Section("general").Get("foo"))
}
