package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProperties(t *testing.T) {
	props, err := parseProperties([]string{
		"plan=pro",
		"amount=12.5",
		"first=true",
		`tags=["a","b"]`,
		"note=a=b",
		"empty=",
	})
	require.NoError(t, err)

	assert.Equal(t, "pro", props["plan"])
	assert.Equal(t, 12.5, props["amount"])
	assert.Equal(t, true, props["first"])
	assert.Equal(t, []interface{}{"a", "b"}, props["tags"])
	assert.Equal(t, "a=b", props["note"])
	assert.Equal(t, "", props["empty"])
}

func TestParseProperties_Invalid(t *testing.T) {
	for _, pair := range []string{"novalue", "=x", " =x"} {
		_, err := parseProperties([]string{pair})
		assert.Error(t, err, pair)
	}
}
