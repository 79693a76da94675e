package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetLogFields(ctx))

	ctx = WithSessionID(ctx, "s-1")
	ctx = WithEventID(ctx, "e-1")
	ctx = WithAppID(ctx, "a-1")

	assert.Equal(t, []interface{}{
		SessionIDKey, "s-1",
		EventIDKey, "e-1",
		AppIDKey, "a-1",
	}, GetLogFields(ctx))
}

func TestEarlyLog(t *testing.T) {
	var out, errOut bytes.Buffer
	l := &EarlyLog{out: &out, err: &errOut}

	l.Info("loaded %d", 3)
	l.Error("boom: %s", "disk")

	assert.Equal(t, "INFO: loaded 3\n", out.String())
	assert.Equal(t, "ERROR: boom: disk\n", errOut.String())
}
