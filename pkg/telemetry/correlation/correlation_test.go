package correlation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "req-1")
	_, cid := EnsureCorrelationID(ctx)
	assert.Equal(t, "req-1", cid)
}

func TestEnsureCorrelationIDGenerates(t *testing.T) {
	ctx, cid := EnsureCorrelationID(context.Background())
	assert.NotEmpty(t, cid)
	assert.Equal(t, cid, ExtractCorrelationID(ctx))
}

func TestDetachDropsCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(ContextWithCorrelationID(context.Background(), "req-2"))
	cancel()

	detached := Detach(parent)
	assert.NoError(t, detached.Err())
	assert.Equal(t, "req-2", ExtractCorrelationID(detached))
}

type annotationKey struct{}

func TestDetachKeepsRequestValues(t *testing.T) {
	parent := context.WithValue(ContextWithCorrelationID(context.Background(), "req-3"), annotationKey{}, "evt_1")
	parent, cancel := context.WithTimeout(parent, time.Millisecond)
	defer cancel()

	detached := Detach(parent)
	_, hasDeadline := detached.Deadline()
	assert.False(t, hasDeadline)
	assert.Equal(t, "evt_1", detached.Value(annotationKey{}))
	assert.Equal(t, "req-3", ExtractCorrelationID(detached))
}
