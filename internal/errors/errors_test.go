package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder(t *testing.T) {
	t.Parallel()

	base := NewStd("connection refused")
	err := New(base).
		Component("datastore").
		Category(CategoryDatabase).
		Context("operation", "take-folders-batch").
		Context("batch_size", 10).
		Build()

	assert.Equal(t, "connection refused", err.Error())
	assert.Equal(t, "datastore", err.Component)
	assert.Equal(t, CategoryDatabase, err.Category)

	op, ok := err.GetContext("operation")
	require.True(t, ok)
	assert.Equal(t, "take-folders-batch", op)

	assert.True(t, Is(err, base), "enhanced error should unwrap to the original")
}

func TestErrorBuilderDefaults(t *testing.T) {
	t.Parallel()

	err := Newf("phase %s failed", "move").Build()
	assert.Equal(t, ComponentUnknown, err.Component)
	assert.Equal(t, CategoryGeneric, err.Category)
	assert.Equal(t, "phase move failed", err.Error())
}

func TestIsCategory(t *testing.T) {
	t.Parallel()

	err := New(NewStd("no rows")).Category(CategoryNotFound).Build()
	wrapped := fmt.Errorf("lookup failed: %w", err)

	assert.True(t, IsCategory(wrapped, CategoryNotFound))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsCategory(wrapped, CategoryDatabase))
}

func TestTruncateMessage(t *testing.T) {
	t.Parallel()

	short := "boom"
	assert.Equal(t, short, TruncateMessage(short))

	long := strings.Repeat("x", MaxStoredMessageLength+100)
	truncated := TruncateMessage(long)
	assert.Len(t, truncated, MaxStoredMessageLength)

	// Rune-safe truncation must not split multi-byte characters.
	serbian := strings.Repeat("š", 10)
	assert.Equal(t, "ššš", TruncateMessageTo(serbian, 3))
}
