package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	_, ok := From(ctx)
	assert.False(t, ok)

	assert.Equal(t, ctx, WithTx(ctx, nil))

	want := &sql.Tx{}
	got, ok := From(WithTx(ctx, want))
	assert.True(t, ok)
	assert.Same(t, want, got)
}
