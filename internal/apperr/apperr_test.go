package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("dial tcp: refused")
	err := fmt.Errorf("submit: %w", Wrap(KindNetwork, "Could not reach the store.", base))

	assert.Equal(t, KindNetwork, KindOf(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, KindInternal, KindOf(base))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestAs(t *testing.T) {
	e := As(errors.New("boom"))
	assert.Equal(t, KindInternal, e.Kind)
	assert.NotEmpty(t, e.Message)

	v := Validation(map[string]string{"email": "invalid"})
	assert.Same(t, v, As(fmt.Errorf("advance: %w", v)))
}

func TestRetryable(t *testing.T) {
	assert.True(t, New(KindGateway, "x").Retryable())
	assert.True(t, New(KindNetwork, "x").Retryable())
	assert.False(t, New(KindStock, "x").Retryable())
	assert.False(t, Validation(nil).Retryable())
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "stock: Not enough apples", New(KindStock, "Not enough apples").Error())
	assert.Equal(t, "gateway: failed: timeout", Wrap(KindGateway, "failed", errors.New("timeout")).Error())
}
