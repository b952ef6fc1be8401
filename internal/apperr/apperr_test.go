package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindAuth:        http.StatusUnauthorized,
		KindValidation:  http.StatusBadRequest,
		KindNotFound:    http.StatusNotFound,
		KindConflict:    http.StatusConflict,
		KindOracle:      http.StatusBadGateway,
		KindParse:       http.StatusBadGateway,
		KindPersistence: http.StatusInternalServerError,
		KindInternal:    http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, Status(kind), "kind %s", kind)
	}
}

func TestKindOfWalksWrappedChain(t *testing.T) {
	base := Wrap(KindPersistence, errors.New("disk full"), "store artifact")
	wrapped := fmt.Errorf("content stage: %w", base)

	assert.Equal(t, KindPersistence, KindOf(wrapped))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(wrapped))
	assert.True(t, Retryable(wrapped))
	assert.Equal(t, "store artifact: disk full", base.Error())
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))
	assert.Nil(t, Wrap(KindOracle, nil, "ignored"))
}

func TestConstructorsFormat(t *testing.T) {
	err := Validation("field %s is required", "sessionId")
	assert.Equal(t, "field sessionId is required", err.Error())
	assert.True(t, Is(err, KindValidation))
	assert.False(t, Retryable(Auth("missing token")))
}
