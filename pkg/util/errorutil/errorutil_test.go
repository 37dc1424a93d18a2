package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	notFound := ToDomainError(fmt.Errorf("load: %w", pgx.ErrNoRows))
	assert.Equal(t, "NOT_FOUND", notFound.Code)
	assert.Equal(t, http.StatusNotFound, notFound.HTTPStatus)

	internal := ToDomainError(errors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)

	wrapped := fmt.Errorf("bulk: %w", NewForbidden("cross tenant", nil))
	assert.Equal(t, "FORBIDDEN", ToDomainError(wrapped).Code)
}

func TestHasCode(t *testing.T) {
	err := NewNoEligibleAgents("org-1")
	assert.True(t, HasCode(err, "NO_ELIGIBLE_AGENTS"))
	assert.False(t, HasCode(err, "NOT_FOUND"))
	assert.False(t, HasCode(errors.New("plain"), "NOT_FOUND"))
}

func TestMapErrorKeepsNilUntyped(t *testing.T) {
	var err error = MapError(nil)
	assert.True(t, err == nil)

	assert.Equal(t, "NOT_FOUND", ToDomainError(MapError(pgx.ErrNoRows)).Code)
}
