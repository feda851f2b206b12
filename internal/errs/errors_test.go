package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"menusync/internal/errs"
)

func TestIsHelpersSeeThroughWrapping(t *testing.T) {
	backend := fmt.Errorf("item Soup: %w", errs.NewBackendError("batch-upsert", errs.APIError{Code: "CONFLICT"}))
	dups := fmt.Errorf("gate: %w", &errs.DuplicatesPresentError{Environment: "sandbox"})
	missing := fmt.Errorf("item Soup: %w", errs.NewNotFoundError("category", "Soups"))
	persist := errs.Persist("cache.upsert", errors.New("disk full"))

	assert.True(t, errs.IsBackend(backend))
	assert.True(t, errs.IsDuplicatesPresent(dups))
	assert.True(t, errs.IsNotFound(missing))
	assert.True(t, errs.IsPersistence(persist))

	assert.False(t, errs.IsBackend(missing))
	assert.False(t, errs.IsNotFound(backend))
	assert.False(t, errs.IsPersistence(dups))
	assert.False(t, errs.IsDuplicatesPresent(persist))
	assert.False(t, errs.IsBackend(nil))
}

func TestPersistDoesNotDoubleWrap(t *testing.T) {
	assert.NoError(t, errs.Persist("op", nil))
	first := errs.Persist("inner", errors.New("locked"))
	assert.Same(t, first, errs.Persist("outer", first))
}
