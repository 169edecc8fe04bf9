package persistence

import (
	"errors"
	"fmt"

	"github.com/bibbank/loanbook/internal/domain/model"
)

// Classify tags err with model.ErrPersistence unless it already carries one of the
// ledger's sentinels.
func Classify(err error) error {
	switch {
	case err == nil,
		errors.Is(err, model.ErrPersistence),
		errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrConcurrentModification):
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrPersistence, err)
}
