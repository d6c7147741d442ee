package persistence

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// notFound maps gorm's missing-row error to the domain sentinel
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// forUpdate adds SELECT ... FOR UPDATE. Dialects without row locks (sqlite)
// drop the clause.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// updateVersioned writes updates only if the stored row is older than the
// in-memory aggregate. An aggregate may be mutated more than once between
// load and save, so the check is version < new rather than version = new-1.
func updateVersioned(db *gorm.DB, model interface{}, id uuid.UUID, version int, updates map[string]interface{}, entity string) error {
	updates["version"] = version
	result := db.Model(model).
		Where("id = ? AND version < ?", id, version).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict,
			fmt.Sprintf("%s %s was modified by another transaction", entity, id))
	}
	return nil
}
