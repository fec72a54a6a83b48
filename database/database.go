package database

import (
	"fmt"
	"reflect"

	"stocks-trader/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidTransaction = fmt.Errorf("invalid transaction")
	ErrInvalidData        = fmt.Errorf("invalid data, expected slice")
)

// Migrate creates or updates the users, portfolios and transactions tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Portfolio{},
		&models.Transaction{},
	)
}

// CreateInBatches inserts the slice in chunks of batchSize using tx. The
// caller owns tx and decides whether to commit.
func CreateInBatches(tx *gorm.DB, data interface{}, batchSize int) error {
	if batchSize <= 0 || tx == nil {
		return ErrInvalidTransaction
	}

	slice := reflect.ValueOf(data)
	if slice.Kind() != reflect.Slice {
		return ErrInvalidData
	}

	total := slice.Len()
	for i := 0; i < total; i += batchSize {
		end := i + batchSize
		if end > total {
			end = total
		}

		chunk := slice.Slice(i, end).Interface()
		if err := tx.Create(chunk).Error; err != nil {
			return fmt.Errorf("batch insert failed: %w", err)
		}
	}

	return nil
}

// ForUpdate adds a row lock on dialects that support it. SQLite serializes
// writers on its own.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
