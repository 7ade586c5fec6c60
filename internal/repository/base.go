// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	mysqlDuplicateEntry  = 1062
	postgresUniqueViolat = "23505"
)

// isUniqueConstraintError recognises duplicate-key failures from every supported driver.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == postgresUniqueViolat {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}

// duplicateField guesses which credential collided from the driver message.
func duplicateField(err error) string {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && strings.Contains(strings.ToLower(myErr.Message), "email") {
		return "email"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.Contains(strings.ToLower(pgErr.ConstraintName), "email") {
		return "email"
	}
	if strings.Contains(strings.ToLower(err.Error()), "email") {
		return "email"
	}
	return "username"
}

// ClampLimit bounds list sizes to [1, MaxListLimit].
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// MaxListLimit is the largest page any list query returns.
const MaxListLimit = 50

func dbSystem(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "unknown"
	}
	return db.Dialector.Name()
}
