package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound so services can match either.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a unique key already exists.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation reports whether err is a unique-constraint failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
