package models

import (
	"database/sql/driver"
	"fmt"
)

// LifecycleStatus is the soft-delete state shared by users, posts and media.
type LifecycleStatus string

const (
	StatusActive  LifecycleStatus = "active"
	StatusDeleted LifecycleStatus = "deleted"
)

// Valid reports whether s is a known lifecycle state.
func (s LifecycleStatus) Valid() bool {
	return s == StatusActive || s == StatusDeleted
}

// Value implements driver.Valuer.
func (s LifecycleStatus) Value() (driver.Value, error) {
	if s == "" {
		return string(StatusActive), nil
	}
	if !s.Valid() {
		return nil, fmt.Errorf("invalid lifecycle status %q", string(s))
	}
	return string(s), nil
}

// Scan implements sql.Scanner.
func (s *LifecycleStatus) Scan(value any) error {
	switch v := value.(type) {
	case string:
		*s = LifecycleStatus(v)
	case []byte:
		*s = LifecycleStatus(v)
	case nil:
		*s = StatusActive
	default:
		return fmt.Errorf("cannot scan %T into LifecycleStatus", value)
	}
	if !s.Valid() {
		return fmt.Errorf("invalid lifecycle status %q", string(*s))
	}
	return nil
}
