package storage

import (
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
)

// ErrNotFound is returned when a lookup by key matches no row
var ErrNotFound = errors.New("row not found")

// IntegrityKind names the constraint class a write violated
type IntegrityKind int

const (
	UniqueViolation IntegrityKind = iota + 1
	ForeignKeyViolation
)

func (k IntegrityKind) String() string {
	switch k {
	case UniqueViolation:
		return "unique violation"
	case ForeignKeyViolation:
		return "foreign key violation"
	default:
		return "unknown integrity violation"
	}
}

// IntegrityError reports a row rejected by a database constraint.
// Callers match on Kind and never on driver specific codes.
type IntegrityError struct {
	Kind       IntegrityKind
	Constraint string
	Err        error
}

func (e *IntegrityError) Error() string {
	if e.Constraint == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s on %s", e.Kind, e.Constraint)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// IsIntegrity reports whether err carries an IntegrityError of the given kind
func IsIntegrity(err error, kind IntegrityKind) bool {
	var ie *IntegrityError
	return errors.As(err, &ie) && ie.Kind == kind
}

// classify translates driver errors into package errors, anything unrecognized is returned unchanged
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return &IntegrityError{Kind: UniqueViolation, Constraint: pgErr.ConstraintName, Err: err}
		case pgerrcode.ForeignKeyViolation:
			return &IntegrityError{Kind: ForeignKeyViolation, Constraint: pgErr.ConstraintName, Err: err}
		}
	}

	return err
}
