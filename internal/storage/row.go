package storage

import (
	"fmt"

	"github.com/marlonsc/mcb/internal/errors"
)

// Row exposes typed, nullable access to one result row by column name.
type Row interface {
	// TryGetString returns a text column. Fails on missing column or NULL.
	TryGetString(column string) (string, error)

	// TryGetNullString returns a text column, nil when NULL.
	TryGetNullString(column string) (*string, error)

	// TryGetInt64 returns an integer column. Fails on missing column or NULL.
	TryGetInt64(column string) (int64, error)

	// TryGetNullInt64 returns an integer column, nil when NULL.
	TryGetNullInt64(column string) (*int64, error)

	// TryGetFloat64 returns a float column. Fails on missing column or NULL.
	TryGetFloat64(column string) (float64, error)

	// TryGetBool returns a boolean column. Fails on missing column or NULL.
	TryGetBool(column string) (bool, error)

	// TryGetBlob returns a binary column, nil when NULL.
	TryGetBlob(column string) ([]byte, error)
}

// mapRow implements Row over a scanned column map.
type mapRow map[string]any

var _ Row = mapRow{}

func (r mapRow) get(column string) (any, error) {
	v, ok := r[column]
	if !ok {
		return nil, errors.Newf(errors.CodeSQLBackend, "column %q not present in result", column)
	}
	return v, nil
}

func (r mapRow) TryGetString(column string) (string, error) {
	v, err := r.get(column)
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case nil:
		return "", errors.Newf(errors.CodeSQLBackend, "column %q is NULL, expected text", column)
	default:
		return "", errors.Newf(errors.CodeSQLBackend, "column %q has type %T, expected text", column, v)
	}
}

func (r mapRow) TryGetNullString(column string) (*string, error) {
	v, err := r.get(column)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	s, err := r.TryGetString(column)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r mapRow) TryGetInt64(column string) (int64, error) {
	v, err := r.get(column)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case nil:
		return 0, errors.Newf(errors.CodeSQLBackend, "column %q is NULL, expected integer", column)
	default:
		return 0, errors.Newf(errors.CodeSQLBackend, "column %q has type %T, expected integer", column, v)
	}
}

func (r mapRow) TryGetNullInt64(column string) (*int64, error) {
	v, err := r.get(column)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	i, err := r.TryGetInt64(column)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r mapRow) TryGetFloat64(column string) (float64, error) {
	v, err := r.get(column)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	case nil:
		return 0, errors.Newf(errors.CodeSQLBackend, "column %q is NULL, expected float", column)
	default:
		return 0, errors.Newf(errors.CodeSQLBackend, "column %q has type %T, expected float", column, v)
	}
}

func (r mapRow) TryGetBool(column string) (bool, error) {
	i, err := r.TryGetInt64(column)
	if err != nil {
		return false, err
	}
	return i != 0, nil
}

func (r mapRow) TryGetBlob(column string) ([]byte, error) {
	v, err := r.get(column)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	case nil:
		return nil, nil
	default:
		return nil, errors.Newf(errors.CodeSQLBackend, "column %q has type %T, expected blob", column, v)
	}
}

// String renders the row for debugging.
func (r mapRow) String() string {
	return fmt.Sprintf("row%v", map[string]any(r))
}
