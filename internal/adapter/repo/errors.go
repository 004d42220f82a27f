package repo

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"storybook/internal/infra"
)

// invalid_text_representation, raised when an id is not a valid uuid
const codeInvalidText = "22P02"

// isMissing reports whether err means the addressed row cannot exist.
func isMissing(err error) bool {
	if infra.IsNoRows(err) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeInvalidText
}
