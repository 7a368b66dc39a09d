package repository

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"catalog-worker/internal/catalog"

	"github.com/lib/pq"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgConnectionClass     = "08"
	pgDataExceptionClass  = "22"
)

// translate tags driver errors with the catalog sentinel they correspond to,
// keeping the original error in the chain.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == pgUniqueViolation:
			return fmt.Errorf("%w: %w", catalog.ErrUniqueViolation, err)
		case pqErr.Code == pgForeignKeyViolation:
			return fmt.Errorf("%w: %w", catalog.ErrReferenced, err)
		case strings.HasPrefix(string(pqErr.Code), pgConnectionClass):
			return fmt.Errorf("%w: %w", catalog.ErrStoreUnavailable, err)
		case strings.HasPrefix(string(pqErr.Code), pgDataExceptionClass):
			return fmt.Errorf("%w: %w", catalog.ErrInvalidData, err)
		}
		return err
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", catalog.ErrStoreUnavailable, err)
	}
	return err
}
