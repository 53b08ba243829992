package runs

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ExecError wraps a statement failure. Connectivity marks the
// resource-unreachable subtype; both record identically, the flag only
// steers logging.
type ExecError struct {
	Job          string
	Connectivity bool
	Err          error
}

func (e *ExecError) Error() string {
	if e.Connectivity {
		return fmt.Sprintf("runs: job %s: connectivity: %v", e.Job, e.Err)
	}
	return fmt.Sprintf("runs: job %s: %v", e.Job, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// IsConnectivity reports whether err indicates the database itself was
// unreachable rather than the statement failing.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return execErr.Connectivity
	}

	// SQLSTATE class 08 is "connection exception".
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08")
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, driver.ErrBadConn)
}
