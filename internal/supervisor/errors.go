package supervisor

import "errors"

var ErrStopped = errors.New("supervisor is stopped")
