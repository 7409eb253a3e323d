package strategy

import (
	perrors "github.com/jmgilman/go/errors"
)

// Failure kinds reported in logs and metrics.
const (
	KindNetwork = "network"
	KindTimeout = "timeout"
	KindStorage = "storage"
	KindUnknown = "unknown"
)

// FailureKind maps an error returned inside a strategy to its failure kind.
func FailureKind(err error) string {
	switch perrors.GetCode(err) {
	case perrors.CodeNetwork:
		return KindNetwork
	case perrors.CodeTimeout:
		return KindTimeout
	case perrors.CodeDatabase:
		return KindStorage
	default:
		return KindUnknown
	}
}

// storageError tags a cache failure so it can be told apart from a network failure.
func storageError(err error, message string) error {
	if err == nil {
		return nil
	}
	return perrors.Wrap(err, perrors.CodeDatabase, message)
}
