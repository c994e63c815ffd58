package pgstore

import (
	"errors"
	"fmt"
)

// ErrMalformedAsset reports a durable row whose content field is missing.
var ErrMalformedAsset = errors.New("pgstore: asset row has no content")

// Op names the store operation a StoreError happened in.
type Op string

const (
	OpSchema Op = "schema"
	OpRead   Op = "read"
	OpStore  Op = "store"
	OpDelete Op = "delete"
)

// StoreError wraps a transaction or query failure. Write failures roll the
// whole transaction back before this is returned.
type StoreError struct {
	Op  Op
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("pgstore: %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
