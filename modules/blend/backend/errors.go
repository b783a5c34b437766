// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package backend

import "fmt"

// ErrMissing is returned by Get when no value exists for the given key.
type ErrMissing struct {
	Key string
}

func (e *ErrMissing) Error() string { return fmt.Sprintf("blend: missing block store key %q", e.Key) }

func NewErrMissing(key string) error {
	return &ErrMissing{Key: key}
}

func IsErrMissing(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrMissing)
	return ok
}
