// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package plumbing

import (
	"strings"
)

// MainBranch is the one branch every repository is guaranteed to have; it
// can never be deleted and is the only branch new branches may fork from.
const MainBranch = "main"

// ValidateBranchName rejects empty names, names starting with '-' (so they
// are never confused for a flag by any wrapper), and any name containing a
// path component that isn't a reasonable reference segment.
func ValidateBranchName(name string) bool {
	if len(name) == 0 || name[0] == '-' {
		return false
	}
	if strings.ContainsAny(name, " \t\x00~^:?*[\\") {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" {
			return false
		}
	}
	return true
}
