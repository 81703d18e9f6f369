// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package units

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/pdiddy/stack-adviser/internal/resolve"
)

// UniqueStackStride rejects final states whose resolved set was already
// accepted earlier in the run. Pseudonym expansion and shared
// dependency paths can complete the same stack more than once.
type UniqueStackStride struct {
	seen map[string]struct{}
}

// NewUniqueStackStride returns a stride with an empty seen set.
func NewUniqueStackStride() *UniqueStackStride {
	return &UniqueStackStride{seen: make(map[string]struct{})}
}

func (u *UniqueStackStride) Name() string { return "UniqueStackStride" }

func (u *UniqueStackStride) Run(_ *resolve.Context, state *resolve.State) error {
	digest := stackDigest(state)
	if _, dup := u.seen[digest]; dup {
		return resolve.NotAcceptable("stack already produced in this run")
	}
	u.seen[digest] = struct{}{}
	return nil
}

// stackDigest hashes the resolved set independent of resolution order.
func stackDigest(state *resolve.State) string {
	keys := make([]string, 0, len(state.Resolved()))
	for _, pv := range state.Resolved() {
		keys = append(keys, pv.Key())
	}
	sort.Strings(keys)

	sum := sha256.Sum256([]byte(strings.Join(keys, "\n")))
	return hex.EncodeToString(sum[:])
}
