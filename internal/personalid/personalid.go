// Package personalid derives the public 10-digit personal identifier shown
// to other users in place of the internal account identifier.
package personalid

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

const max = 1e10

// Derive maps an email address to a 10-digit numeric string. The mapping is
// deterministic: the same email always yields the same personal ID. The
// generator is seeded, not cryptographically secure; uniqueness follows from
// email uniqueness, which is enforced separately.
func Derive(email string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(email))

	r := rand.New(rand.NewSource(int64(h.Sum64())))
	return fmt.Sprintf("%010d", r.Int63n(max))
}
