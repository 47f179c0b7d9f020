package store

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
)

// Generated item ids look like item-k3v9q2ab, with 40 random bits encoded as
// 8 lowercase base32 chars. Ids named in a seed file are kept verbatim.
const itemIDPrefix = "item"

var idEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// newItemID returns a fresh id for an item created without one.
func newItemID() (string, error) {
	var b [5]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return itemIDPrefix + "-" + strings.ToLower(idEncoding.EncodeToString(b[:])), nil
}
