// CLAUDE:SUMMARY Pluggable ID and name generation: nano IDs, UUIDv7, timestamped document stems.
// Package idgen provides pluggable identifier generation for reservoir.
//
// Document identifiers themselves come from the ledger counter; idgen covers
// everything else that needs a unique name: scheduler run ids, generated
// default document stems, temp workspace suffixes.
package idgen

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator producing base-36 IDs of the given length.
// Short and filename-safe; used for suffixes where a UUID is too verbose.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		out := make([]byte, length)
		for i, b := range buf {
			out[i] = alphabet[int(b)%len(alphabet)]
		}
		return string(out)
	}
}

// UUIDv7 returns a Generator producing RFC 9562 UUID v7 strings.
// Time-sortable and globally unique; used for scheduler run ids.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Stem returns a Generator producing default document stems in the format
// "20060102T150405Z-<suffix>". Fetched items that carry neither a content
// key nor a suggested filename are persisted under one of these.
func Stem() Generator {
	suffix := NanoID(6)
	return func() string {
		return time.Now().UTC().Format("20060102T150405Z") + "-" + suffix()
	}
}
