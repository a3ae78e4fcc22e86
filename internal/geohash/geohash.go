// Package geohash wraps the geohash encoder and the prefix helpers used by
// the resolver. Shorter prefixes denote larger cells; a is an ancestor cell
// of b iff b starts with a.
package geohash

import (
	"strings"

	gh "github.com/TomiHiltunen/geohash-golang"
)

const (
	// DefaultPrecision is the length of geohashes stored with each fix.
	DefaultPrecision = 9
	// MinPrefixLen is the coarsest cell the resolver ever probes or caches.
	MinPrefixLen = 2
	// MaxCandidateLen is the finest ancestor tried against reference tables.
	MaxCandidateLen = 8
)

const alphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// Encode returns the geohash of the point with exactly precision characters.
func Encode(lat, lng float64, precision int) string {
	if precision <= 0 {
		precision = DefaultPrecision
	}
	return gh.EncodeWithPrecision(lat, lng, precision)
}

// Valid reports whether g is a geohash the resolver can work with.
func Valid(g string) bool {
	if len(g) < MinPrefixLen {
		return false
	}
	for i := 0; i < len(g); i++ {
		if strings.IndexByte(alphabet, g[i]) < 0 {
			return false
		}
	}
	return true
}

// Candidates returns the ancestor prefixes of g probed against a reference
// table, longest first: lengths min(8, len(g)) down to 2.
func Candidates(g string) []string {
	top := len(g)
	if top > MaxCandidateLen {
		top = MaxCandidateLen
	}
	if top < MinPrefixLen {
		return nil
	}
	out := make([]string, 0, top-MinPrefixLen+1)
	for n := top; n >= MinPrefixLen; n-- {
		out = append(out, g[:n])
	}
	return out
}
