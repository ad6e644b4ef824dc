// Package symbols canonicalizes asset identifiers so that every equality
// comparison in the system happens on one normal form. Venues disagree on
// separators ("BTC/USD", "BTC-USD", "BTCUSD", "btc_usd"); all of them
// canonicalize to "BTC/USD".
package symbols

import "strings"

// Canonical returns the normal form of an asset identifier: upper case,
// with "-" and "_" treated as the same separator as "/".
func Canonical(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.ReplaceAll(s, "-", "/")
	s = strings.ReplaceAll(s, "_", "/")
	return s
}

// Equal reports whether two asset identifiers name the same asset after
// canonicalization.
func Equal(a, b string) bool {
	return Canonical(a) == Canonical(b)
}

// FileSafe returns the canonical form with "/" replaced by "-", suitable
// for use in file names.
func FileSafe(symbol string) string {
	return strings.ReplaceAll(Canonical(symbol), "/", "-")
}
