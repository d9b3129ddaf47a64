// Package period derives billing period labels and storage keys for usage
// aggregates.
//
// # Period Labels
//
// A period label is the calendar month in UTC ("2025-01"). Every component
// obtains the current label from the same Clock so that all of them agree on
// "the current period" at any instant. Rollover is structural: a new month
// produces a new label and therefore new keys, nothing is reset.
//
// # Keys
//
// Keys have the shape
//
//	metering:<scope>:<owner>:<dimension>:<period>
//
// where every variable component is escaped first. The persistence layer
// treats "." as a path separator and this package uses ":" as its own
// separator, so both are replaced by reserved tokens:
//
//	"." -> "_dot_"
//	":" -> "_col_"
//	"_" -> "_us_"
//
// Escaping "_" as well keeps the mapping injective: a raw component that
// happens to contain the literal text "_dot_" cannot collide with one that
// contains ".". Unescape reverses the mapping for diagnostics.
package period
