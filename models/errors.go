package models

import "errors"

// Error kinds surfaced by the codec. Callers match with errors.Is; the
// wrapping message carries the file name and offset where the condition was
// detected.
var (
	// ErrInvalidHeader is returned when the ASCII header scan produced a
	// wrong field count or a malformed time-zone segment.
	ErrInvalidHeader = errors.New("invalid sdb header")

	// ErrUnsupportedVersion is returned when the header version differs
	// from Version.
	ErrUnsupportedVersion = errors.New("unsupported sdb version")

	// ErrInvalidMarker is returned when an expected tag byte, filler or
	// the begin-data marker did not match.
	ErrInvalidMarker = errors.New("invalid marker")

	// ErrCorruptMetadata is returned when a stream type or candle header
	// value is outside its enumerated range.
	ErrCorruptMetadata = errors.New("corrupt metadata")

	// ErrInvalidWritePhase is returned when a write API call is out of
	// sequence relative to the writer state machine.
	ErrInvalidWritePhase = errors.New("invalid write phase")

	// ErrOutOfOrderTimestamp is returned when a write carries a timestamp
	// earlier than the last written timestamp.
	ErrOutOfOrderTimestamp = errors.New("out-of-order timestamp")

	// ErrInvalidPriceLevelCount is returned when a bid or ask count
	// exceeds the book depth cap.
	ErrInvalidPriceLevelCount = errors.New("invalid price level count")

	// ErrUndefinedPriceUnit is returned when price normalization is
	// requested with an unknown unit.
	ErrUndefinedPriceUnit = errors.New("undefined price unit")
)
