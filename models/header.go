package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Header is the identity block of an SDB file: one instrument, one UTC day.
type Header struct {
	Version    uint32
	Exchange   string
	Symbol     string
	Instrument string
	SecID      int64

	// Date is the UTC midnight of the recorded day.
	Date time.Time

	TZName   string
	TZOffset int // seconds east of UTC

	Depth  int
	PxStep float64

	// Derived from PxStep, see SetPxStep.
	PxScale     int
	PxPrecision int

	UUID uuid.UUID
}

// NewHeader builds a header for a new file. The date is truncated to its UTC
// midnight; price scale and precision are derived from the step.
func NewHeader(xchg, symbol, instr string, secID int64, date time.Time,
	tzName string, tzOffset int, depth uint8, pxStep float64, id uuid.UUID) *Header {

	h := &Header{
		Version:    Version,
		Exchange:   xchg,
		Symbol:     symbol,
		Instrument: instr,
		SecID:      secID,
		Date:       Midnight(date),
		TZName:     tzName,
		TZOffset:   tzOffset,
		Depth:      int(depth),
		UUID:       id,
	}
	h.SetPxStep(pxStep)
	return h
}

// Midnight returns the UTC midnight of t's day.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SetPxStep stores the minimal price step and derives the integer scale
// (round(1/step)) and decimal precision (log10(scale)).
func (h *Header) SetPxStep(step float64) {
	h.PxStep = step
	if step != 0 {
		h.PxScale = int(1.0/step + 0.5)
	} else {
		h.PxScale = 0
	}
	if h.PxScale > 0 {
		h.PxPrecision = int(math.Round(math.Log10(float64(h.PxScale))))
	} else {
		h.PxPrecision = 0
	}
}

// TZ formats the time zone as it appears in the header, e.g. "+0900 KST".
func (h *Header) TZ() string {
	sign := byte('+')
	n := h.TZOffset
	if n < 0 {
		sign = '-'
		n = -n
	}
	return fmt.Sprintf("%c%02d%02d %s", sign, n/3600, n%3600/60, h.TZName)
}

// ToSteps converts a price in the given unit to integer price steps.
func (h *Header) ToSteps(unit PriceUnit, px float64) (PriceT, error) {
	switch unit {
	case PxDouble:
		return PriceT(math.Round(px / h.PxStep)), nil
	case PxPrecision:
		return PriceT(math.Round(px / float64(h.PxScale))), nil
	case PxSteps:
		return PriceT(px), nil
	}
	return 0, fmt.Errorf("unit %d: %w", unit, ErrUndefinedPriceUnit)
}

// StepsToPx converts integer price steps back to a decimal price.
func (h *Header) StepsToPx(px PriceT) float64 { return float64(px) * h.PxStep }

// TZResolver maps an IANA or abbreviated zone name to a UTC offset for a
// given date. Injected so the codec never mutates process-wide state.
type TZResolver interface {
	Resolve(name string, date time.Time) (offsetSec int, err error)
}

// LocationResolver resolves zone names through time.LoadLocation.
type LocationResolver struct{}

func (LocationResolver) Resolve(name string, date time.Time) (int, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return 0, err
	}
	_, off := date.In(loc).Zone()
	return off, nil
}
