package codec

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saleyn/sdb/models"
)

const shebang = "#!/usr/bin/env sdb\n"

// WriteHeader emits the ASCII file header. The px-step precision is derived
// from the step so that parse(emit(h)) reproduces the same bytes.
func WriteHeader(w io.Writer, h *models.Header) (int, error) {
	y, m, d := h.Date.UTC().Date()
	s := fmt.Sprintf(
		shebang+
			"version:  %d\n"+
			"utc-date: %d-%02d-%02d (%s)\n"+
			"exchange: %s\n"+
			"symbol:   %s\n"+
			"instr:    %s\n"+
			"secid:    %d\n"+
			"depth:    %d\n"+
			"px-step:  %.*f\n"+
			"uuid:     %s\n\n",
		h.Version, y, int(m), d, h.TZ(), h.Exchange, h.Symbol, h.Instrument,
		h.SecID, h.Depth, h.PxPrecision, h.PxStep, h.UUID.String())
	return io.WriteString(w, s)
}

// ReadHeader parses the ASCII header from r and returns the header and the
// number of bytes consumed (the offset of the first metadata byte).
func ReadHeader(r *bufio.Reader) (*models.Header, int, error) {
	n := 0
	line, err := readLine(r, &n)
	if err != nil {
		return nil, n, err
	}
	if line != shebang {
		return nil, n, fmt.Errorf("bad shebang %q: %w", strings.TrimRight(line, "\n"), models.ErrInvalidHeader)
	}

	h := &models.Header{}
	var (
		y, m, d  int
		tz, tznm string
		uuidStr  string
		pxStep   float64
	)

	fields := []struct {
		format string
		count  int
		args   []interface{}
	}{
		{"version:  %d", 1, []interface{}{&h.Version}},
		{"utc-date: %d-%d-%d (%5s %s", 5, []interface{}{&y, &m, &d, &tz, &tznm}},
		{"exchange: %s", 1, []interface{}{&h.Exchange}},
		{"symbol:   %s", 1, []interface{}{&h.Symbol}},
		{"instr:    %s", 1, []interface{}{&h.Instrument}},
		{"secid:    %d", 1, []interface{}{&h.SecID}},
		{"depth:    %d", 1, []interface{}{&h.Depth}},
		{"px-step:  %f", 1, []interface{}{&pxStep}},
		{"uuid:     %s", 1, []interface{}{&uuidStr}},
	}
	for _, f := range fields {
		line, err = readLine(r, &n)
		if err != nil {
			return nil, n, err
		}
		got, err := fmt.Sscanf(strings.TrimRight(line, "\n"), f.format, f.args...)
		if err != nil || got != f.count {
			return nil, n, fmt.Errorf("line %q: %w", strings.TrimRight(line, "\n"), models.ErrInvalidHeader)
		}
	}

	// Terminating blank line.
	line, err = readLine(r, &n)
	if err != nil {
		return nil, n, err
	}
	if line != "\n" {
		return nil, n, fmt.Errorf("missing blank line after header: %w", models.ErrInvalidHeader)
	}

	if h.Version != models.Version {
		return nil, n, fmt.Errorf("version %d: %w", h.Version, models.ErrUnsupportedVersion)
	}

	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') ||
		len(tznm) < 2 || tznm[len(tznm)-1] != ')' {
		return nil, n, fmt.Errorf("bad timezone %q %q: %w", tz, tznm, models.ErrInvalidHeader)
	}
	hh, herr := strconv.Atoi(tz[1:3])
	mm, merr := strconv.Atoi(tz[3:5])
	if herr != nil || merr != nil {
		return nil, n, fmt.Errorf("bad timezone offset %q: %w", tz, models.ErrInvalidHeader)
	}
	h.TZOffset = hh*3600 + mm*60
	if tz[0] == '-' {
		h.TZOffset = -h.TZOffset
	}
	h.TZName = tznm[:len(tznm)-1]

	h.Date = time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	h.SetPxStep(pxStep)

	h.UUID, err = uuid.Parse(uuidStr)
	if err != nil {
		return nil, n, fmt.Errorf("bad uuid %q: %w", uuidStr, models.ErrInvalidHeader)
	}
	return h, n, nil
}

func readLine(r *bufio.Reader, n *int) (string, error) {
	line, err := r.ReadString('\n')
	*n += len(line)
	if err != nil {
		return line, fmt.Errorf("truncated header: %w", models.ErrInvalidHeader)
	}
	return line, nil
}
