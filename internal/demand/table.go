// Package demand turns an origin/destination demand table into individual
// vehicle arrivals.
package demand

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/azurexth/LimSim/pkg/core"
)

// ErrMalformedRow is wrapped by every per-row parse error.
var ErrMalformedRow = errors.New("malformed demand row")

// LoadTable reads a demand table from a file.
func LoadTable(path string) ([]core.DemandRecord, []error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open demand table: %w", err)
	}
	defer f.Close()

	records, rowErrs := ParseTable(f)
	return records, rowErrs, nil
}

// ParseTable parses "origin,destination,direction,rate" rows. The first line
// is a header and is ignored. Reading stops at the first line shorter than two
// characters (line terminator included), which marks the end of the table.
// CRLF terminators count as a single character.
// Malformed rows are skipped and reported in the returned error slice.
func ParseTable(r io.Reader) ([]core.DemandRecord, []error) {
	br := bufio.NewReader(r)

	// header
	if _, err := br.ReadString('\n'); err != nil {
		return nil, nil
	}

	var (
		records []core.DemandRecord
		rowErrs []error
	)
	for lineNo := 2; ; lineNo++ {
		line, err := br.ReadString('\n')
		if strings.HasSuffix(line, "\r\n") {
			line = line[:len(line)-2] + "\n"
		}
		if len(line) < 2 {
			break
		}

		rec, perr := parseRow(line)
		if perr != nil {
			rowErrs = append(rowErrs, fmt.Errorf("line %d: %w", lineNo, perr))
		} else {
			records = append(records, rec)
		}

		if err != nil {
			break
		}
	}
	return records, rowErrs
}

func parseRow(line string) (core.DemandRecord, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), ",")
	if len(fields) < 4 {
		return core.DemandRecord{}, fmt.Errorf("%w: expected 4 fields, got %d", ErrMalformedRow, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	direction, err := strconv.Atoi(fields[2])
	if err != nil || (direction != 1 && direction != -1) {
		return core.DemandRecord{}, fmt.Errorf("%w: bad direction %q", ErrMalformedRow, fields[2])
	}
	rate, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return core.DemandRecord{}, fmt.Errorf("%w: bad rate %q", ErrMalformedRow, fields[3])
	}
	if fields[0] == "" || fields[1] == "" {
		return core.DemandRecord{}, fmt.Errorf("%w: empty node id", ErrMalformedRow)
	}

	return core.DemandRecord{
		From:      fields[0],
		To:        fields[1],
		Direction: direction,
		Rate:      rate,
	}, nil
}
