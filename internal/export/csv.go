// Package export encodes Readings as CSV, one row per Reading.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ukair/ukair/internal/airquality"
)

// ContentType is the media type of the CSV encoding.
const ContentType = "text/csv; charset=utf-8"

// ErrBadHeader is returned by ReadCSV when the header does not match either column layout.
var ErrBadHeader = errors.New("unexpected csv header")

// Columns returns the header for a table of readings. The date column is
// present only when the readings are dated.
func Columns(dated bool) []string {
	cols := []string{"region", "city"}
	if dated {
		cols = append(cols, "date")
	}
	cols = append(cols, "aqi")
	for _, p := range airquality.Pollutants {
		cols = append(cols, string(p))
	}
	return cols
}

// Dated reports whether any reading carries a date.
func Dated(readings []*airquality.Reading) bool {
	for _, r := range readings {
		if r.Date != nil {
			return true
		}
	}
	return false
}

// WriteCSV writes a header row followed by one row per reading.
// Unreported values are written as empty cells.
func WriteCSV(w io.Writer, readings []*airquality.Reading) error {
	dated := Dated(readings)
	cw := csv.NewWriter(w)

	if err := cw.Write(Columns(dated)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range readings {
		record := []string{r.Region, r.City}
		if dated {
			record = append(record, r.DateString())
		}
		record = append(record, r.AQI.String())
		for _, p := range airquality.Pollutants {
			record = append(record, r.Pollutant(p).String())
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row for %s: %w", r.Region, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile writes readings as CSV to path, or to stdout when path is "-".
// An error closing the file is returned like any write error.
func WriteFile(path string, readings []*airquality.Reading) (err error) {
	if path == "-" {
		return WriteCSV(os.Stdout, readings)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	if err := WriteCSV(f, readings); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadCSV parses the output of WriteCSV back into Readings.
// Coordinates are not part of the encoding and are left nil.
func ReadCSV(r io.Reader) ([]*airquality.Reading, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var dated bool
	switch {
	case equal(header, Columns(true)):
		dated = true
	case equal(header, Columns(false)):
	default:
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, header)
	}

	var readings []*airquality.Reading
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		reading, err := parseRecord(record, dated)
		if err != nil {
			return nil, fmt.Errorf("parse line %d: %w", line, err)
		}
		readings = append(readings, reading)
	}

	return readings, nil
}

func parseRecord(record []string, dated bool) (*airquality.Reading, error) {
	loc := airquality.Location{Region: record[0], City: record[1]}
	rest := record[2:]

	var date *time.Time
	if dated {
		if rest[0] != "" {
			d, err := time.Parse(airquality.DateLayout, rest[0])
			if err != nil {
				return nil, fmt.Errorf("parse date: %w", err)
			}
			date = &d
		}
		rest = rest[1:]
	}

	aqi, err := airquality.ParseValue[int](rest[0])
	if err != nil {
		return nil, fmt.Errorf("parse aqi: %w", err)
	}

	pollutants := make(map[airquality.Pollutant]airquality.Value[float64], len(airquality.Pollutants))
	for i, p := range airquality.Pollutants {
		v, err := airquality.ParseValue[float64](rest[1+i])
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		pollutants[p] = v
	}

	return airquality.NewReading(loc, date, aqi, pollutants), nil
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
