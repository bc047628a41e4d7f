// Package airquality enumerates air quality queries for a fixed set of locations,
// collects them through a Fetcher, and normalizes the results into Readings.
package airquality

import (
	"errors"
	"time"
)

// Configuration errors. These are reported before any fetch is attempted.
var (
	ErrNoLocations      = errors.New("no locations configured")
	ErrInvalidLocation  = errors.New("invalid location")
	ErrDuplicateRegion  = errors.New("duplicate region")
	ErrInvalidDateRange = errors.New("start date is after end date")
	ErrDateRangeTooLong = errors.New("date range too long")
	ErrIncompleteRange  = errors.New("date range needs both start and end")
)

// Pollutant identifies one of the individual pollutant readings.
// The value is the code used by the upstream iaqi map.
type Pollutant string

const (
	PollutantPM25 Pollutant = "pm25"
	PollutantPM10 Pollutant = "pm10"
	PollutantNO2  Pollutant = "no2"
	PollutantSO2  Pollutant = "so2"
	PollutantCO   Pollutant = "co"
	PollutantO3   Pollutant = "o3"
)

// Pollutants lists every pollutant a Reading carries, in column order.
var Pollutants = []Pollutant{
	PollutantPM25,
	PollutantPM10,
	PollutantNO2,
	PollutantSO2,
	PollutantCO,
	PollutantO3,
}

// Label returns the display name of the pollutant.
func (p Pollutant) Label() string {
	switch p {
	case PollutantPM25:
		return "PM2.5"
	case PollutantPM10:
		return "PM10"
	case PollutantNO2:
		return "NO2"
	case PollutantSO2:
		return "SO2"
	case PollutantCO:
		return "CO"
	case PollutantO3:
		return "O3"
	default:
		return string(p)
	}
}

// Description explains what the pollutant is and how it affects health.
// Unknown pollutants have no description.
func (p Pollutant) Description() string {
	switch p {
	case PollutantPM25:
		return "Particulate Matter < 2.5 microns. Tiny particles that reduce visibility and cause the air to appear hazy when levels are elevated."
	case PollutantPM10:
		return "Particulate Matter < 10 microns. Particles that can be inhaled and cause health problems."
	case PollutantNO2:
		return "Nitrogen Dioxide. A pollutant that can irritate the lungs and lower resistance to respiratory infections."
	case PollutantSO2:
		return "Sulfur Dioxide. A gas that can cause respiratory problems and aggravate existing heart disease."
	case PollutantCO:
		return "Carbon Monoxide. A colorless, odorless gas that can cause harmful health effects by reducing oxygen delivery to the body's organs and tissues."
	case PollutantO3:
		return "Ozone. A gas that can cause respiratory problems and other health issues."
	default:
		return ""
	}
}

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Location is a region paired with the city used to query it.
// Region is the unique key within a location set.
type Location struct {
	Region      string       `json:"region"`
	City        string       `json:"city"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Query identifies a single fetch: one location, optionally on one date.
type Query struct {
	// Index is the position of the query in enumeration order.
	Index int

	Location Location

	// Date is nil for current-conditions queries.
	Date *time.Time
}

// DateString returns the query date as YYYY-MM-DD, or "" for current conditions.
func (q Query) DateString() string {
	if q.Date == nil {
		return ""
	}
	return q.Date.Format(DateLayout)
}

// Reading is the normalized result of one successful Query.
type Reading struct {
	Region      string
	City        string
	Coordinates *Coordinates
	AQI         Value[int]
	Date        *time.Time

	PM25 Value[float64]
	PM10 Value[float64]
	NO2  Value[float64]
	SO2  Value[float64]
	CO   Value[float64]
	O3   Value[float64]
}

// NewReading builds a Reading for a location. Pollutants missing from the map
// are not reported.
func NewReading(loc Location, date *time.Time, aqi Value[int], pollutants map[Pollutant]Value[float64]) *Reading {
	r := &Reading{
		Region:      loc.Region,
		City:        loc.City,
		Coordinates: loc.Coordinates,
		AQI:         aqi,
		Date:        date,
	}
	r.PM25 = pollutants[PollutantPM25]
	r.PM10 = pollutants[PollutantPM10]
	r.NO2 = pollutants[PollutantNO2]
	r.SO2 = pollutants[PollutantSO2]
	r.CO = pollutants[PollutantCO]
	r.O3 = pollutants[PollutantO3]
	return r
}

// Pollutant returns the concentration recorded for p.
func (r *Reading) Pollutant(p Pollutant) Value[float64] {
	switch p {
	case PollutantPM25:
		return r.PM25
	case PollutantPM10:
		return r.PM10
	case PollutantNO2:
		return r.NO2
	case PollutantSO2:
		return r.SO2
	case PollutantCO:
		return r.CO
	case PollutantO3:
		return r.O3
	default:
		return None[float64]()
	}
}

// Category classifies the reading's AQI.
func (r *Reading) Category() Category {
	return ClassifyValue(r.AQI)
}

// DateString returns the reading date as YYYY-MM-DD, or "" when undated.
func (r *Reading) DateString() string {
	if r.Date == nil {
		return ""
	}
	return r.Date.Format(DateLayout)
}
