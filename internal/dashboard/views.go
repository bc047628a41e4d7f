// Package dashboard shapes collected Readings into the table, bar chart and
// map views served by the API.
package dashboard

import (
	"github.com/ukair/ukair/internal/airquality"
)

// Row is one table row: a Reading plus its AQI class.
type Row struct {
	Region   string                    `json:"region"`
	City     string                    `json:"city"`
	Date     string                    `json:"date,omitempty"`
	AQI      airquality.Value[int]     `json:"aqi"`
	PM25     airquality.Value[float64] `json:"pm25"`
	PM10     airquality.Value[float64] `json:"pm10"`
	NO2      airquality.Value[float64] `json:"no2"`
	SO2      airquality.Value[float64] `json:"so2"`
	CO       airquality.Value[float64] `json:"co"`
	O3       airquality.Value[float64] `json:"o3"`
	Category airquality.Category       `json:"category"`
	Color    string                    `json:"color"`
}

// ChartPoint is one bar of the AQI chart.
type ChartPoint struct {
	City string `json:"city"`
	Date string `json:"date,omitempty"`
	AQI  int    `json:"aqi"`
}

// Marker is one map marker.
type Marker struct {
	Region   string              `json:"region"`
	City     string              `json:"city"`
	Lat      float64             `json:"lat"`
	Lon      float64             `json:"lon"`
	AQI      int                 `json:"aqi"`
	Category airquality.Category `json:"category"`
	Color    string              `json:"color"`
}

// Table returns one row per reading, in reading order.
func Table(readings []*airquality.Reading) []Row {
	rows := make([]Row, 0, len(readings))
	for _, r := range readings {
		category := r.Category()
		rows = append(rows, Row{
			Region:   r.Region,
			City:     r.City,
			Date:     r.DateString(),
			AQI:      r.AQI,
			PM25:     r.PM25,
			PM10:     r.PM10,
			NO2:      r.NO2,
			SO2:      r.SO2,
			CO:       r.CO,
			O3:       r.O3,
			Category: category,
			Color:    category.Color(),
		})
	}
	return rows
}

// AQIChart returns the city to AQI series. Readings without an AQI are omitted.
func AQIChart(readings []*airquality.Reading) []ChartPoint {
	points := make([]ChartPoint, 0, len(readings))
	for _, r := range readings {
		aqi, ok := r.AQI.Get()
		if !ok {
			continue
		}
		points = append(points, ChartPoint{City: r.City, Date: r.DateString(), AQI: aqi})
	}
	return points
}

// Markers returns a marker for every reading that has both coordinates and an AQI.
func Markers(readings []*airquality.Reading) []Marker {
	markers := make([]Marker, 0, len(readings))
	for _, r := range readings {
		aqi, ok := r.AQI.Get()
		if !ok || r.Coordinates == nil {
			continue
		}
		category := airquality.Classify(aqi)
		markers = append(markers, Marker{
			Region:   r.Region,
			City:     r.City,
			Lat:      r.Coordinates.Lat,
			Lon:      r.Coordinates.Lon,
			AQI:      aqi,
			Category: category,
			Color:    category.Color(),
		})
	}
	return markers
}
