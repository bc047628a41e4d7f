package airquality_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ukair/ukair/internal/airquality"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		aqi      int
		category airquality.Category
		color    string
	}{
		{aqi: 0, category: airquality.CategoryGood, color: "green"},
		{aqi: 50, category: airquality.CategoryGood, color: "green"},
		{aqi: 51, category: airquality.CategoryModerate, color: "orange"},
		{aqi: 100, category: airquality.CategoryModerate, color: "orange"},
		{aqi: 101, category: airquality.CategoryPoor, color: "red"},
		{aqi: 350, category: airquality.CategoryPoor, color: "red"},
	}

	for _, tt := range tests {
		got := airquality.Classify(tt.aqi)
		assert.Equal(t, tt.category, got, "aqi %d", tt.aqi)
		assert.Equal(t, tt.color, got.Color(), "aqi %d", tt.aqi)
	}
}

func TestClassifyValue_NotReported(t *testing.T) {
	got := airquality.ClassifyValue(airquality.None[int]())
	assert.Equal(t, airquality.CategoryUnknown, got)
	assert.Equal(t, "gray", got.Color())
}

func TestPollutant_Label(t *testing.T) {
	assert.Equal(t, "PM2.5", airquality.PollutantPM25.Label())
	assert.Equal(t, "O3", airquality.PollutantO3.Label())
	assert.Equal(t, "nh3", airquality.Pollutant("nh3").Label())
	assert.Len(t, airquality.Pollutants, 6)
}

func TestPollutant_Description(t *testing.T) {
	for _, p := range airquality.Pollutants {
		assert.NotEmpty(t, p.Description(), p)
		assert.True(t, strings.HasSuffix(p.Description(), "."), p)
	}
	assert.True(t, strings.HasPrefix(airquality.PollutantPM25.Description(), "Particulate Matter < 2.5 microns."))
	assert.True(t, strings.HasPrefix(airquality.PollutantCO.Description(), "Carbon Monoxide."))
	assert.Empty(t, airquality.Pollutant("nh3").Description())
}
