package airquality

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// DefaultLocations returns the main city of each of the twelve UK regions.
func DefaultLocations() []Location {
	return []Location{
		{Region: "Wales", City: "Cardiff", Coordinates: &Coordinates{Lat: 51.4816, Lon: -3.1791}},
		{Region: "Scotland", City: "Edinburgh", Coordinates: &Coordinates{Lat: 55.9533, Lon: -3.1883}},
		{Region: "Northern Ireland", City: "Belfast", Coordinates: &Coordinates{Lat: 54.5973, Lon: -5.9301}},
		{Region: "London", City: "London", Coordinates: &Coordinates{Lat: 51.5074, Lon: -0.1278}},
		{Region: "North East England", City: "Newcastle upon Tyne", Coordinates: &Coordinates{Lat: 54.9783, Lon: -1.6178}},
		{Region: "North West England", City: "Manchester", Coordinates: &Coordinates{Lat: 53.4808, Lon: -2.2426}},
		{Region: "Yorkshire and the Humber", City: "Leeds", Coordinates: &Coordinates{Lat: 53.8008, Lon: -1.5491}},
		{Region: "East Midlands", City: "Nottingham", Coordinates: &Coordinates{Lat: 52.9548, Lon: -1.1581}},
		{Region: "West Midlands", City: "Birmingham", Coordinates: &Coordinates{Lat: 52.4862, Lon: -1.8904}},
		{Region: "South East England", City: "Brighton", Coordinates: &Coordinates{Lat: 50.8225, Lon: -0.1372}},
		{Region: "East of England", City: "Norwich", Coordinates: &Coordinates{Lat: 52.6309, Lon: 1.2974}},
		{Region: "South West England", City: "Bristol", Coordinates: &Coordinates{Lat: 51.4545, Lon: -2.5879}},
	}
}

// ValidateLocations checks that a location set is usable: non-empty, every
// region and city named, regions unique, and coordinates within range.
func ValidateLocations(locations []Location) error {
	if len(locations) == 0 {
		return ErrNoLocations
	}

	seen := make(map[string]struct{}, len(locations))
	for i, loc := range locations {
		if strings.TrimSpace(loc.Region) == "" {
			return fmt.Errorf("%w: location %d has no region", ErrInvalidLocation, i)
		}
		if strings.TrimSpace(loc.City) == "" {
			return fmt.Errorf("%w: region %q has no city", ErrInvalidLocation, loc.Region)
		}
		if _, ok := seen[loc.Region]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateRegion, loc.Region)
		}
		seen[loc.Region] = struct{}{}

		if c := loc.Coordinates; c != nil {
			if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
				return fmt.Errorf("%w: region %q has coordinates out of range", ErrInvalidLocation, loc.Region)
			}
		}
	}
	return nil
}

// LoadLocations reads an ordered JSON array of locations and validates it.
func LoadLocations(r io.Reader) ([]Location, error) {
	var locations []Location
	if err := json.NewDecoder(r).Decode(&locations); err != nil {
		return nil, fmt.Errorf("decode locations: %w", err)
	}
	if err := ValidateLocations(locations); err != nil {
		return nil, err
	}
	return locations, nil
}
