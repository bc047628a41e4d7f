package airquality

// Category is the three-bucket AQI classification used for map markers and
// table styling.
type Category string

const (
	CategoryUnknown  Category = "unknown"
	CategoryGood     Category = "good"
	CategoryModerate Category = "moderate"
	CategoryPoor     Category = "poor"
)

// Classify buckets an AQI: [..50] good, [51..100] moderate, (100..] poor.
func Classify(aqi int) Category {
	switch {
	case aqi <= 50:
		return CategoryGood
	case aqi <= 100:
		return CategoryModerate
	default:
		return CategoryPoor
	}
}

// ClassifyValue classifies an optional AQI. An unreported AQI is unknown.
func ClassifyValue(aqi Value[int]) Category {
	v, ok := aqi.Get()
	if !ok {
		return CategoryUnknown
	}
	return Classify(v)
}

// Color returns the marker color for the category.
func (c Category) Color() string {
	switch c {
	case CategoryGood:
		return "green"
	case CategoryModerate:
		return "orange"
	case CategoryPoor:
		return "red"
	default:
		return "gray"
	}
}
