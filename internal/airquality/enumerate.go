package airquality

// Enumerate expands locations, optionally crossed with a date range, into the
// ordered list of queries to fetch.
//
// Without a range there is one query per location, in configuration order.
// With a range, dates ascend and locations keep configuration order within
// each date. A reversed range returns ErrInvalidDateRange and no queries.
func Enumerate(locations []Location, dates *DateRange) ([]Query, error) {
	if dates == nil {
		queries := make([]Query, 0, len(locations))
		for i, loc := range locations {
			queries = append(queries, Query{Index: i, Location: loc})
		}
		return queries, nil
	}

	if err := dates.Validate(); err != nil {
		return nil, err
	}

	days := dates.Dates()
	queries := make([]Query, 0, len(days)*len(locations))
	for _, day := range days {
		for _, loc := range locations {
			d := day
			queries = append(queries, Query{
				Index:    len(queries),
				Location: loc,
				Date:     &d,
			})
		}
	}
	return queries, nil
}
