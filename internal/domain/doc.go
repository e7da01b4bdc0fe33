// Package domain models daily epidemiological time series and the analytical
// products derived from them.
//
// # Data Source
//
// Input rows follow the Johns Hopkins CSSE "time_series_covid19_*_global"
// layout: one row per province or country with a representative coordinate,
// followed by one cumulative count per day. Every row starts on the same
// anchor date (the first date column of the header).
//
//	Province/State,Country/Region,Lat,Long,1/22/20,1/23/20,...
//	,Italy,41.87194,12.56738,0,0,...
//
// # Punctual values
//
// Counts are cumulative. The pipeline works on punctual (daily delta) values:
//
//	delta[0] = cumulative[0]
//	delta[i] = cumulative[i] - cumulative[i-1]
//
// Negative deltas are upstream data corrections and are kept as-is.
//
// # Windows
//
// Weekly windows follow ISO weeks (Monday start) and are labelled with the
// Monday's date, e.g. "2020-01-20". Monthly windows are labelled "2006-01"
// so that lexical order is chronological order. Leading and trailing windows
// may be partial.
//
// # Products
//
//   - Global weekly statistics: every entity summed per week.
//   - Continent weekly statistics: entities grouped by continent, keyed
//     "Europe - 2020-01-20".
//   - Monthly trends: per-entity slope per month, top 49 by slope, clustered
//     by slope similarity.
package domain
