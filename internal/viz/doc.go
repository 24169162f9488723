// Package viz renders simulation output for the terminal.
//
//   - [SpeciesCharts] and [SensitivityChart]: asciigraph line charts
//   - [RatesTable], [ParamsTable], [MetricsTable], [PeaksTable]: lipgloss tables
//   - [SpeciesSummary]: per-species extremes with a sparkline trend
//
// Output degrades to plain text when stdout is not a terminal.
package viz
