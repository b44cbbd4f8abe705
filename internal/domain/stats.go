package domain

// Stats aggregates monotonically non-decreasing report counters.
// ResolvedReports never exceeds TotalReports.
type Stats struct {
	TotalReports    int64 `json:"total_reports"`
	ResolvedReports int64 `json:"resolved_reports"`
}
