package aggregator

import (
	"iter"
	"sort"

	"github.com/younsl/vpcepilot/internal/models"
)

// DefaultThreshold is the public path access count from which an endpoint is considered missing
const DefaultThreshold = 5

// Thresholds holds the uniform miss threshold and optional per-service overrides
type Thresholds struct {
	Default    int
	PerService map[models.Service]int
}

// For returns the threshold that applies to service.
// PerService keys must be the exact service ids of the catalog.
func (t Thresholds) For(service models.Service) int {
	if v, ok := t.PerService[service]; ok {
		return v
	}
	if t.Default <= 0 {
		return DefaultThreshold
	}
	return t.Default
}

// Summary is the aggregation result
type Summary struct {
	Gaps       []models.CandidateGap
	Observed   int // events seen for the instance
	PublicPath int // events that bypassed a VPC endpoint
}

type groupKey struct {
	service models.Service
	region  string
}

// Aggregate counts public path accesses per (service, region) and keeps the
// groups whose count reaches the threshold. Gaps are sorted by service then region.
func Aggregate(events iter.Seq[models.TrafficEvent], th Thresholds) Summary {
	var summary Summary
	misses := make(map[groupKey]int)

	for ev := range events {
		summary.Observed++
		if ev.UsedPrivatePath {
			continue
		}
		if ev.Service == "" || ev.Region == "" {
			continue
		}
		summary.PublicPath++
		misses[groupKey{ev.Service, ev.Region}]++
	}

	for key, count := range misses {
		if count < th.For(key.service) {
			continue
		}
		summary.Gaps = append(summary.Gaps, models.CandidateGap{
			Service:   key.service,
			Region:    key.region,
			MissCount: count,
		})
	}

	sort.Slice(summary.Gaps, func(i, j int) bool {
		if summary.Gaps[i].Service == summary.Gaps[j].Service {
			return summary.Gaps[i].Region < summary.Gaps[j].Region
		}
		return summary.Gaps[i].Service < summary.Gaps[j].Service
	})

	return summary
}
