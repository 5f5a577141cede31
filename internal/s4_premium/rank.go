package s4_premium

import (
	"sort"

	"github.com/wonny/b3factor/backend/internal/contracts"
)

// Candidate is one eligible ticker at a rebalance date with the values of
// every criterion, in criterion order
type Candidate struct {
	Ticker string
	Price  float64 // adjusted close
	Volume float64
	Values []float64
}

// DedupeRoots keeps the highest volume ticker of each 4-character issuer root.
// Volume ties keep the lower ticker.
func DedupeRoots(candidates []Candidate) []Candidate {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Volume != sorted[j].Volume {
			return sorted[i].Volume > sorted[j].Volume
		}
		return sorted[i].Ticker < sorted[j].Ticker
	})

	seen := make(map[string]bool, len(sorted))
	out := sorted[:0:0]
	for _, c := range sorted {
		root := contracts.TickerRoot(c.Ticker)
		if seen[root] {
			continue
		}
		seen[root] = true
		out = append(out, c)
	}
	return out
}

// AverageRank ranks values from 1..n. Ascending gives the smallest value rank
// 1, descending the largest. Ties share the mean of their positions.
func AverageRank(values []float64, dir contracts.Direction) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if dir == contracts.Descending {
			return values[idx[a]] > values[idx[b]]
		}
		return values[idx[a]] < values[idx[b]]
	})

	ranks := make([]float64, len(values))
	for start := 0; start < len(idx); {
		end := start + 1
		for end < len(idx) && values[idx[end]] == values[idx[start]] {
			end++
		}
		// positions start..end-1 are 1-based start+1..end
		avg := float64(start+1+end) / 2
		for k := start; k < end; k++ {
			ranks[idx[k]] = avg
		}
		start = end
	}
	return ranks
}

// Rank orders candidates by composite score, the weighted sum of per
// criterion ranks. Lower is better; ties break on ticker.
// ⭐ SSOT: composite ranking rule
func Rank(candidates []Candidate, criteria []contracts.Criterion) []contracts.QuartileMember {
	members := make([]contracts.QuartileMember, len(candidates))
	for i, c := range candidates {
		members[i] = contracts.QuartileMember{Ticker: c.Ticker, Price: c.Price, Volume: c.Volume}
	}

	values := make([]float64, len(candidates))
	for ci, crit := range criteria {
		for i, c := range candidates {
			values[i] = c.Values[ci]
		}
		for i, r := range AverageRank(values, crit.Direction) {
			members[i].Composite += weight(crit) * r
		}
	}

	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Composite != members[j].Composite {
			return members[i].Composite < members[j].Composite
		}
		return members[i].Ticker < members[j].Ticker
	})
	return members
}

// Partition splits a ranked universe into four quartiles of n/4 members;
// the remainder goes to the fourth quartile
func Partition(ranked []contracts.QuartileMember) [4][]contracts.QuartileMember {
	size := len(ranked) / 4
	return [4][]contracts.QuartileMember{
		ranked[0:size],
		ranked[size : 2*size],
		ranked[2*size : 3*size],
		ranked[3*size:],
	}
}

func weight(c contracts.Criterion) float64 {
	if c.Weight == 0 {
		return 1
	}
	return c.Weight
}
