// Package pairing generates conflict-free all-pairs round-robin schedules.
//
// The schedule is a 1-factorization of the complete graph over the node
// indices: every unordered pair appears in exactly one round, and no index
// appears twice within a round, so all pairs of a round can run in parallel.
package pairing

import (
	"encoding/json"
	"fmt"
)

// bye marks the virtual index appended when the node count is odd. The node
// paired with it sits the round out.
const bye = -1

// Pair is an unordered pair of distinct node indices.
type Pair struct {
	A int
	B int
}

// MarshalJSON renders a pair as a 2-element array, [a, b].
func (p Pair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.A, p.B})
}

// UnmarshalJSON accepts the 2-element array form.
func (p *Pair) UnmarshalJSON(data []byte) error {
	var arr [2]int
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	p.A, p.B = arr[0], arr[1]
	return nil
}

// Round is one synchronization unit of the schedule. All pairs in a round
// are node-disjoint.
type Round struct {
	Index int    `json:"round"`
	Pairs []Pair `json:"pairs"`
}

// Schedule is the full ordered sequence of rounds for a node count.
type Schedule struct {
	Nodes  int     `json:"nodes"`
	Rounds []Round `json:"rounds"`
}

// InvalidInputError reports a node count the generator cannot schedule.
type InvalidInputError struct {
	Nodes int
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("pairing: need at least 2 nodes, got %d", e.Nodes)
}

// Generate returns the round-robin schedule for n nodes using the circle
// method: fix index 0, rotate the rest one position per round, and pair
// opposite positions. For odd n a virtual bye index is appended first and
// pairs containing it are dropped from the output.
//
// The result is a pure function of n: repeated calls produce identical
// schedules. Round count is n-1 for even n and n for odd n.
func Generate(n int) (*Schedule, error) {
	if n < 2 {
		return nil, &InvalidInputError{Nodes: n}
	}

	arr := make([]int, 0, n+1)
	for i := 0; i < n; i++ {
		arr = append(arr, i)
	}
	if n%2 == 1 {
		arr = append(arr, bye)
	}

	size := len(arr)
	half := size / 2
	totalRounds := size - 1

	sched := &Schedule{Nodes: n, Rounds: make([]Round, 0, totalRounds)}
	for r := 0; r < totalRounds; r++ {
		round := Round{Index: r}
		for k := 0; k < half; k++ {
			a, b := arr[k], arr[size-1-k]
			if a == bye || b == bye {
				continue
			}
			round.Pairs = append(round.Pairs, Pair{A: a, B: b})
		}
		sched.Rounds = append(sched.Rounds, round)

		// Rotate all but the fixed first element:
		// [a0, a1, ..., a_{n-2}, a_{n-1}] -> [a0, a_{n-1}, a1, ..., a_{n-2}]
		if size > 2 {
			last := arr[size-1]
			copy(arr[2:], arr[1:size-1])
			arr[1] = last
		}
	}

	return sched, nil
}

// PairCount returns the total number of pairs across all rounds.
func (s *Schedule) PairCount() int {
	total := 0
	for _, r := range s.Rounds {
		total += len(r.Pairs)
	}
	return total
}

// Verify checks the schedule invariants: no index repeats within a round,
// every index is in [0, n), and every unordered pair of distinct indices
// appears exactly once across the whole schedule.
func Verify(s *Schedule) error {
	n := s.Nodes
	seen := make(map[Pair]int)

	for _, round := range s.Rounds {
		used := make(map[int]bool)
		for _, p := range round.Pairs {
			if p.A < 0 || p.A >= n || p.B < 0 || p.B >= n {
				return fmt.Errorf("round %d: pair (%d,%d) out of range [0,%d)", round.Index, p.A, p.B, n)
			}
			if p.A == p.B {
				return fmt.Errorf("round %d: self-pair (%d,%d)", round.Index, p.A, p.B)
			}
			if used[p.A] || used[p.B] {
				return fmt.Errorf("round %d: node repeated in pair (%d,%d)", round.Index, p.A, p.B)
			}
			used[p.A] = true
			used[p.B] = true
			seen[canonical(p)]++
		}
	}

	want := n * (n - 1) / 2
	if len(seen) != want {
		return fmt.Errorf("coverage mismatch: expected %d distinct pairs, got %d", want, len(seen))
	}
	for p, count := range seen {
		if count != 1 {
			return fmt.Errorf("pair (%d,%d) appears %d times", p.A, p.B, count)
		}
	}
	return nil
}

func canonical(p Pair) Pair {
	if p.A > p.B {
		return Pair{A: p.B, B: p.A}
	}
	return p
}
