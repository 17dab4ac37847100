package harvest

import (
	"slices"
)

// Status tags the outcome of one key.
type Status int

const (
	// StatusSuccess means the worker returned a value.
	StatusSuccess Status = iota
	// StatusFailure means the worker returned an error or panicked.
	StatusFailure
	// StatusCancelled means the key was never scheduled because the harvest was cancelled.
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is the outcome for one submitted key. Value is only meaningful on success;
// Err is set for failures and cancellations.
type Result[T any] struct {
	Index  int
	Key    string
	Value  T
	Err    error
	Status Status
}

// OK reports whether the worker succeeded.
func (r Result[T]) OK() bool {
	return r.Status == StatusSuccess
}

// ResultSet holds exactly one Result per submitted key, in completion order.
type ResultSet[T any] struct {
	Results []Result[T]

	// Cancelled is set when at least one key was never scheduled.
	Cancelled bool
}

// Len returns the number of results.
func (rs *ResultSet[T]) Len() int {
	return len(rs.Results)
}

// Sorted returns a copy of the results in submission order.
func (rs *ResultSet[T]) Sorted() []Result[T] {
	sorted := slices.Clone(rs.Results)
	slices.SortFunc(sorted, func(a, b Result[T]) int {
		return a.Index - b.Index
	})
	return sorted
}

// Successes counts successful results.
func (rs *ResultSet[T]) Successes() int {
	return rs.count(StatusSuccess)
}

// Failures counts failed results.
func (rs *ResultSet[T]) Failures() int {
	return rs.count(StatusFailure)
}

// Skipped counts keys that were never scheduled.
func (rs *ResultSet[T]) Skipped() int {
	return rs.count(StatusCancelled)
}

func (rs *ResultSet[T]) count(s Status) int {
	n := 0
	for _, r := range rs.Results {
		if r.Status == s {
			n++
		}
	}
	return n
}
