package domain

import (
	"fmt"
	"sort"
)

// Reconcile removes every failed record from the batch together with its
// index-paired link, keeping the relative order of the survivors. Failure
// indexes refer to positions in b. The removed links are returned in batch
// order so they can be queued for retry.
func Reconcile(b Batch, failures []Failure) (Batch, []LinkEntry, error) {
	if len(b.Links) != len(b.Records) {
		return Batch{}, nil, fmt.Errorf("%w: %d links, %d records", ErrMisaligned, len(b.Links), len(b.Records))
	}

	drop := make(map[int]struct{}, len(failures))
	for _, f := range failures {
		if f.Index < 0 || f.Index >= len(b.Records) {
			return Batch{}, nil, fmt.Errorf("%w: failure index %d out of range", ErrMisaligned, f.Index)
		}
		drop[f.Index] = struct{}{}
	}

	out := Batch{
		Links:   make([]LinkEntry, 0, len(b.Links)-len(drop)),
		Records: make([]EventRecord, 0, len(b.Records)-len(drop)),
	}
	removed := make([]LinkEntry, 0, len(drop))
	for i := range b.Records {
		if _, ok := drop[i]; ok {
			removed = append(removed, b.Links[i])
			continue
		}
		out.Links = append(out.Links, b.Links[i])
		out.Records = append(out.Records, b.Records[i])
	}
	return out, removed, nil
}

// SortFailures orders failures by batch index.
func SortFailures(failures []Failure) {
	sort.SliceStable(failures, func(i, j int) bool { return failures[i].Index < failures[j].Index })
}
