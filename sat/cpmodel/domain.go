// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cpmodel

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ClosedInterval is the set of integers in `[Start,End]`. It is empty when Start > End.
type ClosedInterval struct {
	Start int64
	End   int64
}

// saturatingAdd returns `i + delta` clamped to the int64 range. The extreme values stand for
// unbounded ends and are returned unchanged.
func saturatingAdd(i, delta int64) int64 {
	if i == math.MinInt64 || i == math.MaxInt64 {
		return i
	}
	s := i + delta
	if delta < 0 && s > i {
		return math.MinInt64
	}
	if delta > 0 && s < i {
		return math.MaxInt64
	}
	return s
}

// Offset shifts both ends of the interval by `delta`, keeping unbounded ends unbounded.
func (c ClosedInterval) Offset(delta int64) ClosedInterval {
	return ClosedInterval{saturatingAdd(c.Start, delta), saturatingAdd(c.End, delta)}
}

// Domain is a subset of `[MinInt64,MaxInt64]` stored as sorted, disjoint and non-adjacent
// closed intervals.
type Domain struct {
	intervals []ClosedInterval
}

// normalize drops empty intervals, sorts the rest and merges the ones that overlap or touch.
func (d *Domain) normalize() {
	var itvs []ClosedInterval
	for _, v := range d.intervals {
		if v.Start <= v.End {
			itvs = append(itvs, v)
		}
	}
	if len(itvs) == 0 {
		d.intervals = nil
		return
	}
	sort.Slice(itvs, func(i, j int) bool {
		if itvs[i].Start != itvs[j].Start {
			return itvs[i].Start < itvs[j].Start
		}
		return itvs[i].End < itvs[j].End
	})
	merged := []ClosedInterval{itvs[0]}
	for _, itv := range itvs[1:] {
		last := &merged[len(merged)-1]
		if saturatingAdd(last.End, 1) >= itv.Start {
			if last.End < itv.End {
				last.End = itv.End
			}
			continue
		}
		merged = append(merged, itv)
	}
	d.intervals = merged
}

// NewEmptyDomain returns the empty domain.
func NewEmptyDomain() Domain {
	return Domain{}
}

// NewSingleDomain returns the domain `{val}`.
func NewSingleDomain(val int64) Domain {
	return Domain{[]ClosedInterval{{val, val}}}
}

// NewDomain returns the domain `[left,right]`, empty when left > right.
func NewDomain(left, right int64) Domain {
	if left > right {
		return NewEmptyDomain()
	}
	return Domain{[]ClosedInterval{{left, right}}}
}

// FromValues returns the domain containing exactly `values`, in any order and with repeats.
func FromValues(values []int64) Domain {
	var d Domain
	for _, v := range values {
		d.intervals = append(d.intervals, ClosedInterval{v, v})
	}
	d.normalize()
	return d
}

// FromIntervals returns the union of `intervals`.
func FromIntervals(intervals []ClosedInterval) Domain {
	d := Domain{append([]ClosedInterval(nil), intervals...)}
	d.normalize()
	return d
}

// FromFlatIntervals returns the domain of a flattened `[s0,e0,s1,e1,...]` list. It fails if
// the list has an odd length.
func FromFlatIntervals(values []int64) (Domain, error) {
	if len(values)%2 != 0 {
		return NewEmptyDomain(), fmt.Errorf("len(values)=%v must be a multiple of 2", len(values))
	}
	var d Domain
	for i := 1; i < len(values); i += 2 {
		d.intervals = append(d.intervals, ClosedInterval{values[i-1], values[i]})
	}
	d.normalize()
	return d, nil
}

// FlattenedIntervals returns the bounds of the intervals in order, e.g. `[0,2,5,5]` for
// `[0,2][5,5]`.
func (d Domain) FlattenedIntervals() []int64 {
	var result []int64
	for _, i := range d.intervals {
		result = append(result, i.Start, i.End)
	}
	return result
}

// Min returns the smallest value of the domain; false if the domain is empty.
func (d Domain) Min() (int64, bool) {
	if len(d.intervals) == 0 {
		return 0, false
	}
	return d.intervals[0].Start, true
}

// Max returns the largest value of the domain; false if the domain is empty.
func (d Domain) Max() (int64, bool) {
	if len(d.intervals) == 0 {
		return 0, false
	}
	return d.intervals[len(d.intervals)-1].End, true
}

// IsEmpty reports whether the domain has no value.
func (d Domain) IsEmpty() bool {
	return len(d.intervals) == 0
}

// Contains reports whether `v` belongs to the domain.
func (d Domain) Contains(v int64) bool {
	i := sort.Search(len(d.intervals), func(i int) bool { return d.intervals[i].End >= v })
	return i < len(d.intervals) && d.intervals[i].Start <= v
}

// ceilValue returns the smallest value of the domain that is >= v.
func (d Domain) ceilValue(v int64) (int64, bool) {
	i := sort.Search(len(d.intervals), func(i int) bool { return d.intervals[i].End >= v })
	if i == len(d.intervals) {
		return 0, false
	}
	if d.intervals[i].Start > v {
		return d.intervals[i].Start, true
	}
	return v, true
}

// floorValue returns the largest value of the domain that is <= v.
func (d Domain) floorValue(v int64) (int64, bool) {
	i := sort.Search(len(d.intervals), func(i int) bool { return d.intervals[i].Start > v })
	if i == 0 {
		return 0, false
	}
	if d.intervals[i-1].End < v {
		return d.intervals[i-1].End, true
	}
	return v, true
}

func (d Domain) String() string {
	var sb strings.Builder
	for _, itv := range d.intervals {
		if itv.Start == itv.End {
			fmt.Fprintf(&sb, "[%d]", itv.Start)
		} else {
			fmt.Fprintf(&sb, "[%d,%d]", itv.Start, itv.End)
		}
	}
	return sb.String()
}
