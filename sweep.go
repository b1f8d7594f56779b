// Copyright 2026 the FrisbeeLite Authors.  All rights reserved.
//
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

package frisbee

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// Range is one dimension of a sweep. Both bounds are inclusive.
// A disabled Range never advances: it holds the single value Start,
// regardless of End.
type Range[T uint8 | uint16] struct {
	Start   T
	End     T
	Enabled bool
}

// Fixed returns a disabled Range pinned at v.
func Fixed[T uint8 | uint16](v T) Range[T] {
	return Range[T]{Start: v, End: v}
}

// Sweep returns an enabled Range over [start, end].
func Sweep[T uint8 | uint16](start, end T) Range[T] {
	return Range[T]{Start: start, End: end, Enabled: true}
}

// Len returns the number of values the dimension contributes.
// An enabled Range with End < Start has no values.
func (r Range[T]) Len() uint64 {
	s := r.span()
	if s.empty() {
		return 0
	}
	return uint64(s.end-s.start) + 1
}

func (r Range[T]) span() span {
	if !r.Enabled {
		return span{start: uint32(r.Start), end: uint32(r.Start)}
	}
	return span{start: uint32(r.Start), end: uint32(r.End)}
}

// String formats the range as "0x00-0xff" or "0x80 (fixed)".
func (r Range[T]) String() string {
	w := 2
	var zero T
	if _, ok := any(zero).(uint16); ok {
		w = 4
	}
	if !r.Enabled {
		return fmt.Sprintf("0x%0*x (fixed)", w, r.Start)
	}
	return fmt.Sprintf("0x%0*x-0x%0*x", w, r.Start, w, r.End)
}

// SweepSpec describes every control request of a sweep session.
// Length is the same for every request.
type SweepSpec struct {
	RequestType Range[uint8]
	Request     Range[uint8]
	Value       Range[uint16]
	Index       Range[uint16]
	Length      uint16
}

// SingleRequest returns the degenerate SweepSpec whose only combination is req.
func SingleRequest(req ControlRequest) SweepSpec {
	return SweepSpec{
		RequestType: Fixed(req.RequestType),
		Request:     Fixed(req.Request),
		Value:       Fixed(req.Value),
		Index:       Fixed(req.Index),
		Length:      req.Length,
	}
}

// Count returns the number of control requests the sweep will dispatch
// if it runs to completion.
func (s SweepSpec) Count() uint64 {
	n := uint64(1)
	for _, d := range s.spans() {
		if d.empty() {
			return 0
		}
		n *= uint64(d.end-d.start) + 1
	}
	return n
}

// String formats the four dimensions and the length.
func (s SweepSpec) String() string {
	return fmt.Sprintf("bmRequestType=%s bRequest=%s wValue=%s wIndex=%s wLength=0x%04x",
		s.RequestType, s.Request, s.Value, s.Index, s.Length)
}

// ParseSweepSpec parses the output of SweepSpec.String.
func ParseSweepSpec(s string) (SweepSpec, error) {
	var spec SweepSpec
	fields := strings.Fields(s)
	for i := 0; i < len(fields); i++ {
		key, val, ok := strings.Cut(fields[i], "=")
		if !ok {
			return SweepSpec{}, fmt.Errorf("malformatted spec field %q", fields[i])
		}
		fixed := i+1 < len(fields) && fields[i+1] == "(fixed)"
		if fixed {
			i++
		}
		var err error
		switch key {
		case "bmRequestType":
			spec.RequestType, err = parseRange[uint8](val, fixed)
		case "bRequest":
			spec.Request, err = parseRange[uint8](val, fixed)
		case "wValue":
			spec.Value, err = parseRange[uint16](val, fixed)
		case "wIndex":
			spec.Index, err = parseRange[uint16](val, fixed)
		case "wLength":
			var n uint64
			n, err = strconv.ParseUint(val, 0, 16)
			spec.Length = uint16(n)
		default:
			err = fmt.Errorf("unknown field %q", key)
		}
		if err != nil {
			return SweepSpec{}, fmt.Errorf("malformatted spec %q: %v", s, err)
		}
	}
	return spec, nil
}

func parseRange[T uint8 | uint16](s string, fixed bool) (Range[T], error) {
	var zero T
	bits := 8
	if _, ok := any(zero).(uint16); ok {
		bits = 16
	}
	parse := func(v string) (T, error) {
		n, err := strconv.ParseUint(v, 0, bits)
		return T(n), err
	}
	if fixed {
		v, err := parse(s)
		return Fixed(v), err
	}
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return Range[T]{}, fmt.Errorf("range %q: want start-end", s)
	}
	start, err := parse(lo)
	if err != nil {
		return Range[T]{}, err
	}
	end, err := parse(hi)
	if err != nil {
		return Range[T]{}, err
	}
	return Sweep(start, end), nil
}

// Requests yields every combination of the spec in lexicographic order:
// RequestType changes slowest and Index fastest, all ascending.
// If any enabled dimension is empty, nothing is yielded.
func (s SweepSpec) Requests() iter.Seq[ControlRequest] {
	return func(yield func(ControlRequest) bool) {
		for v := range crossProduct(s.spans()) {
			req := ControlRequest{
				RequestType: uint8(v[0]),
				Request:     uint8(v[1]),
				Value:       uint16(v[2]),
				Index:       uint16(v[3]),
				Length:      s.Length,
			}
			if !yield(req) {
				return
			}
		}
	}
}

func (s SweepSpec) spans() []span {
	return []span{s.RequestType.span(), s.Request.span(), s.Value.span(), s.Index.span()}
}

// span is an inclusive interval widened to 32 bits so the upper bound of a
// uint16 dimension can be reached without wrapping.
type span struct {
	start, end uint32
}

func (s span) empty() bool { return s.end < s.start }

// crossProduct enumerates the cartesian product of dims like an odometer,
// the last dimension turning fastest. The yielded slice is reused between
// iterations.
func crossProduct(dims []span) iter.Seq[[]uint32] {
	return func(yield func([]uint32) bool) {
		for _, d := range dims {
			if d.empty() {
				return
			}
		}
		cur := make([]uint32, len(dims))
		for i, d := range dims {
			cur[i] = d.start
		}
		for {
			if !yield(cur) {
				return
			}
			i := len(dims) - 1
			for ; i >= 0; i-- {
				if cur[i] < dims[i].end {
					cur[i]++
					break
				}
				cur[i] = dims[i].start
			}
			if i < 0 {
				return
			}
		}
	}
}
