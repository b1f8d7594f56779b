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
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// SweepConfig is the YAML form of a sweep session:
//
//	device: {vendor: 0x05ac, product: 0x1297}
//	bmRequestType: 0x80            # fixed
//	bRequest: {start: 0x00, end: 0xff, enabled: true}
//	wValue: 0x0000
//	wIndex: 0x0000
//	wLength: 0x0008
//	log: session.txt
//	timeout: 250ms
//
// A dimension given as a plain number is fixed at that value. A mapping
// without "end" sweeps to the largest value of the field.
type SweepConfig struct {
	Device      DeviceConfig        `yaml:"device"`
	RequestType RangeConfig[uint8]  `yaml:"bmRequestType"`
	Request     RangeConfig[uint8]  `yaml:"bRequest"`
	Value       RangeConfig[uint16] `yaml:"wValue"`
	Index       RangeConfig[uint16] `yaml:"wIndex"`
	Length      Hex[uint16]         `yaml:"wLength"`
	// Log is the text log path. Empty means DefaultLogPath.
	Log string `yaml:"log,omitempty"`
	// Capture is an optional CBOR capture path.
	Capture string `yaml:"capture,omitempty"`
	// Timeout bounds each control transfer. Zero leaves the transport default.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// DeviceConfig identifies the target device.
type DeviceConfig struct {
	Vendor  Hex[uint16] `yaml:"vendor"`
	Product Hex[uint16] `yaml:"product"`
}

// DefaultSweepConfig returns the defaults of the command line tool: a fixed
// GET_DESCRIPTOR(device) request of 0x12 bytes.
func DefaultSweepConfig() *SweepConfig {
	return &SweepConfig{
		RequestType: RangeConfig[uint8]{Start: HexOf[uint8](0x80), End: HexOf[uint8](0xff)},
		Request:     RangeConfig[uint8]{Start: HexOf[uint8](0x06), End: HexOf[uint8](0xff)},
		Value:       RangeConfig[uint16]{Start: HexOf[uint16](0x0000), End: HexOf[uint16](0xffff)},
		Index:       RangeConfig[uint16]{Start: HexOf[uint16](0x0000), End: HexOf[uint16](0xffff)},
		Length:      HexOf[uint16](0x0012),
	}
}

// NewSweepConfig returns the config of a sweep of spec over id.
func NewSweepConfig(id DeviceID, spec SweepSpec) *SweepConfig {
	return &SweepConfig{
		Device:      DeviceConfig{Vendor: HexOf(uint16(id.Vendor)), Product: HexOf(uint16(id.Product))},
		RequestType: rangeConfigOf(spec.RequestType),
		Request:     rangeConfigOf(spec.Request),
		Value:       rangeConfigOf(spec.Value),
		Index:       rangeConfigOf(spec.Index),
		Length:      HexOf(spec.Length),
	}
}

func rangeConfigOf[T uint8 | uint16](r Range[T]) RangeConfig[T] {
	return RangeConfig[T]{Start: HexOf(r.Start), End: HexOf(r.End), Enabled: r.Enabled}
}

// LoadSweepConfig reads a YAML sweep file. Fields missing from the file keep
// the values of DefaultSweepConfig.
func LoadSweepConfig(path string) (*SweepConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseSweepConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseSweepConfig decodes a YAML sweep file over DefaultSweepConfig.
func ParseSweepConfig(data []byte) (*SweepConfig, error) {
	cfg := DefaultSweepConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DeviceID returns the configured target.
func (c *SweepConfig) DeviceID() DeviceID {
	return DeviceID{Vendor: ID(c.Device.Vendor.V), Product: ID(c.Device.Product.V)}
}

// Spec returns the SweepSpec described by the file.
func (c *SweepConfig) Spec() SweepSpec {
	return SweepSpec{
		RequestType: c.RequestType.Range(),
		Request:     c.Request.Range(),
		Value:       c.Value.Range(),
		Index:       c.Index.Range(),
		Length:      c.Length.V,
	}
}

// Marshal encodes the config as YAML.
func (c *SweepConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Hex is an unsigned field written in hexadecimal. It decodes any base
// strconv.ParseUint understands with base 0, e.g. 0x80, 128 or 0o200.
type Hex[T uint8 | uint16] struct {
	V T
}

// HexOf wraps v.
func HexOf[T uint8 | uint16](v T) Hex[T] { return Hex[T]{V: v} }

func hexBits[T uint8 | uint16]() int {
	var zero T
	if _, ok := any(zero).(uint16); ok {
		return 16
	}
	return 8
}

func (h *Hex[T]) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: want a number, got %s", n.Line, n.ShortTag())
	}
	if err := h.Set(n.Value); err != nil {
		return fmt.Errorf("line %d: %v", n.Line, err)
	}
	return nil
}

func (h Hex[T]) MarshalYAML() (any, error) {
	return h.String(), nil
}

// String formats the value as zero-padded hex, e.g. 0x0012.
func (h Hex[T]) String() string {
	return fmt.Sprintf("0x%0*x", hexBits[T]()/4, uint64(h.V))
}

// Set parses s, which makes *Hex a flag.Value.
func (h *Hex[T]) Set(s string) error {
	v, err := strconv.ParseUint(s, 0, hexBits[T]())
	if err != nil {
		return fmt.Errorf("%q is not a %d-bit unsigned number", s, hexBits[T]())
	}
	h.V = T(v)
	return nil
}

// RangeConfig is the YAML form of a Range.
type RangeConfig[T uint8 | uint16] struct {
	Start   Hex[T] `yaml:"start"`
	End     Hex[T] `yaml:"end"`
	Enabled bool   `yaml:"enabled"`
}

// Range converts the config to a Range.
func (r RangeConfig[T]) Range() Range[T] {
	return Range[T]{Start: r.Start.V, End: r.End.V, Enabled: r.Enabled}
}

func (r *RangeConfig[T]) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		var v Hex[T]
		if err := v.UnmarshalYAML(n); err != nil {
			return err
		}
		*r = RangeConfig[T]{Start: v, End: v}
		return nil
	}
	var raw struct {
		Start   Hex[T]  `yaml:"start"`
		End     *Hex[T] `yaml:"end"`
		Enabled *bool   `yaml:"enabled"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	r.Start = raw.Start
	r.End = HexOf(^T(0))
	if raw.End != nil {
		r.End = *raw.End
	}
	// A mapping sweeps unless told otherwise.
	r.Enabled = raw.Enabled == nil || *raw.Enabled
	return nil
}
