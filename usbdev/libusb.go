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

package usbdev

import (
	"time"

	"github.com/google/gousb"
)

// libusb is the backend over a gousb context.
type libusb struct {
	ctx *gousb.Context
}

func (l *libusb) open(vid, pid gousb.ID) (device, error) {
	dev, err := l.ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		// OpenDeviceWithVIDPID may return a device along with an error
		// from listing other devices.
		if dev != nil {
			return &gousbDevice{dev}, nil
		}
		return nil, err
	}
	if dev == nil {
		return nil, nil
	}
	return &gousbDevice{dev}, nil
}

func (l *libusb) Close() error {
	return l.ctx.Close()
}

type gousbDevice struct {
	*gousb.Device
}

func (d *gousbDevice) configs() []int {
	nums := make([]int, 0, len(d.Desc.Configs))
	for n := range d.Desc.Configs {
		nums = append(nums, n)
	}
	return nums
}

func (d *gousbDevice) setConfig(cfgNum int) (closer, error) {
	return d.Config(cfgNum)
}

func (d *gousbDevice) setControlTimeout(t time.Duration) {
	d.ControlTimeout = t
}
