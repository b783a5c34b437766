// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// newCountBar adds a block-counting bar to p styled after the teacher's
// transfer bars, or returns nil when p is nil (progress reporting is
// always optional). total is the number of blocks the operation will
// touch, known upfront here since Commit/Restore/Export/Import all work
// from an already-computed manifest.
func newCountBar(p *mpb.Progress, name string, total int) *mpb.Bar {
	if p == nil || total == 0 {
		return nil
	}
	return p.New(int64(total),
		mpb.BarStyle().Filler("#").Padding(" "),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name), C: decor.DindentRight}),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("%d / %d"),
		),
	)
}

// incr increments bar by one if non-nil, so call sites never need a nil
// check of their own.
func incr(bar *mpb.Bar) {
	if bar != nil {
		bar.Increment()
	}
}
