// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package streamio provides a pooled copy buffer for the container
// codec's gzip/zstd file I/O, avoiding a fresh allocation per block
// payload copy.
package streamio

import (
	"io"
	"sync"
)

// blockCopyBufferSize matches the codec's typical single-block payload
// size rather than a generic io.Copy default, since every caller here
// copies one decompressed container stream.
const blockCopyBufferSize = 64 * 1024

var copyBuffers = sync.Pool{
	New: func() any {
		b := make([]byte, blockCopyBufferSize)
		return &b
	},
}

// Copy copies src to dst using a buffer drawn from a shared pool instead
// of allocating one per call.
func Copy(dst io.Writer, src io.Reader) (int64, error) {
	buf := copyBuffers.Get().(*[]byte)
	defer copyBuffers.Put(buf)
	return io.CopyBuffer(dst, src, *buf)
}
