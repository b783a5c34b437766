// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/blendvc/blendvc/modules/streamio"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// ReadFile reads path, auto-detecting plain, gzip, or zstd framing by
// magic bytes, and returns the decompressed container bytes.
func ReadFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("blend: read %s: %w", path, err)
	}
	switch {
	case bytes.HasPrefix(raw, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, NewErrParse("gzip: %v", err)
		}
		defer zr.Close()
		var out bytes.Buffer
		if _, err := streamio.Copy(&out, zr); err != nil {
			return nil, NewErrParse("gzip: %v", err)
		}
		return out.Bytes(), nil
	case bytes.HasPrefix(raw, zstdMagic):
		zr, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, NewErrParse("zstd: %v", err)
		}
		defer zr.Close()
		var out bytes.Buffer
		if _, err := streamio.Copy(&out, zr); err != nil {
			return nil, NewErrParse("zstd: %v", err)
		}
		return out.Bytes(), nil
	default:
		return raw, nil
	}
}

// WriteFileTransactional gzip-compresses data and writes it to path by
// first writing a uniquely-named temporary file in the target directory,
// then atomically renaming it into place. A failure anywhere before the
// rename leaves path either absent or holding its previous content.
func WriteFileTransactional(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("blend: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".blend-tmp-*")
	if err != nil {
		return fmt.Errorf("blend: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	zw := gzip.NewWriter(tmp)
	if _, err = streamio.Copy(zw, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("blend: gzip write: %w", err)
	}
	if err = zw.Close(); err != nil {
		return fmt.Errorf("blend: gzip close: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("blend: fsync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("blend: close temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("blend: rename into place: %w", err)
	}
	return nil
}
