// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncgrab

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// ZlibEncoding represents zlib-compressed raw pixel data (encoding type 6).
//
// The server runs a single compression dictionary for the whole connection:
// every rectangle is a continuation of one deflate stream, and later
// rectangles may back-reference pixel data from earlier ones. The decoder
// therefore keeps one decompressor for the lifetime of the session and feeds
// each rectangle's compressed payload through it in arrival order. Creating a
// fresh decompressor per rectangle decodes the first rectangle and corrupts
// or rejects the rest.
//
// The compressed source is buffered rather than read straight off the wire:
// the decompressor may read more input than a single rectangle's payload, and
// overdraining the stream would desynchronize the protocol.
type ZlibEncoding struct {
	src bytes.Buffer
	zr  io.ReadCloser
}

// Type returns the encoding type identifier for ZLib encoding.
func (*ZlibEncoding) Type() int32 {
	return EncodingTypeZlib
}

// Read decodes one zlib-compressed rectangle.
//
// The payload is a 4-byte big-endian length followed by that many bytes of
// deflate data, which inflate to exactly width * height * 4 bytes of pixel
// data in the negotiated channel order. The decoded rows are written into
// the session's pixel buffer at the rectangle's position.
//
// Parameters:
//   - v: The video session owning the pixel buffer
//   - rect: The rectangle being decoded, specifying dimensions and position
//   - r: Reader positioned at the rectangle payload
//
// Returns:
//   - error: IncompleteStream, Validation, or Encoding error; any failure
//     leaves the compression state unusable for the rest of the session
func (e *ZlibEncoding) Read(v *Video, rect *Rectangle, r io.Reader) error {
	length, err := readInt(r, "ZlibEncoding.Read", 4)
	if err != nil {
		return err
	}
	if err := v.validator.ValidateCompressedLength(length); err != nil {
		return err
	}

	e.src.Grow(int(length))
	if _, err := io.CopyN(&e.src, r, int64(length)); err != nil {
		return incompleteStreamError("ZlibEncoding.Read",
			"stream ended inside compressed payload", err)
	}

	if e.zr == nil {
		zr, err := zlib.NewReader(&e.src)
		if err != nil {
			return encodingError("ZlibEncoding.Read", "failed to open compressed stream", err)
		}
		e.zr = zr
	}

	payload := make([]byte, rect.pixelBytes())
	if _, err := io.ReadFull(e.zr, payload); err != nil {
		return encodingError("ZlibEncoding.Read", "failed to decompress rectangle data", err)
	}

	v.blit(rect, payload)
	return nil
}

// Close releases the decompressor. Safe to call when no compressed rectangle
// was ever decoded, and safe to call more than once.
func (e *ZlibEncoding) Close() error {
	if e.zr == nil {
		return nil
	}
	err := e.zr.Close()
	e.zr = nil
	e.src.Reset()
	return err
}
