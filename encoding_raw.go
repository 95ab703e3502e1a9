// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncgrab

import (
	"io"
)

// RawEncoding represents uncompressed pixel data as defined in RFC 6143
// Section 7.7.1.
type RawEncoding struct{}

// Type returns the encoding type identifier for Raw encoding.
func (*RawEncoding) Type() int32 {
	return EncodingTypeRaw
}

// Read decodes raw pixel data from the server for the specified rectangle.
//
// The payload is exactly width * height * 4 bytes of pixel data in the
// negotiated channel order, transmitted in left-to-right, top-to-bottom
// order without compression or transformation. The decoded rows are written
// into the session's pixel buffer at the rectangle's position.
//
// Parameters:
//   - v: The video session owning the pixel buffer
//   - rect: The rectangle being decoded, specifying dimensions and position
//   - r: Reader positioned at the rectangle payload
//
// Returns:
//   - error: IncompleteStream or Network error if the payload cannot be read
func (*RawEncoding) Read(v *Video, rect *Rectangle, r io.Reader) error {
	payload := make([]byte, rect.pixelBytes())
	if err := readFull(r, "RawEncoding.Read", payload); err != nil {
		return err
	}

	v.blit(rect, payload)
	return nil
}
