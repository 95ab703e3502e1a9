// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncgrab

import (
	"io"
)

// Encoding type identifiers as defined in RFC 6143 Section 7.7 and the
// TightVNC zlib extension.
const (
	EncodingTypeRaw  int32 = 0
	EncodingTypeZlib int32 = 6
)

// Encoding defines the interface for VNC framebuffer encoding methods.
// Read consumes exactly one rectangle payload from the stream and writes the
// decoded pixels into the session's pixel buffer. An encoding may keep
// session-lifetime decode state between calls.
type Encoding interface {
	Type() int32
	Read(v *Video, rect *Rectangle, r io.Reader) error
}
