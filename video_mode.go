// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncgrab

import "strings"

// VideoMode identifies the in-memory channel order of decoded pixel data.
// The mode string spells the order of the four bytes of each pixel: 'r',
// 'g' and 'b' are color channels, 'a' is the padding byte this library
// repurposes as a coverage marker.
type VideoMode string

// Supported video modes.
const (
	VideoModeBGRA VideoMode = "bgra"
	VideoModeRGBA VideoMode = "rgba"
	VideoModeARGB VideoMode = "argb"
	VideoModeABGR VideoMode = "abgr"
)

// String returns the mode label.
func (m VideoMode) String() string {
	return string(m)
}

// channelIndex returns the byte offset of the named channel within a 4-byte
// pixel, or -1 if the mode does not carry that channel.
func (m VideoMode) channelIndex(channel byte) int {
	return strings.IndexByte(string(m), channel)
}
