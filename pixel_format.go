// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncgrab

import (
	"encoding/binary"
	"io"
)

// PixelFormat describes how pixel color data is encoded and interpreted in a
// VNC connection.
type PixelFormat struct {
	// BPP (bits-per-pixel) specifies how many bits are used to represent each pixel.
	BPP uint8

	// Depth specifies the number of useful bits within each pixel value.
	Depth uint8

	// BigEndian determines the byte order for multi-byte pixel values.
	BigEndian bool

	// TrueColor determines whether pixels represent direct RGB values (true)
	// or indices into a color map (false).
	TrueColor bool

	// RedMax specifies the maximum value for the red color component.
	RedMax uint16

	// GreenMax specifies the maximum value for the green color component.
	GreenMax uint16

	// BlueMax specifies the maximum value for the blue color component.
	BlueMax uint16

	// RedShift specifies how many bits to right-shift a pixel value
	// to position the red color component at the least significant bits.
	RedShift uint8

	// GreenShift specifies how many bits to right-shift a pixel value
	// to position the green color component at the least significant bits.
	GreenShift uint8

	// BlueShift specifies how many bits to right-shift a pixel value
	// to position the blue color component at the least significant bits.
	BlueShift uint8
}

// pixelFormatRecordSize is the meaningful portion of the RFC 6143 PIXEL_FORMAT
// structure; the remaining 3 bytes are padding and travel separately.
const pixelFormatRecordSize = 13

// pixelFormatRecord holds the wire form of a pixel format.
type pixelFormatRecord [pixelFormatRecordSize]byte

// masked clears the undefined high bits of the boolean flag bytes. Servers
// disagree on whether "true" is 1 or 0xFF, so only the low bit is compared.
func (rec pixelFormatRecord) masked() pixelFormatRecord {
	rec[2] &= 1
	rec[3] &= 1
	return rec
}

// videoMode resolves the record against the supported mode table after flag
// masking. The second return value reports whether the format is supported.
func (rec pixelFormatRecord) videoMode() (VideoMode, bool) {
	mode, ok := videoModes[rec.masked()]
	return mode, ok
}

// record returns the 13-byte wire form of the pixel format.
func (pf *PixelFormat) record() pixelFormatRecord {
	var rec pixelFormatRecord
	rec[0] = pf.BPP
	rec[1] = pf.Depth
	if pf.BigEndian {
		rec[2] = 1
	}
	if pf.TrueColor {
		rec[3] = 1
	}
	binary.BigEndian.PutUint16(rec[4:6], pf.RedMax)
	binary.BigEndian.PutUint16(rec[6:8], pf.GreenMax)
	binary.BigEndian.PutUint16(rec[8:10], pf.BlueMax)
	rec[10] = pf.RedShift
	rec[11] = pf.GreenShift
	rec[12] = pf.BlueShift
	return rec
}

// parsePixelFormat decodes a 13-byte wire record into a PixelFormat.
func parsePixelFormat(rec pixelFormatRecord) PixelFormat {
	return PixelFormat{
		BPP:        rec[0],
		Depth:      rec[1],
		BigEndian:  rec[2]&1 != 0,
		TrueColor:  rec[3]&1 != 0,
		RedMax:     binary.BigEndian.Uint16(rec[4:6]),
		GreenMax:   binary.BigEndian.Uint16(rec[6:8]),
		BlueMax:    binary.BigEndian.Uint16(rec[8:10]),
		RedShift:   rec[10],
		GreenShift: rec[11],
		BlueShift:  rec[12],
	}
}

// readPixelFormatRecord reads the 13-byte pixel format record from the wire.
func readPixelFormatRecord(r io.Reader, op string) (pixelFormatRecord, error) {
	var rec pixelFormatRecord
	if err := readFull(r, op, rec[:]); err != nil {
		return rec, err
	}
	return rec, nil
}

// Supported 32-bit true color pixel format presets. The preset name spells
// the in-memory byte order of one pixel, which the BigEndian flag and the
// channel shifts together determine.
var (
	// PixelFormat32BitBGRA is little endian with red in bits 16-23.
	PixelFormat32BitBGRA = &PixelFormat{
		BPP:        32,
		Depth:      24,
		BigEndian:  false,
		TrueColor:  true,
		RedMax:     255,
		GreenMax:   255,
		BlueMax:    255,
		RedShift:   16,
		GreenShift: 8,
		BlueShift:  0,
	}

	// PixelFormat32BitRGBA is little endian with red in bits 0-7. This is the
	// fallback format requested when a server announces an unsupported format.
	PixelFormat32BitRGBA = &PixelFormat{
		BPP:        32,
		Depth:      24,
		BigEndian:  false,
		TrueColor:  true,
		RedMax:     255,
		GreenMax:   255,
		BlueMax:    255,
		RedShift:   0,
		GreenShift: 8,
		BlueShift:  16,
	}

	// PixelFormat32BitARGB is big endian with red in bits 16-23.
	PixelFormat32BitARGB = &PixelFormat{
		BPP:        32,
		Depth:      24,
		BigEndian:  true,
		TrueColor:  true,
		RedMax:     255,
		GreenMax:   255,
		BlueMax:    255,
		RedShift:   16,
		GreenShift: 8,
		BlueShift:  0,
	}

	// PixelFormat32BitABGR is big endian with red in bits 0-7.
	PixelFormat32BitABGR = &PixelFormat{
		BPP:        32,
		Depth:      24,
		BigEndian:  true,
		TrueColor:  true,
		RedMax:     255,
		GreenMax:   255,
		BlueMax:    255,
		RedShift:   0,
		GreenShift: 8,
		BlueShift:  16,
	}
)

// videoModes maps masked wire records to their decoded channel order.
var videoModes = map[pixelFormatRecord]VideoMode{
	PixelFormat32BitBGRA.record(): VideoModeBGRA,
	PixelFormat32BitRGBA.record(): VideoModeRGBA,
	PixelFormat32BitARGB.record(): VideoModeARGB,
	PixelFormat32BitABGR.record(): VideoModeABGR,
}
