// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncgrab

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
)

// bytesPerPixel is fixed by the negotiated 32-bit true color formats.
const bytesPerPixel = 4

// maxDesktopNameLength bounds the desktop name announced by the server.
const maxDesktopNameLength = 1024 * 1024

// Rectangle describes the position and size of one update rectangle within
// the framebuffer. The payload that follows the header on the wire is decoded
// immediately and never retained.
type Rectangle struct {
	// X is the horizontal position of the rectangle's left edge.
	X uint16

	// Y is the vertical position of the rectangle's top edge.
	Y uint16

	// Width is the rectangle width in pixels.
	Width uint16

	// Height is the rectangle height in pixels.
	Height uint16
}

// pixelBytes returns the size of the rectangle's decoded payload.
func (r *Rectangle) pixelBytes() int {
	return int(r.Width) * int(r.Height) * bytesPerPixel
}

// Video owns the decoded pixel state of one VNC session.
//
// The pixel buffer is a flat byte slice of height rows, each width pixels of
// 4 bytes in the negotiated channel order. It is allocated lazily when the
// first rectangle is decoded and its dimensions never change after
// negotiation. The byte at the mode's 'a' channel position is not
// transparency: the decoder forces it to 255 whenever a rectangle covers
// that pixel, so it marks which pixels have been written at least once.
// Screen detection and completeness tracking are built on that marker.
//
// All protocol reads are strictly sequential against one ordered stream, so
// a session supports exactly one logical reader. The mutex guards the pixel
// buffer and the session state flags, which makes the snapshot accessors
// (AsRGBA, IsComplete, AlphaMask, DetectScreens) safe to call concurrently
// with the reader. It does not make concurrent readers safe.
type Video struct {
	stream    io.ReadWriter
	logger    Logger
	validator *InputValidator

	// Mutex for protecting the pixel buffer and session state flags
	mu     sync.RWMutex
	data   []uint8
	failed bool
	closed bool

	// Negotiated state, fixed for the session lifetime.
	width       uint16
	height      uint16
	desktopName string
	pixelFormat PixelFormat
	mode        VideoMode

	// alphaAt is the byte offset of the coverage marker within each pixel.
	alphaAt int

	// encs holds the announced encodings in preference order; byType is the
	// dispatch table for incoming rectangles.
	encs   []Encoding
	byType map[int32]Encoding
	zlib   *ZlibEncoding
}

// newVideo consumes the ServerInit message from the stream and establishes
// the session's pixel format and encodings.
//
// If the server announces a pixel format outside the supported mode table,
// the session adopts the rgba fallback and asks the server to reformat; the
// unrecognized format is logged and never surfaced as an error. The server
// is then told to restrict itself to the Raw and ZLib encodings, in that
// preference order.
func newVideo(stream io.ReadWriter, logger Logger, validator *InputValidator) (*Video, error) {
	const op = "negotiate"

	logger.Debug("Reading server init message")

	width32, err := readInt(stream, op, 2)
	if err != nil {
		return nil, err
	}
	height32, err := readInt(stream, op, 2)
	if err != nil {
		return nil, err
	}
	width := uint16(width32)
	height := uint16(height32)

	if err := validator.ValidateFramebufferDimensions(width, height); err != nil {
		logger.Error("Invalid framebuffer dimensions received from server",
			Field{Key: "width", Value: width},
			Field{Key: "height", Value: height},
			Field{Key: "error", Value: err})
		return nil, err
	}

	rec, err := readPixelFormatRecord(stream, op)
	if err != nil {
		return nil, err
	}

	var pad [3]byte
	if err := readFull(stream, op, pad[:]); err != nil {
		return nil, err
	}

	name, err := readText(stream, op, validator)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateTextData(name, maxDesktopNameLength); err != nil {
		logger.Warn("Desktop name failed validation, sanitizing",
			Field{Key: "error", Value: err})
		name = validator.SanitizeText(name)
	}

	v := &Video{
		stream:      stream,
		logger:      logger,
		validator:   validator,
		width:       width,
		height:      height,
		desktopName: name,
		zlib:        &ZlibEncoding{},
	}
	v.encs = []Encoding{&RawEncoding{}, v.zlib}
	v.byType = make(map[int32]Encoding, len(v.encs))
	for _, enc := range v.encs {
		v.byType[enc.Type()] = enc
	}

	mode, ok := rec.videoMode()
	if ok {
		v.mode = mode
		v.pixelFormat = parsePixelFormat(rec)
	} else {
		// The format cannot be decoded, so never attempt to. Adopt the rgba
		// fallback and ask the server to reformat before any update arrives.
		recoverable := unrecognizedPixelFormatError(op,
			fmt.Sprintf("no video mode matches pixel format record %x", rec[:]), nil)
		logger.Warn("Server pixel format unsupported, requesting fallback",
			Field{Key: "record", Value: fmt.Sprintf("%x", rec[:])},
			Field{Key: "fallback_mode", Value: VideoModeRGBA.String()},
			Field{Key: "error", Value: recoverable})

		v.mode = VideoModeRGBA
		v.pixelFormat = *PixelFormat32BitRGBA
		if err := v.sendPixelFormat(PixelFormat32BitRGBA); err != nil {
			return nil, err
		}
	}
	v.alphaAt = v.mode.channelIndex('a')

	if err := v.sendEncodings(v.encs); err != nil {
		return nil, err
	}

	logger.Info("Video session negotiated",
		Field{Key: "desktop_name", Value: v.desktopName},
		Field{Key: "width", Value: v.width},
		Field{Key: "height", Value: v.height},
		Field{Key: "mode", Value: v.mode.String()})

	return v, nil
}

// sendPixelFormat sends a SetPixelFormat message requesting the given format
// for all subsequent framebuffer updates.
func (v *Video) sendPixelFormat(format *PixelFormat) error {
	v.logger.Debug("Sending set pixel format message",
		Field{Key: "bpp", Value: format.BPP},
		Field{Key: "depth", Value: format.Depth})

	var msg [20]byte
	msg[0] = 0
	rec := format.record()
	copy(msg[4:], rec[:])

	return writeFull(v.stream, "Video.sendPixelFormat", msg[:])
}

// sendEncodings sends a SetEncodings message announcing the encodings this
// session is able to decode, in preference order.
func (v *Video) sendEncodings(encs []Encoding) error {
	encodingTypes := make([]int32, len(encs))
	for i, enc := range encs {
		encodingTypes[i] = enc.Type()
	}
	v.logger.Debug("Sending set encodings message",
		Field{Key: "types", Value: fmt.Sprintf("%v", encodingTypes)})

	data := make([]interface{}, 3+len(encs))
	data[0] = uint8(2)
	data[1] = uint8(0)
	data[2] = uint16(len(encs)) // #nosec G115 - the encoding set is a short fixed list

	for i, enc := range encs {
		data[3+i] = enc.Type()
	}

	var buf bytes.Buffer
	for _, val := range data {
		if err := binary.Write(&buf, binary.BigEndian, val); err != nil {
			return encodingError("Video.sendEncodings", "failed to write encoding data to buffer", err)
		}
	}

	dataLength := 4 + (4 * len(encs))
	return writeFull(v.stream, "Video.sendEncodings", buf.Bytes()[0:dataLength])
}

// Refresh sends a FramebufferUpdateRequest for the given region.
//
// The request is incremental when decoded pixel data already exists, so the
// server only sends what changed since the last update; with no buffer yet
// the request asks for everything in the region. Zero width or height means
// the full extent along that axis. The method returns once the request is
// written: updates arrive later through Read.
//
// Parameters:
//   - ctx: Context for cancellation. Cancelling mid-write leaves the stream
//     indeterminate and marks the session failed.
//   - x, y: The top-left corner of the requested region
//   - width, height: The region size in pixels, zero meaning full extent
//
// Returns:
//   - error: ValidationError for an out-of-range region, NetworkError if the
//     request cannot be sent, SessionError if the session already failed
func (v *Video) Refresh(ctx context.Context, x, y, width, height int) error {
	const op = "Video.Refresh"

	if err := v.usable(op); err != nil {
		return err
	}
	if err := v.validator.ValidateCaptureRegion(x, y, width, height, v.width, v.height); err != nil {
		return err
	}
	if width == 0 {
		width = int(v.width) - x
	}
	if height == 0 {
		height = int(v.height) - y
	}

	incremental := v.hasData()
	v.logger.Debug("Sending framebuffer update request",
		Field{Key: "incremental", Value: incremental},
		Field{Key: "x", Value: x},
		Field{Key: "y", Value: y},
		Field{Key: "width", Value: width},
		Field{Key: "height", Value: height})

	var incrementalByte uint8
	if incremental {
		incrementalByte = 1
	}

	data := []interface{}{
		uint8(3),
		incrementalByte,
		uint16(x), uint16(y), uint16(width), uint16(height), // #nosec G115 - validated against protocol range above
	}

	var buf bytes.Buffer
	for _, val := range data {
		if err := binary.Write(&buf, binary.BigEndian, val); err != nil {
			return encodingError(op, "failed to write request data to buffer", err)
		}
	}

	err := runWithContext(ctx, func() error {
		return writeFull(v.stream, op, buf.Bytes()[0:10])
	})
	if err != nil {
		v.abort()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return networkError(op, "request abandoned mid-write", err)
		}
		return err
	}
	return nil
}

// readRectangle decodes one rectangle header and payload from the stream.
func (v *Video) readRectangle() error {
	const op = "Video.readRectangle"

	var header [12]byte
	if err := readFull(v.stream, op, header[:]); err != nil {
		return err
	}

	var rect Rectangle
	var encodingType int32

	br := bytes.NewReader(header[:])
	data := []interface{}{&rect.X, &rect.Y, &rect.Width, &rect.Height, &encodingType}
	for _, val := range data {
		if err := binary.Read(br, binary.BigEndian, val); err != nil {
			return encodingError(op, "failed to parse rectangle header", err)
		}
	}

	if err := v.validator.ValidateRectangle(rect.X, rect.Y, rect.Width, rect.Height, v.width, v.height); err != nil {
		return err
	}

	enc, ok := v.byType[encodingType]
	if !ok {
		// The payload length of an unknown encoding is unknowable, so the
		// remaining stream cannot be skipped or resynchronized.
		return unsupportedEncodingError(op,
			fmt.Sprintf("server sent unsupported encoding %d", encodingType), nil)
	}

	v.logger.Debug("Decoding rectangle",
		Field{Key: "x", Value: rect.X},
		Field{Key: "y", Value: rect.Y},
		Field{Key: "width", Value: rect.Width},
		Field{Key: "height", Value: rect.Height},
		Field{Key: "encoding", Value: encodingType})

	return enc.Read(v, &rect, v.stream)
}

// blit writes one decoded rectangle payload into the pixel buffer and forces
// the coverage marker across the written region. Allocates the buffer on
// first use.
func (v *Video) blit(rect *Rectangle, payload []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.data == nil {
		v.data = make([]uint8, int(v.width)*int(v.height)*bytesPerPixel)
	}

	stride := int(v.width) * bytesPerPixel
	rowLen := int(rect.Width) * bytesPerPixel
	for row := 0; row < int(rect.Height); row++ {
		src := row * rowLen
		dst := (int(rect.Y)+row)*stride + int(rect.X)*bytesPerPixel
		copy(v.data[dst:dst+rowLen], payload[src:src+rowLen])
		for px := v.alphaAt; px < rowLen; px += bytesPerPixel {
			v.data[dst+px] = 0xFF
		}
	}
}

// hasData reports whether any rectangle has been decoded since the last
// clear.
func (v *Video) hasData() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.data != nil
}

// clear discards the pixel buffer so the next Refresh requests a full,
// non-incremental update.
func (v *Video) clear() {
	v.mu.Lock()
	v.data = nil
	v.mu.Unlock()
}

// abort marks the session permanently failed. Once the stream position is
// indeterminate no further protocol traffic can be trusted.
func (v *Video) abort() {
	v.mu.Lock()
	v.failed = true
	v.mu.Unlock()
}

// usable returns an error if the session is closed or has failed.
func (v *Video) usable(op string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return sessionError(op, "session is closed", nil)
	}
	if v.failed {
		return sessionError(op, "session failed and the stream is desynchronized", nil)
	}
	return nil
}

// AsRGBA returns the pixel buffer converted to canonical R, G, B, A channel
// order as a standalone image. The returned image never aliases the internal
// buffer. Before any rectangle has been decoded the image is fully zero,
// including its coverage markers.
func (v *Video) AsRGBA() *image.RGBA {
	v.mu.RLock()
	defer v.mu.RUnlock()

	img := image.NewRGBA(image.Rect(0, 0, int(v.width), int(v.height)))
	if v.data == nil {
		return img
	}

	if v.mode == VideoModeRGBA {
		copy(img.Pix, v.data)
		return img
	}

	ri := v.mode.channelIndex('r')
	gi := v.mode.channelIndex('g')
	bi := v.mode.channelIndex('b')
	for i := 0; i < len(v.data); i += bytesPerPixel {
		img.Pix[i+0] = v.data[i+ri]
		img.Pix[i+1] = v.data[i+gi]
		img.Pix[i+2] = v.data[i+bi]
		img.Pix[i+3] = v.data[i+v.alphaAt]
	}
	return img
}

// IsComplete reports whether every pixel of the framebuffer has been covered
// by at least one decoded rectangle. False until the first rectangle arrives.
func (v *Video) IsComplete() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.data == nil {
		return false
	}
	for i := v.alphaAt; i < len(v.data); i += bytesPerPixel {
		if v.data[i] != 0xFF {
			return false
		}
	}
	return true
}

// regionComplete reports whether every pixel of the given region has been
// covered by at least one decoded rectangle. The region must be validated.
func (v *Video) regionComplete(x, y, width, height int) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.data == nil {
		return false
	}
	stride := int(v.width) * bytesPerPixel
	for row := y; row < y+height; row++ {
		off := row*stride + x*bytesPerPixel + v.alphaAt
		for px := 0; px < width; px++ {
			if v.data[off+px*bytesPerPixel] != 0xFF {
				return false
			}
		}
	}
	return true
}

// AlphaMask returns a snapshot of the coverage channel. Covered pixels are
// 255, pixels never written are 0.
func (v *Video) AlphaMask() *image.Alpha {
	v.mu.RLock()
	defer v.mu.RUnlock()

	mask := image.NewAlpha(image.Rect(0, 0, int(v.width), int(v.height)))
	if v.data == nil {
		return mask
	}
	for i, j := v.alphaAt, 0; i < len(v.data); i, j = i+bytesPerPixel, j+1 {
		mask.Pix[j] = v.data[i]
	}
	return mask
}

// DetectScreens recovers physical screen boundaries from the coverage mask.
// With no decoded pixel data the result is empty.
func (v *Video) DetectScreens() []Screen {
	return DetectScreens(v.AlphaMask())
}

// Close releases the session's decompression state. The transport is owned
// by the caller and is not touched. Close is idempotent.
func (v *Video) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil
	}
	v.closed = true

	if err := v.zlib.Close(); err != nil {
		return encodingError("Video.Close", "failed to release decompressor", err)
	}
	return nil
}

// GetFrameBufferSize returns the negotiated framebuffer dimensions.
func (v *Video) GetFrameBufferSize() (width, height uint16) {
	return v.width, v.height
}

// GetDesktopName returns the desktop name announced by the server.
func (v *Video) GetDesktopName() string {
	return v.desktopName
}

// GetPixelFormat returns a copy of the negotiated pixel format.
func (v *Video) GetPixelFormat() PixelFormat {
	return v.pixelFormat
}

// Mode returns the negotiated channel order of the pixel buffer.
func (v *Video) Mode() VideoMode {
	return v.mode
}
