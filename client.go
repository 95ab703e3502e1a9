// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncgrab

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
)

// MaxRectanglesPerUpdate caps the number of rectangles accepted in a single
// framebuffer update message.
const MaxRectanglesPerUpdate = 10000

// UpdateType identifies a server-to-client update message.
type UpdateType uint8

// UpdateTypeVideo is a framebuffer update carrying pixel rectangles. It is
// the only update type this library negotiates for; everything else is
// fatal because the protocol gives no way to skip an unknown message body.
const UpdateTypeVideo UpdateType = 0

// String returns the string representation of the update type.
func (t UpdateType) String() string {
	switch t {
	case UpdateTypeVideo:
		return "video"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ClientConfig configures VNC capture session behavior.
type ClientConfig struct {
	// Logger specifies the logger instance to use for session logging.
	Logger Logger

	// MaxRectanglesPerUpdate caps the rectangle count accepted in a single
	// framebuffer update. Zero means the package default.
	MaxRectanglesPerUpdate int
}

// ClientOption represents a functional option for configuring a capture
// session.
type ClientOption func(*ClientConfig)

// WithLogger sets the logger instance for session logging.
// If not specified, logging is disabled.
func WithLogger(logger Logger) ClientOption {
	return func(config *ClientConfig) {
		config.Logger = logger
	}
}

// WithMaxRectanglesPerUpdate overrides the per-update rectangle cap.
func WithMaxRectanglesPerUpdate(max int) ClientOption {
	return func(config *ClientConfig) {
		config.MaxRectanglesPerUpdate = max
	}
}

// Client is a VNC capture session over an established duplex byte stream.
//
// The stream must be positioned immediately before the server's ServerInit
// message: transport establishment, protocol version negotiation, and the
// security handshake are the caller's concern. The session drives the
// stream with strictly sequential reads, so exactly one goroutine may call
// Read, Screenshot, or ScreenshotRegion at a time. The pixel state under
// Video remains safe to inspect concurrently.
//
// After a fatal protocol error or a cancelled operation the stream position
// is indeterminate and the session refuses further work; the caller should
// close the transport, which also unblocks any abandoned stream operation.
type Client struct {
	// Video holds the session's decoded pixel state.
	Video *Video

	config *ClientConfig
	logger Logger
}

// NewClient establishes a capture session by consuming the ServerInit
// message and negotiating the pixel format and encodings.
//
// Parameters:
//   - ctx: Context for cancelling a negotiation that hangs mid-stream
//   - stream: Duplex byte stream positioned before ServerInit
//   - opts: Functional options for session configuration
//
// Returns:
//   - *Client: The established session
//   - error: Validation, IncompleteStream, or Network error when the server
//     init message cannot be consumed
//
// Example usage:
//
//	conn, err := net.Dial("tcp", "host:5900")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer conn.Close()
//	// ... RFB version and security handshake on conn ...
//
//	client, err := vncgrab.NewClient(ctx, conn, vncgrab.WithLogger(logger))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	img, err := client.Screenshot(ctx)
func NewClient(ctx context.Context, stream io.ReadWriter, opts ...ClientOption) (*Client, error) {
	config := &ClientConfig{}
	for _, opt := range opts {
		opt(config)
	}

	logger := config.Logger
	if logger == nil {
		logger = &NoOpLogger{}
	}

	var video *Video
	err := runWithContext(ctx, func() error {
		v, err := newVideo(stream, logger, newInputValidator())
		video = v
		return err
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, networkError("NewClient", "negotiation abandoned mid-stream", err)
		}
		return nil, err
	}

	return &Client{
		Video:  video,
		config: config,
		logger: logger,
	}, nil
}

// Read consumes exactly one update message from the stream and applies it to
// the session's pixel state. The returned update type is meaningful only
// when the error is nil.
//
// Any update type other than video fails immediately, before further bytes
// are consumed. Every error from Read is fatal: the stream position is no
// longer trustworthy and the session is marked failed.
//
// Parameters:
//   - ctx: Context for cancellation. Cancelling mid-message leaves the
//     stream indeterminate and marks the session failed.
//
// Returns:
//   - UpdateType: The type of the consumed update message
//   - error: InvalidUpdateType, UnsupportedEncoding, IncompleteStream,
//     Validation, Encoding, Network, or Session error
func (c *Client) Read(ctx context.Context) (UpdateType, error) {
	const op = "Client.Read"

	v := c.Video
	if err := v.usable(op); err != nil {
		return 0, err
	}

	var updateType UpdateType
	err := runWithContext(ctx, func() error {
		t, err := c.readUpdate()
		updateType = t
		return err
	})
	if err != nil {
		v.abort()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, networkError(op, "read abandoned mid-stream", err)
		}
		return 0, err
	}
	return updateType, nil
}

// readUpdate reads one update message synchronously.
func (c *Client) readUpdate() (UpdateType, error) {
	const op = "Client.Read"

	v := c.Video
	code, err := readInt(v.stream, op, 1)
	if err != nil {
		return 0, err
	}

	updateType := UpdateType(code) // #nosec G115 - single byte read
	if updateType != UpdateTypeVideo {
		return updateType, invalidUpdateTypeError(op,
			fmt.Sprintf("server sent unsupported update type %d", code), nil)
	}

	if _, err := readInt(v.stream, op, 1); err != nil { // padding
		return updateType, err
	}
	count, err := readInt(v.stream, op, 2)
	if err != nil {
		return updateType, err
	}

	max := c.config.MaxRectanglesPerUpdate
	if max <= 0 {
		max = MaxRectanglesPerUpdate
	}
	if int(count) > max {
		return updateType, validationError(op,
			fmt.Sprintf("update rectangle count %d exceeds maximum %d", count, max), nil)
	}

	c.logger.Debug("Reading framebuffer update",
		Field{Key: "rectangles", Value: count})

	for i := uint32(0); i < count; i++ {
		if err := v.readRectangle(); err != nil {
			return updateType, err
		}
	}
	return updateType, nil
}

// Screenshot captures a complete frame.
//
// The pixel buffer is discarded, a full non-incremental update is requested,
// and update messages are consumed until every pixel has been covered, no
// matter how many rectangles or messages the server splits the frame
// across. The result is the frame in canonical RGBA order.
func (c *Client) Screenshot(ctx context.Context) (*image.RGBA, error) {
	return c.ScreenshotRegion(ctx, 0, 0, 0, 0)
}

// ScreenshotRegion captures one region of the frame. Zero width or height
// means the full extent along that axis, so ScreenshotRegion(ctx, 0, 0, 0, 0)
// is a whole-frame capture. The result image is anchored at the region's
// top-left corner.
func (c *Client) ScreenshotRegion(ctx context.Context, x, y, width, height int) (*image.RGBA, error) {
	const op = "Client.ScreenshotRegion"

	v := c.Video
	if err := v.usable(op); err != nil {
		return nil, err
	}
	if err := v.validator.ValidateCaptureRegion(x, y, width, height, v.width, v.height); err != nil {
		return nil, err
	}
	if width == 0 {
		width = int(v.width) - x
	}
	if height == 0 {
		height = int(v.height) - y
	}

	v.clear()
	if err := v.Refresh(ctx, x, y, width, height); err != nil {
		return nil, err
	}

	for {
		updateType, err := c.Read(ctx)
		if err != nil {
			return nil, err
		}
		if updateType == UpdateTypeVideo && v.regionComplete(x, y, width, height) {
			break
		}
	}

	full := v.AsRGBA()
	if x == 0 && y == 0 && width == int(v.width) && height == int(v.height) {
		return full, nil
	}

	crop := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(crop, crop.Bounds(), full, image.Pt(x, y), draw.Src)
	return crop, nil
}

// Close releases session resources. The underlying transport belongs to the
// caller and is left open.
func (c *Client) Close() error {
	return c.Video.Close()
}

// runWithContext runs fn in a goroutine and waits for it or for the context.
// When the context wins, the goroutine is abandoned still blocked on the
// stream; closing the transport is the only way to release it, which is why
// a cancelled operation permanently fails the session.
func runWithContext(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
