// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

// vncsnap captures a one-shot screenshot from a VNC server and writes it
// as a PNG file.
//
// The tool dials the server, performs a minimal RFB 3.8 handshake without
// authentication, and hands the established stream to the capture library.
// Detected physical screens can be listed or used to crop the output, and
// the result can be bounded to a thumbnail size.
package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"net"
	"os"
	"time"

	"github.com/nfnt/resize"
	"github.com/spf13/pflag"

	"github.com/tenthirtyam/vncgrab"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		output    string
		maxEdge   int
		detect    bool
		screenIdx int
		region    string
		timeout   time.Duration
		verbose   bool
	)

	flagSet := pflag.NewFlagSet("vncsnap", pflag.ContinueOnError)
	flagSet.StringVarP(&output, "output", "o", "screenshot.png", "output PNG path")
	flagSet.IntVar(&maxEdge, "max", 0, "bound the longest output edge in pixels (0 keeps full size)")
	flagSet.BoolVar(&detect, "detect", false, "print detected screens")
	flagSet.IntVar(&screenIdx, "screen", -1, "crop the output to the Nth detected screen")
	flagSet.StringVar(&region, "region", "", "crop the capture to a region given as x,y,width,height")
	flagSet.DurationVar(&timeout, "timeout", 30*time.Second, "overall capture deadline")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log protocol progress to stderr")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: vncsnap [flags] host:port\n\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return fmt.Errorf("expected exactly one server address, got %d arguments", flagSet.NArg())
	}
	if region != "" && screenIdx >= 0 {
		return fmt.Errorf("--region and --screen are mutually exclusive")
	}
	addr := flagSet.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	// The capture library abandons stream operations on cancellation; the
	// socket deadline is what actually unblocks them.
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	if err := handshake(conn); err != nil {
		return fmt.Errorf("handshake with %s: %w", addr, err)
	}

	var opts []vncgrab.ClientOption
	if verbose {
		opts = append(opts, vncgrab.WithLogger(&vncgrab.StandardLogger{}))
	}

	client, err := vncgrab.NewClient(ctx, conn, opts...)
	if err != nil {
		return fmt.Errorf("negotiate with %s: %w", addr, err)
	}
	defer client.Close()

	width, height := client.Video.GetFrameBufferSize()
	if verbose {
		fmt.Fprintf(os.Stderr, "connected to %q, framebuffer %dx%d\n",
			client.Video.GetDesktopName(), width, height)
	}

	var capture *image.RGBA
	if region != "" {
		var x, y, w, h int
		if _, err := fmt.Sscanf(region, "%d,%d,%d,%d", &x, &y, &w, &h); err != nil {
			return fmt.Errorf("parse region %q: %w", region, err)
		}
		capture, err = client.ScreenshotRegion(ctx, x, y, w, h)
	} else {
		capture, err = client.Screenshot(ctx)
	}
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	var img image.Image = capture
	if detect || screenIdx >= 0 {
		screens := client.Video.DetectScreens()
		if detect {
			for i, screen := range screens {
				fmt.Printf("screen %d: %s score=%.0f\n", i, screen, screen.Score())
			}
		}
		if screenIdx >= 0 {
			if screenIdx >= len(screens) {
				return fmt.Errorf("screen %d requested but only %d detected", screenIdx, len(screens))
			}
			img = capture.SubImage(screens[screenIdx].Bounds())
		}
	}

	if maxEdge > 0 {
		img = resize.Thumbnail(uint(maxEdge), uint(maxEdge), img, resize.NearestNeighbor)
	}

	if err := writePNG(output, img); err != nil {
		return err
	}

	bounds := img.Bounds()
	fmt.Printf("wrote %s (%dx%d)\n", output, bounds.Dx(), bounds.Dy())
	return nil
}

// writePNG saves the image, leaving no partial file behind on encode errors.
func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// handshake performs the RFB 3.8 version and security negotiation for
// servers that allow unauthenticated access, leaving the stream positioned
// at the ServerInit message.
func handshake(conn net.Conn) error {
	versionMsg := make([]byte, 12)
	if _, err := io.ReadFull(conn, versionMsg); err != nil {
		return fmt.Errorf("read server version: %w", err)
	}

	var major, minor int
	if n, err := fmt.Sscanf(string(versionMsg), "RFB %03d.%03d\n", &major, &minor); n != 2 || err != nil {
		return fmt.Errorf("unrecognized server version %q", string(versionMsg))
	}
	if major < 3 || (major == 3 && minor < 8) {
		return fmt.Errorf("server speaks RFB %d.%d, need at least 3.8", major, minor)
	}

	if _, err := io.WriteString(conn, "RFB 003.008\n"); err != nil {
		return fmt.Errorf("send version: %w", err)
	}

	countBuf := make([]byte, 1)
	if _, err := io.ReadFull(conn, countBuf); err != nil {
		return fmt.Errorf("read security type count: %w", err)
	}
	if countBuf[0] == 0 {
		return fmt.Errorf("server refused connection: %s", readReason(conn))
	}

	types := make([]byte, countBuf[0])
	if _, err := io.ReadFull(conn, types); err != nil {
		return fmt.Errorf("read security types: %w", err)
	}

	const securityTypeNone = 1
	supported := false
	for _, t := range types {
		if t == securityTypeNone {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("server requires authentication (security types %v)", types)
	}

	if _, err := conn.Write([]byte{securityTypeNone}); err != nil {
		return fmt.Errorf("send security type: %w", err)
	}

	resultBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, resultBuf); err != nil {
		return fmt.Errorf("read security result: %w", err)
	}
	if result := uint32(resultBuf[0])<<24 | uint32(resultBuf[1])<<16 | uint32(resultBuf[2])<<8 | uint32(resultBuf[3]); result != 0 {
		return fmt.Errorf("security handshake failed: %s", readReason(conn))
	}

	// ClientInit, shared flag set so other clients stay connected.
	if _, err := conn.Write([]byte{1}); err != nil {
		return fmt.Errorf("send client init: %w", err)
	}
	return nil
}

// readReason reads the length-prefixed failure reason servers send after a
// refusal. Best effort: a reason is better than nothing, garbage is not.
func readReason(conn net.Conn) string {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, lenBuf); err != nil {
		return "no reason given"
	}
	length := uint32(lenBuf[0])<<24 | uint32(lenBuf[1])<<16 | uint32(lenBuf[2])<<8 | uint32(lenBuf[3])
	if length == 0 || length > 4096 {
		return "no reason given"
	}
	reason := make([]byte, length)
	if _, err := io.ReadFull(conn, reason); err != nil {
		return "no reason given"
	}
	return string(reason)
}
