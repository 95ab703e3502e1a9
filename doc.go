// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

// Package vncgrab captures screen contents from VNC servers.
//
// The package decodes the framebuffer update subset of the VNC protocol
// defined in RFC 6143 into an in-memory pixel buffer, tracks which parts of
// the framebuffer have actually been received, and recovers physical screen
// boundaries from that coverage. It does not open connections or perform
// the protocol version and security handshakes: it consumes a duplex byte
// stream positioned immediately before the ServerInit message, which keeps
// transport and authentication concerns with the caller.
//
// # Basic Usage
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	conn, err := net.Dial("tcp", "localhost:5900")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer conn.Close()
//	// ... RFB version and security handshake on conn ...
//
//	client, err := vncgrab.NewClient(ctx, conn)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	img, err := client.Screenshot(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	png.Encode(out, img)
//
// # Screen Detection
//
//	screens := client.Video.DetectScreens()
//	for _, screen := range screens {
//		fmt.Printf("%s score=%.0f\n", screen, screen.Score())
//		crop := img.SubImage(screen.Bounds())
//		// ... one image per physical monitor ...
//	}
//
// # Continuous Capture
//
//	// After a first screenshot the session requests incremental updates,
//	// so a capture loop only transfers what changed.
//	for {
//		if err := client.Video.Refresh(ctx, 0, 0, 0, 0); err != nil {
//			break
//		}
//		if _, err := client.Read(ctx); err != nil {
//			break
//		}
//		frame := client.Video.AsRGBA()
//		// ... consume frame ...
//	}
//
// # Error Handling
//
//	if vncgrab.IsVNCError(err, vncgrab.ErrUnsupportedEncoding) {
//		log.Printf("server ignored the encoding restriction: %v", err)
//	}
//
// Every error that reaches the caller from a read path is fatal for the
// session: the protocol has no resynchronization primitive, so after a
// failed or cancelled read the stream position cannot be trusted and the
// session refuses further operations.
package vncgrab
