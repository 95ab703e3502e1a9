// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncgrab

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"
)

// MockCaptureServer provides a simple mock VNC server for testing. It speaks
// the stream contract of this library: the conversation starts directly at
// ServerInit, with transport setup and the security handshake already done.
type MockCaptureServer struct {
	listener net.Listener
	addr     string
	wg       sync.WaitGroup
	stop     chan struct{}

	// Configuration
	FrameWidth  uint16
	FrameHeight uint16
	DesktopName string
}

// NewMockCaptureServer creates a new mock capture server.
func NewMockCaptureServer() *MockCaptureServer {
	return &MockCaptureServer{
		FrameWidth:  64,
		FrameHeight: 48,
		DesktopName: "Mock Capture Server",
		stop:        make(chan struct{}),
	}
}

// Start starts the mock server on a random available port.
func (m *MockCaptureServer) Start() error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}

	m.listener = listener
	m.addr = listener.Addr().String()

	m.wg.Add(1)
	go m.serve()

	return nil
}

// Stop stops the mock server.
func (m *MockCaptureServer) Stop() {
	close(m.stop)
	if m.listener != nil {
		m.listener.Close()
	}
	m.wg.Wait()
}

// Addr returns the server address.
func (m *MockCaptureServer) Addr() string {
	return m.addr
}

func (m *MockCaptureServer) serve() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stop:
			return
		default:
		}

		conn, err := m.listener.Accept()
		if err != nil {
			select {
			case <-m.stop:
				return
			default:
				continue
			}
		}

		go m.handleConnection(conn)
	}
}

func (m *MockCaptureServer) handleConnection(conn net.Conn) {
	defer conn.Close()

	// Set a reasonable timeout
	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return
	}

	if err := m.sendServerInit(conn); err != nil {
		return
	}

	m.handleMessages(conn)
}

func (m *MockCaptureServer) sendServerInit(conn net.Conn) error {
	if err := binary.Write(conn, binary.BigEndian, m.FrameWidth); err != nil {
		return err
	}
	if err := binary.Write(conn, binary.BigEndian, m.FrameHeight); err != nil {
		return err
	}

	// 32-bit true color with red in bits 16-23: bgra byte order in memory.
	pixelFormat := []byte{
		32, 24, 0, 1, // BPP, Depth, BigEndian, TrueColor
		0, 255, 0, 255, 0, 255, // RedMax, GreenMax, BlueMax
		16, 8, 0, // RedShift, GreenShift, BlueShift
		0, 0, 0, // Padding
	}
	if _, err := conn.Write(pixelFormat); err != nil {
		return err
	}

	nameBytes := []byte(m.DesktopName)
	nameBytesLen := uint32(len(nameBytes)) // #nosec G115 - Test code with short names
	if err := binary.Write(conn, binary.BigEndian, nameBytesLen); err != nil {
		return err
	}
	_, err := conn.Write(nameBytes)
	return err
}

func (m *MockCaptureServer) handleMessages(conn net.Conn) {
	for {
		select {
		case <-m.stop:
			return
		default:
		}

		// Short read timeout so the stop channel is checked regularly.
		if err := conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
			return
		}

		var msgType uint8
		if err := binary.Read(conn, binary.BigEndian, &msgType); err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return
		}

		// A message has started; give its body a full deadline.
		if err := conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return
		}

		switch msgType {
		case 0: // SetPixelFormat
			if _, err := io.ReadFull(conn, make([]byte, 19)); err != nil {
				return
			}
		case 2: // SetEncodings
			header := make([]byte, 3)
			if _, err := io.ReadFull(conn, header); err != nil {
				return
			}
			count := binary.BigEndian.Uint16(header[1:3])
			if _, err := io.ReadFull(conn, make([]byte, 4*int(count))); err != nil {
				return
			}
		case 3: // FramebufferUpdateRequest
			if _, err := io.ReadFull(conn, make([]byte, 9)); err != nil {
				return
			}
			if err := m.sendFramebufferUpdate(conn); err != nil {
				return
			}
		default:
			// The body length of an unknown client message is unknowable.
			return
		}
	}
}

// sendFramebufferUpdate sends the full frame split across two raw
// rectangles, the way real servers fragment large updates.
func (m *MockCaptureServer) sendFramebufferUpdate(conn net.Conn) error {
	header := []byte{
		0,    // Message type (FramebufferUpdate)
		0,    // Padding
		0, 2, // Number of rectangles
	}
	if _, err := conn.Write(header); err != nil {
		return err
	}

	topHeight := m.FrameHeight / 2
	if err := m.sendRawRect(conn, 0, 0, m.FrameWidth, topHeight); err != nil {
		return err
	}
	return m.sendRawRect(conn, 0, topHeight, m.FrameWidth, m.FrameHeight-topHeight)
}

func (m *MockCaptureServer) sendRawRect(conn net.Conn, x, y, width, height uint16) error {
	header := make([]byte, 0, 12)
	header = binary.BigEndian.AppendUint16(header, x)
	header = binary.BigEndian.AppendUint16(header, y)
	header = binary.BigEndian.AppendUint16(header, width)
	header = binary.BigEndian.AppendUint16(header, height)
	header = binary.BigEndian.AppendUint32(header, uint32(EncodingTypeRaw))
	if _, err := conn.Write(header); err != nil {
		return err
	}

	// Position-coded bgra pixels with a zero alpha byte: a decoded image
	// must get its coverage marker from the decoder, not from the server.
	pixelData := make([]byte, int(width)*int(height)*4)
	for row := 0; row < int(height); row++ {
		for col := 0; col < int(width); col++ {
			off := (row*int(width) + col) * 4
			pixelData[off] = byte(col)            // Blue
			pixelData[off+1] = byte(int(y) + row) // Green
			pixelData[off+2] = 0xAB               // Red
			pixelData[off+3] = 0                  // Alpha
		}
	}
	_, err := conn.Write(pixelData)
	return err
}

// StartMockCaptureServer is a helper function to start a mock server for
// testing.
func StartMockCaptureServer() (*MockCaptureServer, error) {
	server := NewMockCaptureServer()
	if err := server.Start(); err != nil {
		return nil, err
	}

	// Give the server a moment to start
	time.Sleep(10 * time.Millisecond)

	return server, nil
}
