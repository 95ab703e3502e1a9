// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncgrab

import (
	"errors"
	"fmt"
	"io"
)

// readFull fills buf from the stream, mapping a truncated stream to a
// structured incomplete-stream error. The protocol has no resynchronization
// primitive, so callers treat any failure here as fatal for the session.
func readFull(r io.Reader, op string, buf []byte) error {
	n, err := io.ReadFull(r, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return incompleteStreamError(op,
				fmt.Sprintf("stream ended after %d of %d bytes", n, len(buf)), err)
		}
		return networkError(op, "read failed", err)
	}
	return nil
}

// readInt reads a big-endian unsigned integer of 1, 2, or 4 bytes.
func readInt(r io.Reader, op string, size int) (uint32, error) {
	switch size {
	case 1, 2, 4:
	default:
		return 0, validationError(op, fmt.Sprintf("unsupported integer width %d", size), nil)
	}

	buf := make([]byte, size)
	if err := readFull(r, op, buf); err != nil {
		return 0, err
	}

	var value uint32
	for _, b := range buf {
		value = value<<8 | uint32(b)
	}
	return value, nil
}

// readText reads a 4-byte length prefix followed by that many bytes of UTF-8
// text. The length is validated before allocation so a hostile prefix cannot
// force an oversized buffer.
func readText(r io.Reader, op string, v *InputValidator) (string, error) {
	length, err := readInt(r, op, 4)
	if err != nil {
		return "", err
	}
	if err := v.ValidateTextLength(length); err != nil {
		return "", err
	}

	buf := make([]byte, length)
	if err := readFull(r, op, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// writeFull writes data to the stream, mapping failures to structured network
// errors.
func writeFull(w io.Writer, op string, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return networkError(op, "write failed", err)
	}
	return nil
}
