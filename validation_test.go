// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncgrab

import (
	"strings"
	"testing"
)

func TestValidation_ValidateFramebufferDimensions(t *testing.T) {
	iv := newInputValidator()

	tests := []struct {
		name        string
		width       uint16
		height      uint16
		expectError bool
	}{
		{"standard desktop", 1920, 1080, false},
		{"small framebuffer", 1, 1, false},
		{"maximum dimensions", 32768, 32768, false},
		{"zero width", 0, 600, true},
		{"zero height", 800, 0, true},
		{"both zero", 0, 0, true},
		{"width too large", 32769, 600, true},
		{"height too large", 800, 32769, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := iv.ValidateFramebufferDimensions(tt.width, tt.height)

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !IsVNCError(err, ErrValidation) {
					t.Errorf("error code = %v, want %v", GetErrorCode(err), ErrValidation)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidation_ValidateRectangle(t *testing.T) {
	iv := newInputValidator()

	tests := []struct {
		name        string
		x, y        uint16
		width       uint16
		height      uint16
		fbWidth     uint16
		fbHeight    uint16
		expectError bool
	}{
		{"full framebuffer", 0, 0, 800, 600, 800, 600, false},
		{"interior rectangle", 100, 100, 200, 150, 800, 600, false},
		{"bottom right corner", 799, 599, 1, 1, 800, 600, false},
		{"zero width", 0, 0, 0, 10, 800, 600, true},
		{"zero height", 0, 0, 10, 0, 800, 600, true},
		{"exceeds right edge", 700, 0, 101, 10, 800, 600, true},
		{"exceeds bottom edge", 0, 500, 10, 101, 800, 600, true},
		{"coordinate overflow", 65535, 0, 1, 1, 800, 600, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := iv.ValidateRectangle(tt.x, tt.y, tt.width, tt.height, tt.fbWidth, tt.fbHeight)

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !IsVNCError(err, ErrValidation) {
					t.Errorf("error code = %v, want %v", GetErrorCode(err), ErrValidation)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidation_ValidateCaptureRegion(t *testing.T) {
	iv := newInputValidator()

	tests := []struct {
		name        string
		x, y        int
		width       int
		height      int
		expectError bool
	}{
		{"full frame via zeros", 0, 0, 0, 0, false},
		{"explicit full frame", 0, 0, 800, 600, false},
		{"interior region", 100, 50, 200, 100, false},
		{"zero size means remaining extent", 100, 100, 0, 0, false},
		{"single pixel at far corner", 799, 599, 1, 1, false},
		{"negative x", -1, 0, 10, 10, true},
		{"negative height", 0, 0, 10, -5, true},
		{"origin outside frame", 800, 0, 0, 0, true},
		{"width past right edge", 700, 0, 200, 10, true},
		{"height past bottom edge", 0, 500, 10, 200, true},
		{"beyond protocol range", 70000, 0, 10, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := iv.ValidateCaptureRegion(tt.x, tt.y, tt.width, tt.height, 800, 600)

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !IsVNCError(err, ErrValidation) {
					t.Errorf("error code = %v, want %v", GetErrorCode(err), ErrValidation)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidation_ValidateTextLength(t *testing.T) {
	iv := newInputValidator()

	tests := []struct {
		name        string
		length      uint32
		expectError bool
	}{
		{"zero length", 0, false},
		{"typical name", 32, false},
		{"maximum length", 1024 * 1024, false},
		{"over maximum", 1024*1024 + 1, true},
		{"hostile prefix", 0xFFFFFFFF, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := iv.ValidateTextLength(tt.length)

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !IsVNCError(err, ErrValidation) {
					t.Errorf("error code = %v, want %v", GetErrorCode(err), ErrValidation)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidation_ValidateCompressedLength(t *testing.T) {
	iv := newInputValidator()

	tests := []struct {
		name        string
		length      uint32
		expectError bool
	}{
		{"zero length", 0, false},
		{"typical payload", 64 * 1024, false},
		{"maximum length", 256 * 1024 * 1024, false},
		{"over maximum", 256*1024*1024 + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := iv.ValidateCompressedLength(tt.length)

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !IsVNCError(err, ErrValidation) {
					t.Errorf("error code = %v, want %v", GetErrorCode(err), ErrValidation)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidation_ValidateTextData(t *testing.T) {
	iv := newInputValidator()

	tests := []struct {
		name        string
		text        string
		maxLength   int
		expectError bool
	}{
		{"valid text", "desktop name", 100, false},
		{"empty text", "", 100, false},
		{"unicode text", "рабочий стол", 100, false},
		{"at length limit", strings.Repeat("a", 10), 10, false},
		{"over length limit", strings.Repeat("a", 11), 10, true},
		{"invalid utf8", "bad\xff\xfebytes", 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := iv.ValidateTextData(tt.text, tt.maxLength)

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !IsVNCError(err, ErrValidation) {
					t.Errorf("error code = %v, want %v", GetErrorCode(err), ErrValidation)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidation_SanitizeText(t *testing.T) {
	iv := newInputValidator()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text", "hello world", "hello world"},
		{"empty string", "", ""},
		{"preserved whitespace", "line1\nline2\ttabbed\r", "line1\nline2\ttabbed\r"},
		{"control characters replaced", "bell\x07null\x00", "bell null "},
		{"escape sequence replaced", "\x1b[31mred\x1b[0m", " [31mred [0m"},
		{"unicode preserved", "café", "café"},
		{"non-printable replaced", "del\x7f", "del�"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := iv.SanitizeText(tt.input); got != tt.expected {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
