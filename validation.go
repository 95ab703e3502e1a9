// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncgrab

import (
	"fmt"
	"math"
	"unicode"
	"unicode/utf8"
)

// InputValidator validates server-supplied protocol values before they drive
// allocation or buffer arithmetic.
type InputValidator struct{}

// newInputValidator creates a new input validator for network input data.
func newInputValidator() *InputValidator {
	return &InputValidator{}
}

// ValidateFramebufferDimensions validates framebuffer dimensions.
func (iv *InputValidator) ValidateFramebufferDimensions(width, height uint16) error {
	if width == 0 || height == 0 {
		return validationError("InputValidator.ValidateFramebufferDimensions",
			"framebuffer dimensions cannot be zero", nil)
	}

	const maxDimension = 32768
	if width > maxDimension || height > maxDimension {
		return validationError("InputValidator.ValidateFramebufferDimensions",
			fmt.Sprintf("framebuffer dimensions too large: %dx%d (max %d)",
				width, height, maxDimension), nil)
	}

	area := uint64(width) * uint64(height)
	const maxArea = 1024 * 1024 * 1024
	if area > maxArea {
		return validationError("InputValidator.ValidateFramebufferDimensions",
			fmt.Sprintf("framebuffer area too large: %d pixels (max %d)",
				area, maxArea), nil)
	}

	return nil
}

// ValidateRectangle validates rectangle bounds against framebuffer dimensions.
func (iv *InputValidator) ValidateRectangle(x, y, width, height, fbWidth, fbHeight uint16) error {
	if width == 0 || height == 0 {
		return validationError("InputValidator.ValidateRectangle",
			"rectangle dimensions cannot be zero", nil)
	}

	if x > math.MaxUint16-width || y > math.MaxUint16-height {
		return validationError("InputValidator.ValidateRectangle",
			"rectangle coordinates would cause integer overflow", nil)
	}

	if x+width > fbWidth || y+height > fbHeight {
		return validationError("InputValidator.ValidateRectangle",
			fmt.Sprintf("rectangle (%d,%d,%d,%d) exceeds framebuffer bounds (%d,%d)",
				x, y, width, height, fbWidth, fbHeight), nil)
	}

	return nil
}

// ValidateCaptureRegion validates a caller-supplied capture region against
// framebuffer dimensions. Zero width or height is allowed and means the full
// extent along that axis.
func (iv *InputValidator) ValidateCaptureRegion(x, y, width, height int, fbWidth, fbHeight uint16) error {
	if x < 0 || y < 0 || width < 0 || height < 0 {
		return validationError("InputValidator.ValidateCaptureRegion",
			fmt.Sprintf("capture region (%d,%d,%d,%d) has negative components",
				x, y, width, height), nil)
	}

	if x > math.MaxUint16 || y > math.MaxUint16 || width > math.MaxUint16 || height > math.MaxUint16 {
		return validationError("InputValidator.ValidateCaptureRegion",
			fmt.Sprintf("capture region (%d,%d,%d,%d) exceeds protocol range",
				x, y, width, height), nil)
	}

	if width == 0 {
		width = int(fbWidth) - x
	}
	if height == 0 {
		height = int(fbHeight) - y
	}
	if width <= 0 || height <= 0 || x+width > int(fbWidth) || y+height > int(fbHeight) {
		return validationError("InputValidator.ValidateCaptureRegion",
			fmt.Sprintf("capture region (%d,%d,%d,%d) exceeds framebuffer bounds (%d,%d)",
				x, y, width, height, fbWidth, fbHeight), nil)
	}

	return nil
}

// ValidateTextLength validates a text length prefix before allocation.
// Zero is allowed: servers may announce an empty desktop name.
func (iv *InputValidator) ValidateTextLength(length uint32) error {
	const maxTextLength = 1024 * 1024
	if length > maxTextLength {
		return validationError("InputValidator.ValidateTextLength",
			fmt.Sprintf("text length %d exceeds maximum %d", length, maxTextLength), nil)
	}

	return nil
}

// ValidateCompressedLength validates a compressed payload length prefix
// before allocation.
func (iv *InputValidator) ValidateCompressedLength(length uint32) error {
	const maxCompressedLength = 256 * 1024 * 1024
	if length > maxCompressedLength {
		return validationError("InputValidator.ValidateCompressedLength",
			fmt.Sprintf("compressed length %d exceeds maximum %d", length, maxCompressedLength), nil)
	}

	return nil
}

// ValidateTextData validates received text data.
func (iv *InputValidator) ValidateTextData(text string, maxLength int) error {
	if len(text) > maxLength {
		return validationError("InputValidator.ValidateTextData",
			fmt.Sprintf("text length %d exceeds maximum %d", len(text), maxLength), nil)
	}

	if !utf8.ValidString(text) {
		return validationError("InputValidator.ValidateTextData",
			"text contains invalid UTF-8 sequences", nil)
	}

	return nil
}

// SanitizeText sanitizes text data by removing or replacing potentially
// dangerous characters.
func (iv *InputValidator) SanitizeText(text string) string {
	if text == "" {
		return text
	}

	runes := []rune(text)
	sanitized := make([]rune, 0, len(runes))

	for _, r := range runes {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			sanitized = append(sanitized, r)
		case r < 32:
			sanitized = append(sanitized, ' ')
		case unicode.IsPrint(r):
			sanitized = append(sanitized, r)
		default:
			sanitized = append(sanitized, '�')
		}
	}

	return string(sanitized)
}
