// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncgrab

import "testing"

func TestVideoMode_ChannelIndex(t *testing.T) {
	tests := []struct {
		mode VideoMode
		r    int
		g    int
		b    int
		a    int
	}{
		{VideoModeBGRA, 2, 1, 0, 3},
		{VideoModeRGBA, 0, 1, 2, 3},
		{VideoModeARGB, 1, 2, 3, 0},
		{VideoModeABGR, 3, 2, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			if got := tt.mode.channelIndex('r'); got != tt.r {
				t.Errorf("channelIndex('r') = %d, want %d", got, tt.r)
			}
			if got := tt.mode.channelIndex('g'); got != tt.g {
				t.Errorf("channelIndex('g') = %d, want %d", got, tt.g)
			}
			if got := tt.mode.channelIndex('b'); got != tt.b {
				t.Errorf("channelIndex('b') = %d, want %d", got, tt.b)
			}
			if got := tt.mode.channelIndex('a'); got != tt.a {
				t.Errorf("channelIndex('a') = %d, want %d", got, tt.a)
			}
		})
	}
}

func TestVideoMode_ChannelIndexMissing(t *testing.T) {
	if got := VideoMode("rgb").channelIndex('a'); got != -1 {
		t.Errorf("channelIndex('a') on rgb = %d, want -1", got)
	}
}
