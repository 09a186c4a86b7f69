package models

import "testing"

// NOTE: DB-free; depth classification is pure code shape.

func TestRegionDepthFromCode(t *testing.T) {
	cases := []struct {
		code string
		want RegionDepth
	}{
		{"1100000000", RegionDepthCity},
		{"1111000000", RegionDepthSigungu},
		{"1111010100", RegionDepthDong},
		{"4100000000", RegionDepthCity},
		{"41110", RegionDepthDong}, // malformed length falls through to dong
	}
	for _, tc := range cases {
		if got := RegionDepthFromCode(tc.code); got != tc.want {
			t.Errorf("RegionDepthFromCode(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}
