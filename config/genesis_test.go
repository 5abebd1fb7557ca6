package config

import "testing"

func TestIsZeroHash(t *testing.T) {
	if !IsZeroHash(ZeroHash) {
		t.Error("ZeroHash should be reported as zero")
	}
	if IsZeroHash("deadbeef") {
		t.Error("a non-zero hash should not be reported as zero")
	}
	if IsZeroHash("000") {
		t.Error("a short all-zero string is not ZeroHash and should not match")
	}
}
