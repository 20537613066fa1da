package utils

import "testing"

func TestMaskPhoneNumber(t *testing.T) {
	tests := []struct {
		phone string
		want  string
	}{
		{"+1234567890", "+12****7890"},
		{"+12345", "****"},
		{"", "****"},
	}

	for _, tt := range tests {
		if got := MaskPhoneNumber(tt.phone); got != tt.want {
			t.Errorf("MaskPhoneNumber(%q) = %q, want %q", tt.phone, got, tt.want)
		}
	}
}

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret("vk1.a.abcdefghijklmnop"); got != "****mnop" {
		t.Errorf("Unexpected mask: %s", got)
	}
	if got := MaskSecret("short"); got != "****" {
		t.Errorf("Unexpected mask for short secret: %s", got)
	}
}
