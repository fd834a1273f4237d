package client

import (
	"errors"
	"testing"
)

func TestParseMediaRef(t *testing.T) {
	tests := []struct {
		in          string
		wantChannel string
		wantMedia   string
	}{
		{in: "548", wantMedia: "548"},
		{in: " lz:548 ", wantChannel: "lz", wantMedia: "548"},
		{in: "xiao_bao/71977", wantChannel: "xiao_bao", wantMedia: "71977"},
	}
	for _, tt := range tests {
		ch, media, err := ParseMediaRef(tt.in)
		if err != nil {
			t.Fatalf("ParseMediaRef(%q) error=%v", tt.in, err)
		}
		if ch != tt.wantChannel || media != tt.wantMedia {
			t.Fatalf("ParseMediaRef(%q)=%q,%q want %q,%q", tt.in, ch, media, tt.wantChannel, tt.wantMedia)
		}
	}
}

func TestParseMediaRefInvalid(t *testing.T) {
	for _, in := range []string{"", "  ", "lz:", "l z:1", "lz:1:2", "lz:a b"} {
		if _, _, err := ParseMediaRef(in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("ParseMediaRef(%q) error=%v, want ErrInvalidInput", in, err)
		}
	}
}
