package model

import "testing"

func TestParseMessageType(t *testing.T) {
	cases := []struct {
		in      string
		want    MessageType
		wantErr bool
	}{
		{"", MessageText, false},
		{"text", MessageText, false},
		{"image", MessageImage, false},
		{"video", MessageVideo, false},
		{"file", MessageFile, false},
		{"gif", "", true},
		{"TEXT", "", true},
	}
	for _, tc := range cases {
		got, err := ParseMessageType(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseMessageType(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseMessageType(%q) = %v, %v", tc.in, got, err)
		}
	}
}

func TestMessageTypeForMIME(t *testing.T) {
	cases := []struct {
		mime string
		want MessageType
	}{
		{"image/png", MessageImage},
		{"video/mp4", MessageVideo},
		{"application/pdf", MessageFile},
		{"", MessageFile},
	}
	for _, tc := range cases {
		if got := MessageTypeForMIME(tc.mime); got != tc.want {
			t.Errorf("MessageTypeForMIME(%q) = %v, want %v", tc.mime, got, tc.want)
		}
	}
}
