package cli

import (
	"testing"
	"time"
)

func TestExtractAuthCode(t *testing.T) {
	cases := []struct {
		name    string
		pasted  string
		want    string
		wantErr bool
	}{
		{
			name:   "bare code",
			pasted: "C0.b2F1dGgy.abc123",
			want:   "C0.b2F1dGgy.abc123",
		},
		{
			name:   "full redirect url",
			pasted: "https://127.0.0.1/callback?code=C0.b2F1dGgy.abc123%40&session=xyz",
			want:   "C0.b2F1dGgy.abc123@",
		},
		{
			name:   "redirect url without session",
			pasted: "https://example.com/cb?code=plaincode",
			want:   "plaincode",
		},
		{
			name:    "url with empty code",
			pasted:  "https://example.com/cb?code=&session=1",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractAuthCode(tc.pasted)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("extractAuthCode(%q) = %q, want %q", tc.pasted, got, tc.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Minute, "30m"},
		{90 * time.Minute, "1h 30m"},
		{26 * time.Hour, "1d 2h"},
		{7 * 24 * time.Hour, "7d 0h"},
	}
	for _, tc := range cases {
		if got := formatDuration(tc.d); got != tc.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
