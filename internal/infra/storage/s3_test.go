package storage

import "testing"

func TestSanitizeEndpoint(t *testing.T) {
	cases := map[string]string{
		"https://r2.example.com":         "r2.example.com",
		"http://localhost:9000":          "localhost:9000",
		"localhost:9000":                 "localhost:9000",
		"https://r2.example.com/ignored": "r2.example.com",
		"  https://r2.example.com  ":     "r2.example.com",
		"":                               "",
	}
	for in, want := range cases {
		if got := sanitizeEndpoint(in); got != want {
			t.Errorf("sanitizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}
