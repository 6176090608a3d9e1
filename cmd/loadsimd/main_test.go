package main

import "testing"

func TestSelfURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":5000", "http://127.0.0.1:5000"},
		{"0.0.0.0:8080", "http://127.0.0.1:8080"},
		{"[::]:9000", "http://127.0.0.1:9000"},
		{"10.0.0.5:5000", "http://10.0.0.5:5000"},
		{"localhost:5000", "http://localhost:5000"},
		{"bogus", "http://127.0.0.1:5000"},
	}
	for _, tt := range tests {
		if got := selfURL(tt.addr); got != tt.want {
			t.Errorf("selfURL(%q) = %q; want %q", tt.addr, got, tt.want)
		}
	}
}

func TestStaticAssets(t *testing.T) {
	assets, err := staticAssets(Config{WebAssetsMode: "off"})
	if err != nil || assets != nil {
		t.Errorf("off mode: got %v, %v", assets, err)
	}

	assets, err = staticAssets(Config{WebAssetsMode: "embedded"})
	if err != nil {
		t.Fatalf("embedded mode: %v", err)
	}
	if _, err := assets.Open("index.html"); err != nil {
		t.Errorf("embedded assets lack index.html: %v", err)
	}

	assets, err = staticAssets(Config{WebAssetsMode: "fs", WebDir: t.TempDir()})
	if err != nil || assets == nil {
		t.Errorf("fs mode: got %v, %v", assets, err)
	}
}
