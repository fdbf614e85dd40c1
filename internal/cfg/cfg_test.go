package cfg

import "testing"

type testOptions struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

func (o *testOptions) ApplyDefaults() {
	if o.BaseURL == "" {
		o.BaseURL = "https://api.example.com"
	}
}

func TestDecode(t *testing.T) {
	var opts testOptions
	err := Decode(map[string]any{"api_key": "k-123"}, &opts)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if opts.APIKey != "k-123" {
		t.Errorf("expected api_key k-123, got %q", opts.APIKey)
	}
	if opts.BaseURL != "https://api.example.com" {
		t.Errorf("expected default base_url, got %q", opts.BaseURL)
	}
}

func TestDecodeOverridesDefault(t *testing.T) {
	var opts testOptions
	err := Decode(map[string]any{"base_url": "http://localhost:9999"}, &opts)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if opts.BaseURL != "http://localhost:9999" {
		t.Errorf("expected explicit base_url to win, got %q", opts.BaseURL)
	}
}

func TestDecodeNilInput(t *testing.T) {
	var opts testOptions
	if err := Decode(nil, &opts); err != nil {
		t.Fatalf("Decode with nil input failed: %v", err)
	}
	if opts.BaseURL == "" {
		t.Error("expected defaults to apply with nil input")
	}
}
