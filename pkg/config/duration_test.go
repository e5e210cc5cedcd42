package config

import (
	"encoding/json"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDurationParse(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"500ms", 500 * time.Millisecond, false},
		{"30s", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"2", 2 * time.Second, false},
		{"0.5", 500 * time.Millisecond, false},
		{"", 0, false},
		{"-5s", 0, true},
		{"-2", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		var d Duration
		err := d.UnmarshalText([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("parse %q: err = %v, wantErr = %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && d.Duration != tt.want {
			t.Errorf("parse %q = %v, want %v", tt.in, d.Duration, tt.want)
		}
	}
}

func TestDurationJSON(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`"45s"`), &d); err != nil {
		t.Fatal(err)
	}
	if d.Duration != 45*time.Second {
		t.Errorf("string form = %v", d.Duration)
	}
	if err := json.Unmarshal([]byte(`3`), &d); err != nil {
		t.Fatal(err)
	}
	if d.Duration != 3*time.Second {
		t.Errorf("number form = %v", d.Duration)
	}
}

func TestDurationYAML(t *testing.T) {
	var d Duration
	if err := yaml.Unmarshal([]byte(`250ms`), &d); err != nil {
		t.Fatal(err)
	}
	if d.Duration != 250*time.Millisecond {
		t.Errorf("string form = %v", d.Duration)
	}
}

func TestDurationRoundTrip(t *testing.T) {
	d := Duration{90 * time.Second}
	text, err := d.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var back Duration
	if err := back.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if back.Duration != d.Duration {
		t.Errorf("round trip %v != %v", back.Duration, d.Duration)
	}
}
