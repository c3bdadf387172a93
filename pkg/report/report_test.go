package report

import (
	"strings"
	"testing"
)

func TestTopic(t *testing.T) {
	if got := Topic("edge-01", "logs"); got != "tln/edge-01/logs" {
		t.Errorf("Topic() = %q", got)
	}
}

func TestMarshalKeyOrder(t *testing.T) {
	got, err := Marshal(Report{Topic: "tln/a/logs", Payload: "x"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"topic":"tln/a/logs","payload":"x"}`
	if got != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		r    Report
	}{
		{"empty", Report{}},
		{"plain", Report{Topic: "tln/node/logs", Payload: "1: 2024-01-01 00:00:00 +00:00 : boot ok\n"}},
		{"quotes", Report{Topic: `t"o"p`, Payload: `say "hi" and 'bye'`}},
		{"escapes", Report{Topic: `back\slash`, Payload: "tab\tnew\nline\r\x00nul"}},
		{"unicode", Report{Topic: "tln/ñ/logs", Payload: "日本語 <html> &  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Marshal(tt.r)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			got, err := Unmarshal(s)
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got != tt.r {
				t.Errorf("round-trip: got %+v, want %+v", got, tt.r)
			}
		})
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	_, err := Unmarshal("not json")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "decode report") {
		t.Errorf("unexpected error: %v", err)
	}
}
