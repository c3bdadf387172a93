// Package report builds and encodes the snapshots plugins publish to the relay.
package report

import (
	"encoding/json"
	"fmt"
)

// Report is a one-shot snapshot addressed to a topic.
type Report struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
}

// Topic returns "tln/<instance>/<module>".
func Topic(instance, module string) string {
	return fmt.Sprintf("tln/%s/%s", instance, module)
}

// Marshal encodes r as a JSON object with keys topic, payload.
func Marshal(r Report) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	return string(b), nil
}

// Unmarshal decodes a report produced by Marshal.
func Unmarshal(s string) (Report, error) {
	var r Report
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return Report{}, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}
