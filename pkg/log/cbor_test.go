package log

import (
	"testing"
	"time"
)

func TestEventRoundTripPreservesNanoseconds(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 20, 30, 123456789, time.UTC)
	data, err := EncodeEvent(Event{Timestamp: ts, ConnectionID: "c"})
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}
	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ts)
	}
}

func TestMessagePayloadDecodesAsStringMap(t *testing.T) {
	code := 131
	data, err := EncodeEvent(Event{
		Command: "summary",
		Message: &MessageEvent{
			Type:    MessageTypeResponse,
			Status:  "S",
			Code:    &code,
			Payload: map[string]any{"STATUS": "S", "SUMMARY": []any{map[string]any{"Elapsed": "10"}}},
		},
	})
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}

	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	payload, ok := got.Message.Payload.(map[string]any)
	if !ok {
		t.Fatalf("Payload type = %T, want map[string]any", got.Message.Payload)
	}
	if payload["STATUS"] != "S" {
		t.Errorf("STATUS = %v", payload["STATUS"])
	}
	summary := payload["SUMMARY"].([]any)[0].(map[string]any)
	if summary["Elapsed"] != "10" {
		t.Errorf("Elapsed = %v", summary["Elapsed"])
	}
	if got.Message.Code == nil || *got.Message.Code != 131 {
		t.Errorf("Code = %v", got.Message.Code)
	}
}

func TestEncodingIsDeterministic(t *testing.T) {
	ev := Event{ConnectionID: "c", Message: &MessageEvent{Payload: map[string]any{"b": "1", "a": "2", "cmd": "x"}}}
	first, err := EncodeEvent(ev)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, _ := EncodeEvent(ev)
		if string(again) != string(first) {
			t.Fatal("encoding differs between runs")
		}
	}
}

func TestEnumStrings(t *testing.T) {
	checks := map[string]string{
		DirectionOut.String():       "OUT",
		Direction(9).String():       "UNKNOWN",
		LayerSession.String():       "SESSION",
		CategoryError.String():      "ERROR",
		MessageTypeRequest.String(): "REQUEST",
		StateEntityDevice.String():  "DEVICE",
	}
	for got, want := range checks {
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}
