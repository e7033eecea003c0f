package types //nolint:revive // types is a valid package name

import (
	"encoding/json"
	"testing"
)

func TestResponseEvent_Unmarshal(t *testing.T) {
	data := `{"send_pixel":["https://a/1","https://a/2"],"send_beacon":["https://b/1"],"response":{"status_code":200,"body":"{\"a\":1}"}}`

	var ev ResponseEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(ev.SendPixel) != 2 || ev.SendPixel[1] != "https://a/2" {
		t.Errorf("SendPixel = %v", ev.SendPixel)
	}
	if len(ev.SendBeacon) != 1 {
		t.Errorf("SendBeacon = %v", ev.SendBeacon)
	}
	if ev.Response == nil {
		t.Fatal("Response is nil")
	}
	if ev.Response.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", ev.Response.StatusCode)
	}
	if string(ev.Response.Body) != `"{\"a\":1}"` {
		t.Errorf("Body = %s", ev.Response.Body)
	}
}

func TestResponseEvent_TolerantShapes(t *testing.T) {
	data := `{"send_pixel":"https://not-an-array","send_beacon":[1,"https://b/ok",null],"response":"nope"}`

	var ev ResponseEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.SendPixel != nil {
		t.Errorf("SendPixel = %v, want nil for non-array", ev.SendPixel)
	}
	if len(ev.SendBeacon) != 1 || ev.SendBeacon[0] != "https://b/ok" {
		t.Errorf("SendBeacon = %v, want only string elements", ev.SendBeacon)
	}
	if ev.Response != nil {
		t.Errorf("Response = %+v, want nil for non-object", ev.Response)
	}
}

func TestResponseEvent_MissingStatusDefaultsToZero(t *testing.T) {
	var ev ResponseEvent
	if err := json.Unmarshal([]byte(`{"response":{"body":{"x":1}}}`), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Response == nil || ev.Response.StatusCode != 0 {
		t.Fatalf("Response = %+v, want status 0", ev.Response)
	}
}

func TestResponseEvent_NonObjectFails(t *testing.T) {
	var ev ResponseEvent
	if err := json.Unmarshal([]byte(`[1,2]`), &ev); err == nil {
		t.Error("expected error for array top level")
	}
}

func TestResponseEvent_IsEmpty(t *testing.T) {
	var nilEvent *ResponseEvent
	if !nilEvent.IsEmpty() {
		t.Error("nil event should be empty")
	}
	if !(&ResponseEvent{}).IsEmpty() {
		t.Error("zero event should be empty")
	}
	if (&ResponseEvent{SendPixel: []string{"x"}}).IsEmpty() {
		t.Error("event with pixel should not be empty")
	}
}

func TestRecord_MergeAndStatus(t *testing.T) {
	r := Record{"a": 1}
	r.Merge(map[string]any{"a": 2, "b": 3})
	if r["a"] != 2 || r["b"] != 3 {
		t.Errorf("merge result = %v", r)
	}

	if _, ok := r.Status(); ok {
		t.Error("expected no status")
	}
	r[FieldStatus] = 201
	if s, ok := r.Status(); !ok || s != 201 {
		t.Errorf("Status = %d, %v", s, ok)
	}

	clone := r.Clone()
	clone["a"] = 99
	if r["a"] == 99 {
		t.Error("Clone must not alias the original")
	}
}
