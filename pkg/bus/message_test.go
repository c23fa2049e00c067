package bus

import (
	"testing"
)

func TestMessage_RoundTrip(t *testing.T) {
	msg, err := NewMessage(TypeWaypoint, WaypointData{X: 0.3, Y: -0.1})
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}
	if msg.Timestamp == 0 {
		t.Error("Expected timestamp to be set")
	}

	raw, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}

	parsed, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if parsed.Type != TypeWaypoint {
		t.Errorf("Type = %s, want %s", parsed.Type, TypeWaypoint)
	}

	var wp WaypointData
	if err := parsed.ParseData(&wp); err != nil {
		t.Fatalf("ParseData failed: %v", err)
	}
	if wp.X != 0.3 || wp.Y != -0.1 {
		t.Errorf("Waypoint = (%v, %v), want (0.3, -0.1)", wp.X, wp.Y)
	}
}

func TestParseMessage_Malformed(t *testing.T) {
	if _, err := ParseMessage([]byte("{not json")); err == nil {
		t.Error("Expected error for malformed message")
	}
}

func TestFlattenBatch_ReservedFlagFirst(t *testing.T) {
	payload := FlattenBatch([]float32{1, 2, 3, 4})
	if len(payload.Data) != 5 {
		t.Fatalf("Expected 5 values, got %d", len(payload.Data))
	}
	if payload.Data[0] != 0 {
		t.Errorf("First element must be the reserved flag, got %v", payload.Data[0])
	}
	for i, want := range []float32{1, 2, 3, 4} {
		if payload.Data[i+1] != want {
			t.Errorf("Data[%d] = %v, want %v", i+1, payload.Data[i+1], want)
		}
	}
}

func TestMemoryBus_DeliversInOrder(t *testing.T) {
	m := NewMemoryBus()

	var got []byte
	if err := m.Subscribe("a/topic", func(data []byte) { got = data }); err != nil {
		t.Fatal(err)
	}

	if err := m.Publish("a/topic", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if string(got) != "x" {
		t.Errorf("Handler saw %q, want \"x\"", got)
	}

	m.Publish("a/topic", []byte("y"))
	recorded := m.Published("a/topic")
	if len(recorded) != 2 || string(recorded[1]) != "y" {
		t.Errorf("Recorded = %v", recorded)
	}
}

func TestMemoryBus_ClosedRejects(t *testing.T) {
	m := NewMemoryBus()
	m.Close()
	if err := m.Publish("t", nil); err == nil {
		t.Error("Expected publish on closed bus to fail")
	}
	if err := m.Subscribe("t", func([]byte) {}); err == nil {
		t.Error("Expected subscribe on closed bus to fail")
	}
}
