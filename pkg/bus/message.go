// Package bus provides the message transport for the exploration node:
// a topic-based Bus interface, a JSON message envelope, a WebSocket
// implementation, and an in-memory bus for testing.
package bus

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the payload carried by an envelope.
type MessageType string

const (
	// Inbound
	TypeFrame MessageType = "frame" // camera frame

	// Outbound
	TypeWaypoint       MessageType = "waypoint"        // committed short-horizon target
	TypeSampledActions MessageType = "sampled_actions" // flattened trajectory batch
	TypeTrajectoryViz  MessageType = "trajectory_viz"  // debug overlay image
)

// Message is the envelope for all bus messages.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	NodeID    string          `json:"node_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage wraps a payload with the current timestamp.
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the payload into v.
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded envelope.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage decodes an envelope.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// FrameData carries one camera frame.
type FrameData struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"` // "jpeg"
	Data   []byte `json:"data"`   // base64 on the wire
	Stamp  int64  `json:"stamp"`  // capture time, Unix milliseconds
}

// WaypointData is the committed waypoint in robot-relative units.
type WaypointData struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// SampledActionsData is the flattened trajectory batch. The first element
// is a reserved flag, followed by trajectory steps row-major.
type SampledActionsData struct {
	Data []float32 `json:"data"`
}

// FlattenBatch builds the sampled-actions wire payload from a flattened
// batch: [reserved, traj0_step0_x, traj0_step0_y, ...].
func FlattenBatch(flat []float32) SampledActionsData {
	data := make([]float32, 0, len(flat)+1)
	data = append(data, 0.0)
	data = append(data, flat...)
	return SampledActionsData{Data: data}
}
