package broadcast

import (
	"encoding/json"
	"testing"
)

func TestEventWireShape(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			"summary",
			NewSummary("partial text"),
			`{"type":"summary","content":"partial text"}`,
		},
		{
			"raw_stream",
			RawStreamEvent{Type: "raw_stream", BatchNumber: 2, RawContent: "chunk", Timestamp: 1700000000},
			`{"type":"raw_stream","batchNumber":2,"rawContent":"chunk","timestamp":1700000000}`,
		},
		{
			"batch_complete",
			BatchCompleteEvent{Type: "batch_complete", BatchNumber: 1, FinalRawResponse: "done", IsComplete: true, Timestamp: 1700000000},
			`{"type":"batch_complete","batchNumber":1,"finalRawResponse":"done","isComplete":true,"timestamp":1700000000}`,
		},
		{
			"delay",
			NewDelay(40),
			`{"type":"delay","progress":40}`,
		},
		{
			"complete",
			NewComplete(),
			`{"type":"complete"}`,
		},
		{
			"stopped",
			NewStopped("Analysis stopped by user"),
			`{"type":"stopped","message":"Analysis stopped by user"}`,
		},
		{
			"error",
			NewError("provider unavailable"),
			`{"type":"error","error":"provider unavailable"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(raw) != tt.want {
				t.Fatalf("wire shape mismatch:\n got %s\nwant %s", raw, tt.want)
			}
			if tt.event.EventType() != tt.name {
				t.Fatalf("EventType() = %s, want %s", tt.event.EventType(), tt.name)
			}
		})
	}
}
