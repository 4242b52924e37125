package broadcast

import "time"

// Event is the closed set of messages a job broadcasts to its subscribers.
// The JSON field names and the "type" discriminator are the wire contract with
// connected clients and must not change.
type Event interface {
	EventType() string
}

// SummaryEvent carries the accumulated (possibly truncated) summary snapshot.
type SummaryEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// RawStreamEvent carries the accumulated batch response snapshot as the
// provider streams it.
type RawStreamEvent struct {
	Type        string `json:"type"`
	BatchNumber int    `json:"batchNumber"`
	RawContent  string `json:"rawContent"`
	Timestamp   int64  `json:"timestamp"`
}

// BatchCompleteEvent marks one question batch as finished.
type BatchCompleteEvent struct {
	Type             string `json:"type"`
	BatchNumber      int    `json:"batchNumber"`
	FinalRawResponse string `json:"finalRawResponse"`
	IsComplete       bool   `json:"isComplete"`
	Timestamp        int64  `json:"timestamp"`
}

// DelayEvent reports inter-batch delay progress from 0 to 100.
type DelayEvent struct {
	Type     string `json:"type"`
	Progress int    `json:"progress"`
}

// CompleteEvent is the terminal success event.
type CompleteEvent struct {
	Type string `json:"type"`
}

// StoppedEvent is the terminal event for a user-initiated stop.
type StoppedEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorEvent is the terminal failure event.
type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (SummaryEvent) EventType() string       { return "summary" }
func (RawStreamEvent) EventType() string     { return "raw_stream" }
func (BatchCompleteEvent) EventType() string { return "batch_complete" }
func (DelayEvent) EventType() string         { return "delay" }
func (CompleteEvent) EventType() string      { return "complete" }
func (StoppedEvent) EventType() string       { return "stopped" }
func (ErrorEvent) EventType() string         { return "error" }

// NewSummary builds a summary event.
func NewSummary(content string) SummaryEvent {
	return SummaryEvent{Type: "summary", Content: content}
}

// NewRawStream builds a raw_stream event stamped with the current time.
func NewRawStream(batchNumber int, rawContent string) RawStreamEvent {
	return RawStreamEvent{
		Type:        "raw_stream",
		BatchNumber: batchNumber,
		RawContent:  rawContent,
		Timestamp:   time.Now().Unix(),
	}
}

// NewBatchComplete builds a batch_complete event stamped with the current time.
func NewBatchComplete(batchNumber int, finalRawResponse string) BatchCompleteEvent {
	return BatchCompleteEvent{
		Type:             "batch_complete",
		BatchNumber:      batchNumber,
		FinalRawResponse: finalRawResponse,
		IsComplete:       true,
		Timestamp:        time.Now().Unix(),
	}
}

// NewDelay builds a delay progress event.
func NewDelay(progress int) DelayEvent {
	return DelayEvent{Type: "delay", Progress: progress}
}

// NewComplete builds the terminal success event.
func NewComplete() CompleteEvent {
	return CompleteEvent{Type: "complete"}
}

// NewStopped builds the terminal stop event.
func NewStopped(message string) StoppedEvent {
	return StoppedEvent{Type: "stopped", Message: message}
}

// NewError builds the terminal error event.
func NewError(message string) ErrorEvent {
	return ErrorEvent{Type: "error", Error: message}
}
