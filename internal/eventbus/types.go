package eventbus

import "time"

// Topic identifies a logical channel on the bus.
type Topic string

const (
	TopicStreamLifecycle Topic = "stream.lifecycle"
	TopicStreamSeries    Topic = "stream.series"
)

// Source describes which component produced an event.
type Source string

const (
	SourceStreamController Source = "stream_controller"
	SourceUnknown          Source = "unknown"
)

// Envelope wraps every message published on the bus.
type Envelope struct {
	Topic         Topic
	Timestamp     time.Time
	Source        Source
	CorrelationID string
	Payload       any
}

// StreamSessionEvent reports a session state transition.
type StreamSessionEvent struct {
	SessionID string
	Mode      string
	ChunkSize int
	State     string
	// Err is set when the session ended on its own (dial failure or the data
	// source dropping the connection).
	Err error
}

// StreamSeriesEvent reports points appended to the series.
type StreamSeriesEvent struct {
	SessionID string
	Hash      string
	Appended  int
	Length    int
}
