// Package progress defines the events a download job publishes.
package progress

import "time"

// Kind names an event variant on the wire.
type Kind string

const (
	KindStarted           Kind = "started"
	KindSegmentDownloaded Kind = "segment_downloaded"
	KindTransformingVideo Kind = "transforming_video"
	KindDone              Kind = "done"
	KindFailed            Kind = "failed"
)

// Event is one entry in a job's progress log.
type Event interface {
	Kind() Kind
	Time() time.Time
	event()
}

// Started is always the first event of a job.
type Started struct {
	TotalSegments int
	At            time.Time
}

// SegmentDownloaded reports a finished segment or a remux progress line.
type SegmentDownloaded struct {
	Message string
	At      time.Time
}

// TransformingVideo marks the start of the remux step.
type TransformingVideo struct {
	At time.Time
}

// Done is the successful terminal event.
type Done struct {
	LocalPath string
	At        time.Time
}

// Failed is the unsuccessful terminal event.
type Failed struct {
	Reason string
	At     time.Time
}

func (Started) Kind() Kind           { return KindStarted }
func (SegmentDownloaded) Kind() Kind { return KindSegmentDownloaded }
func (TransformingVideo) Kind() Kind { return KindTransformingVideo }
func (Done) Kind() Kind              { return KindDone }
func (Failed) Kind() Kind            { return KindFailed }

func (e Started) Time() time.Time           { return e.At }
func (e SegmentDownloaded) Time() time.Time { return e.At }
func (e TransformingVideo) Time() time.Time { return e.At }
func (e Done) Time() time.Time              { return e.At }
func (e Failed) Time() time.Time            { return e.At }

func (Started) event()           {}
func (SegmentDownloaded) event() {}
func (TransformingVideo) event() {}
func (Done) event()              {}
func (Failed) event()            {}

// IsTerminal reports whether e ends a job.
func IsTerminal(e Event) bool {
	switch e.(type) {
	case Done, *Done, Failed, *Failed:
		return true
	}
	return false
}

// Update is the wire form of an Event.
type Update struct {
	Kind          Kind   `json:"kind"`
	TotalSegments int    `json:"total_segments,omitempty"`
	Message       string `json:"message,omitempty"`
	LocalPath     string `json:"local_path,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// Terminal reports whether u is the last update of a job.
func (u Update) Terminal() bool {
	return u.Kind == KindDone || u.Kind == KindFailed
}

// Format converts an event into its wire form.
func Format(e Event) Update {
	u := Update{Kind: e.Kind(), Timestamp: e.Time().UTC().Format(time.RFC3339Nano)}
	switch v := e.(type) {
	case Started:
		u.TotalSegments = v.TotalSegments
	case SegmentDownloaded:
		u.Message = v.Message
	case Done:
		u.LocalPath = v.LocalPath
	case Failed:
		u.Reason = v.Reason
	}
	return u
}
