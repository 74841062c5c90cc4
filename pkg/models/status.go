package models

// PageState is the lifecycle position of a single queued page
type PageState string

const (
	PageStateUnset     PageState = ""          // Zero value = unset/unknown
	PageStatePending   PageState = "pending"   // Queued, not yet started
	PageStateFetching  PageState = "fetching"  // HTTP request in flight
	PageStateScanning  PageState = "scanning"  // Body handed to the content scanner
	PageStateCompleted PageState = "completed" // Page callback fired
)

// String implements fmt.Stringer for logging
func (s PageState) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the state is a known operational value
func (s PageState) IsValid() bool {
	switch s {
	case PageStatePending, PageStateFetching, PageStateScanning, PageStateCompleted:
		return true
	}
	return false
}

// QueueState represents the scheduling state of a request queue
type QueueState string

const (
	QueueStateRunning QueueState = "running" // Starting items as capacity allows
	QueueStatePaused  QueueState = "paused"  // Not starting new items; in-flight work continues
	QueueStateDrained QueueState = "drained" // Nothing pending and nothing in flight
)

// String implements fmt.Stringer for logging
func (s QueueState) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}
