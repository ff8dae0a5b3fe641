package appupdate

import "sync"

// User-facing status messages.
const (
	MessageUpdateReceived     = "update received"
	MessageDownloadCanceled   = "Downloading canceled"
	MessageDownloadFailed     = "Downloading failed"
	MessageDownloadSuccessful = "Download successful"
)

// Status holds the single user-facing status message.
//
// Writes are last-write-wins. Updates delivers the newest message to a
// single consumer; a message overwritten before it is read is never seen.
type Status struct {
	mu      sync.Mutex
	message string
	updates chan string
}

// NewStatus returns an empty Status.
func NewStatus() *Status {
	return &Status{updates: make(chan string, 1)}
}

// Set replaces the current message and notifies the consumer.
func (s *Status) Set(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.message = message
	select {
	case <-s.updates:
	default:
	}
	s.updates <- message
}

// Get returns the current message, or "" if none was set.
func (s *Status) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// Updates returns the channel on which new messages are published.
func (s *Status) Updates() <-chan string {
	return s.updates
}
