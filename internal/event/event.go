// internal/event/event.go
package event

// Type identifies the kind of update a session publishes.
type Type string

const (
	TypeProgress     Type = "progress"
	TypeComplete     Type = "complete"
	TypeError        Type = "error"
	TypePreviewFrame Type = "preview-frame"
)

// Event is a single update delivered to the consumer. Events are values and
// are never mutated after construction.
type Event struct {
	Type         Type    `json:"type"`
	CurrentFrame int     `json:"currentFrame"`
	TotalFrames  int     `json:"totalFrames"`
	FPS          float64 `json:"fps"`
	Percentage   int     `json:"percentage"`
	Message      string  `json:"message"`
	PreviewFrame string  `json:"previewFrame,omitempty"`
	IsStopping   bool    `json:"isStopping,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == TypeComplete || e.Type == TypeError
}
