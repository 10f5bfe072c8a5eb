package turn

type State int

const (
	StateIdle State = iota
	StateTranscribing
	StateThinking
	StateSynthesizing
	StateSpeaking
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateTranscribing:
		return "TRANSCRIBING"
	case StateThinking:
		return "THINKING"
	case StateSynthesizing:
		return "SYNTHESIZING"
	case StateSpeaking:
		return "SPEAKING"
	default:
		return "UNKNOWN"
	}
}

// Status is the lowercase form pushed to clients as processing_status.
func (s State) Status() string {
	switch s {
	case StateTranscribing:
		return "transcribing"
	case StateThinking:
		return "thinking"
	case StateSynthesizing:
		return "synthesizing"
	case StateSpeaking:
		return "speaking"
	default:
		return "idle"
	}
}
