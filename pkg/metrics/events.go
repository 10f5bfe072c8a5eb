package metrics

// Turn lifecycle events.
const (
	EventTurnStarted     = "turn_started"
	EventSTTDone         = "stt_done"
	EventNoSpeech        = "no_speech"
	EventCrisisDetected  = "crisis_detected"
	EventGenerationDone  = "generation_done"
	EventValidationDone  = "validation_done"
	EventTTSDone         = "tts_done"
	EventTurnDone        = "turn_done"
	EventLatencyExceeded = "latency_budget_exceeded"
)

// Provider wrapper events.
const (
	EventRateLimit     = "rate_limit"
	EventBreakerOpen   = "circuit_open"
	EventBreakerClose  = "circuit_close"
	EventBreakerDenied = "circuit_denied"
	EventAlertSent     = "crisis_alert_sent"
	EventAlertFailed   = "crisis_alert_failed"
)

// Tag keys shared by emitters and observers.
const (
	TagSessionID  = "session_id"
	TagTurnID     = "turn_id"
	TagStage      = "stage"
	TagProvider   = "provider"
	TagComponent  = "component"
	TagScript     = "script"
	TagCategory   = "category"
	TagVerdict    = "verdict"
	TagStatus     = "status"
	TagInputKind  = "input"
	FieldDuration = "duration_ms"
)
