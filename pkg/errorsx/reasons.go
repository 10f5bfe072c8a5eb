package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonSTTTranscribe ReasonCode = "stt_transcribe"
	ReasonSTTRateLimit  ReasonCode = "stt_rate_limit"
	ReasonNoSpeech      ReasonCode = "no_speech"

	ReasonTTSSynthesize ReasonCode = "tts_synthesize"
	ReasonTTSRateLimit  ReasonCode = "tts_rate_limit"

	ReasonLLMGenerate    ReasonCode = "llm_generate"
	ReasonLLMRateLimit   ReasonCode = "llm_rate_limit"
	ReasonLLMMalformed   ReasonCode = "llm_malformed"
	ReasonLLMCircuitOpen ReasonCode = "llm_circuit_open"

	ReasonValidate          ReasonCode = "validate"
	ReasonValidateMalformed ReasonCode = "validate_malformed"

	ReasonConfigInvalid   ReasonCode = "config_invalid"
	ReasonProviderUnknown ReasonCode = "provider_unknown"

	ReasonAlertSend ReasonCode = "alert_send"

	ReasonTransportDecode ReasonCode = "transport_decode"
	ReasonTransportSend   ReasonCode = "transport_send"
)
