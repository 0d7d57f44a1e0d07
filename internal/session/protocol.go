package session

// Wire protocol: JSON text messages over a single WebSocket. The client sends
// start, audio, and stop; the agent answers with connected, audio, error, and
// stopped. Audio payloads are base64-encoded 16-bit little-endian PCM at
// 16 kHz mono. Unknown message types are ignored on both sides.

const (
	// Client → agent.
	typeStart = "start"
	typeAudio = "audio"
	typeStop  = "stop"

	// Agent → client.
	typeConnected = "connected"
	typeError     = "error"
	typeStopped   = "stopped"
)

// clientMessage is the envelope for every message the client sends.
type clientMessage struct {
	Type string `json:"type"`

	// Data carries base64-encoded PCM16 audio for "audio" messages.
	Data string `json:"data,omitempty"`
}

// serverMessage is the envelope for every message the agent sends.
type serverMessage struct {
	Type string `json:"type"`

	// Data carries base64-encoded PCM16 audio for "audio" messages.
	Data string `json:"data,omitempty"`

	// Message carries a human-readable description for "error" messages.
	Message string `json:"message,omitempty"`
}
