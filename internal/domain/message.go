package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type MessageType string

const (
	MsgOffer          MessageType = "offer"
	MsgAnswer         MessageType = "answer"
	MsgICECandidate   MessageType = "ice-candidate"
	MsgTranscript     MessageType = "transcript"
	MsgUserTranscript MessageType = "user-transcript"
	MsgAIResponse     MessageType = "ai-response"
	MsgAIAudio        MessageType = "ai-audio"
	MsgAIError        MessageType = "ai-error"
)

var ErrUnknownMessageType = errors.New("unknown signal message type")

// ICECandidate is the wire shape of a discovered network path, kept free of
// transport-library types so the signaling layer stays codec-agnostic.
type ICECandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// SignalMessage is the tagged union carried over the signaling channel.
// Each variant uses only the fields relevant to its type.
type SignalMessage struct {
	Type         MessageType   `json:"type"`
	SDP          string        `json:"sdp,omitempty"`
	ConsentToken string        `json:"consentToken,omitempty"`
	Candidate    *ICECandidate `json:"candidate,omitempty"`
	Text         string        `json:"text,omitempty"`
	Audio        string        `json:"audio,omitempty"` // base64 clip
	Format       string        `json:"format,omitempty"`
	Timestamp    string        `json:"timestamp,omitempty"` // ISO-8601
	Message      string        `json:"message,omitempty"`
	Retryable    bool          `json:"retryable,omitempty"`
}

func NewOffer(sdp, consentToken string) SignalMessage {
	return SignalMessage{Type: MsgOffer, SDP: sdp, ConsentToken: consentToken}
}

func NewCandidateMessage(c ICECandidate) SignalMessage {
	return SignalMessage{Type: MsgICECandidate, Candidate: &c}
}

func NewTranscriptMessage(text, audioBase64 string) SignalMessage {
	return SignalMessage{Type: MsgTranscript, Text: text, Audio: audioBase64}
}

// DecodeSignalMessage parses an inbound frame. A frame that is not valid
// JSON or carries an unrecognized type is an error for the caller to log
// and drop; it must never tear the channel down.
func DecodeSignalMessage(data []byte) (SignalMessage, error) {
	var m SignalMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return SignalMessage{}, fmt.Errorf("decode signal frame: %w", err)
	}
	switch m.Type {
	case MsgOffer, MsgAnswer, MsgICECandidate, MsgTranscript,
		MsgUserTranscript, MsgAIResponse, MsgAIAudio, MsgAIError:
		return m, nil
	default:
		return SignalMessage{}, fmt.Errorf("%w: %q", ErrUnknownMessageType, m.Type)
	}
}

// EventTime returns the remote timestamp when present and parseable,
// otherwise the local receive time.
func (m SignalMessage) EventTime() time.Time {
	if m.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, m.Timestamp); err == nil {
			return t
		}
	}
	return time.Now()
}
