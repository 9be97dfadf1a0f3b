package platform

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-client/internal/model"
)

// Message types exchanged with the platform.
const (
	TypeGetAttributes = "base:GetAttributes"
	TypeAdded         = "base:Added"
	TypeValueChange   = "base:ValueChange"
	TypeDeleted       = "base:Deleted"
	TypeError         = "Error"
	TypeEmpty         = "EmptyMessage"

	TypeLogin               = "sess:Login"
	TypeLogout              = "sess:Logout"
	TypeSetActivePlace      = "sess:SetActivePlace"
	TypeListAvailablePlaces = "sess:ListAvailablePlaces"
	TypeSessionExpired      = "sess:SessionExpired"
	TypeActivePlaceCleared  = "sess:ActivePlaceCleared"
)

// SessionService is the destination of session requests.
var SessionService = model.ServiceAddress(model.NamespaceSession, "")

// Message is one platform frame. Requests and their responses share a
// correlation id; pushes carry none.
type Message struct {
	Type          string         `json:"type"`
	Source        string         `json:"source,omitempty"`
	Destination   string         `json:"destination,omitempty"`
	CorrelationID string         `json:"correlationId,omitempty"`
	IsRequest     bool           `json:"isRequest"`
	Attributes    map[string]any `json:"attributes,omitempty"`
}

// Encode serialises the message.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", m.Type, err)
	}
	return data, nil
}

// DecodeMessage parses one frame.
func DecodeMessage(frame []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(frame, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return m, nil
}

// Role is a person's role within a place.
type Role string

// Place roles.
const (
	RoleOwner Role = "OWNER"
	RoleFull  Role = "FULL_ACCESS"
	RoleHobby Role = "HOBBY"
)

// PlaceDescriptor describes one place the logged-in person can access.
type PlaceDescriptor struct {
	PlaceID   string `json:"placeId"`
	PlaceName string `json:"placeName"`
	AccountID string `json:"accountId"`
	Role      Role   `json:"role"`
}

// IsOwner reports whether the person owns the place.
func (p PlaceDescriptor) IsOwner() bool { return p.Role == RoleOwner }

// Credentials authenticate a login.
type Credentials struct {
	Username string
	Password string
}

// LoginResult is the platform's answer to a successful login.
type LoginResult struct {
	Token    string
	PersonID string
	Places   []PlaceDescriptor
}

// decodePlaces converts a "places" attribute into descriptors.
func decodePlaces(v any) ([]PlaceDescriptor, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: places: %w", ErrMalformedFrame, err)
	}
	var places []PlaceDescriptor
	if err := json.Unmarshal(raw, &places); err != nil {
		return nil, fmt.Errorf("%w: places: %w", ErrMalformedFrame, err)
	}
	return places, nil
}
