package api

import (
	"github.com/nerrad567/gray-logic-client/internal/platform"
	"github.com/nerrad567/gray-logic-client/internal/session"
	"github.com/nerrad567/gray-logic-client/internal/subsystem/climate"
	"github.com/nerrad567/gray-logic-client/internal/subsystem/security"
)

// Event channels broadcast by the hub.
const (
	ChannelSessionState    = "session.state"
	ChannelSecurityChanged = "security.changed"
	ChannelSecurityCount   = "security.countdown"
	ChannelSecurityPrompt  = "security.prompt"
	ChannelSecurityError   = "security.error"
	ChannelClimateChanged  = "climate.changed"
	ChannelClimateError    = "climate.error"
)

// The hub is a security.Callback; climate goes through climateRelay.
var _ security.Callback = (*Hub)(nil)

// SessionStateChanged broadcasts a session lifecycle transition. It has the
// shape of a session state listener.
func (h *Hub) SessionStateChanged(state session.State) {
	h.Broadcast(ChannelSessionState, map[string]string{"state": state.String()})
}

// OnSecurityChanged broadcasts the recomputed security view.
func (h *Hub) OnSecurityChanged(v security.View) {
	h.Broadcast(ChannelSecurityChanged, newSecurityResponse(v))
}

// OnArmingCountdown broadcasts one countdown tick.
func (h *Hub) OnArmingCountdown(remaining int) {
	h.Broadcast(ChannelSecurityCount, map[string]int{"remaining": remaining})
}

// PromptUnsecured broadcasts a bypass prompt. The UI answers by arming again
// with bypass set.
func (h *Hub) PromptUnsecured(p security.Prompt) {
	h.Broadcast(ChannelSecurityPrompt, promptResponse{
		Mode:    string(p.Mode),
		Reason:  p.Reason,
		Devices: nonNil(p.Devices),
	})
}

// OnError broadcasts a failed security request.
func (h *Hub) OnError(err error) {
	h.Broadcast(ChannelSecurityError, eventError(err))
}

// Climate returns the climate callback that relays through this hub.
func (h *Hub) Climate() climate.Callback {
	return climateRelay{hub: h}
}

// climateRelay adapts the hub to climate.Callback; both callbacks define
// OnError, so climate events go through a separate value.
type climateRelay struct {
	hub *Hub
}

func (r climateRelay) OnClimateChanged(v climate.View) {
	r.hub.Broadcast(ChannelClimateChanged, newClimateResponse(v))
}

func (r climateRelay) OnError(err error) {
	r.hub.Broadcast(ChannelClimateError, eventError(err))
}

func eventError(err error) map[string]string {
	payload := map[string]string{"message": err.Error()}
	if code := platform.CodeOf(err); code != "" {
		payload["platform_code"] = code
	}
	return payload
}
