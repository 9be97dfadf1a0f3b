package security

import "github.com/nerrad567/gray-logic-client/internal/model"

// Namespace is the security subsystem capability namespace.
const Namespace = "subsecurity"

// Subsystem attributes.
const (
	AttrAlarmState       = "subsecurity:alarmState"
	AttrAlarmMode        = "subsecurity:alarmMode"
	AttrSecurityDevices  = "subsecurity:securityDevices"
	AttrArmedDevices     = "subsecurity:armedDevices"
	AttrBypassedDevices  = "subsecurity:bypassedDevices"
	AttrTriggeredDevices = "subsecurity:triggeredDevices"
	AttrExitDelayOn      = "subsecurity:exitDelayOnSec"
	AttrExitDelayPartial = "subsecurity:exitDelayPartialSec"
	AttrLastArmedTime    = "subsecurity:lastArmedTime"
)

// Device attributes that affect the security view.
const (
	AttrDeviceName = "dev:name"
	AttrContact    = "cont:contact"
	AttrMotion     = "mot:motion"
	AttrGlass      = "glass:break"
	AttrConnState  = "devconn:state"

	ConnOffline = "OFFLINE"
)

// Platform requests.
const (
	msgArm         = "subsecurity:Arm"
	msgArmBypassed = "subsecurity:ArmBypassed"
	msgDisarm      = "subsecurity:Disarm"
)

// CodeTriggeredDevices is the platform error code for an arm attempt blocked
// by unsecured devices.
const CodeTriggeredDevices = "TriggeredDevices"

// State is the alarm lifecycle state.
type State string

// Alarm states.
const (
	StateDisarmed State = "DISARMED"
	StateArming   State = "ARMING"
	StateArmed    State = "ARMED"
	StateAlert    State = "ALERT"
	StateClearing State = "CLEARING"
	StateSoaking  State = "SOAKING"
)

// Mode is the arming mode.
type Mode string

// Arming modes. ModeOff is only reported while disarmed.
const (
	ModeOff     Mode = "OFF"
	ModeOn      Mode = "ON"
	ModePartial Mode = "PARTIAL"
)

// Valid reports whether m can be requested when arming.
func (m Mode) Valid() bool {
	return m == ModeOn || m == ModePartial
}

// View is the security state presented to the UI. It is recomputed from the
// cached models on every refresh.
type View struct {
	State State
	Mode  Mode

	// Devices is the number of security devices in the place.
	Devices int

	// Armed device names, partitioned.
	Active   []string
	Bypassed []string
	Offline  []string

	// Triggered holds the names of devices that caused the last alert.
	Triggered []string

	// Countdown is the seconds left on the local arming countdown, or zero.
	Countdown int
}

// ArmedCount returns the number of devices in the armed set.
func (v View) ArmedCount() int {
	return len(v.Active) + len(v.Bypassed) + len(v.Offline)
}

// Prompt asks the user to confirm arming despite unsecured devices.
type Prompt struct {
	Mode    Mode
	Reason  string
	Devices []string
}

// Callback is the UI consumer of the security controller. Every method is
// called on the executor.
type Callback interface {
	// OnSecurityChanged delivers a recomputed view.
	OnSecurityChanged(v View)

	// OnArmingCountdown delivers each local countdown tick, ending at zero.
	OnArmingCountdown(remaining int)

	// PromptUnsecured asks for a bypass decision after an arm attempt was
	// rejected because devices are not secure.
	PromptUnsecured(p Prompt)

	// OnError reports any other failed request.
	OnError(err error)
}

// IsStatusChanged reports whether a device change affects the security view.
func IsStatusChanged(keys model.AttributeSet) bool {
	return keys.HasAny(AttrContact, AttrMotion, AttrGlass, AttrConnState)
}
