package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-client/internal/countdown"
	"github.com/nerrad567/gray-logic-client/internal/listener"
	"github.com/nerrad567/gray-logic-client/internal/model"
	"github.com/nerrad567/gray-logic-client/internal/platform"
	"github.com/nerrad567/gray-logic-client/internal/subsystem"
)

// defaultLoadTimeout bounds the background load of the security devices.
const defaultLoadTimeout = 30 * time.Second

// Requester issues platform requests.
type Requester interface {
	Request(ctx context.Context, dest model.Address, msgType string, attrs map[string]any) (map[string]any, error)
}

// Deps holds the collaborators of a security Controller.
type Deps struct {
	subsystem.Deps

	Requester Requester

	// CountdownInterval is the local countdown tick; zero means one second.
	CountdownInterval time.Duration

	// LoadTimeout bounds the security device load; zero means 30 seconds.
	LoadTimeout time.Duration
}

// Controller is the security arming state machine of the active place.
//
// The platform owns the alarm state. The controller issues arm and disarm
// requests, runs a cosmetic local exit-delay countdown, and recomputes the
// view from the subsystem model and the security devices on every refresh.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Callback methods run on the executor.
type Controller struct {
	base      *subsystem.Controller[Callback]
	store     *model.Store
	req       Requester
	logger    subsystem.Logger
	devices   *model.ListSource
	countdown *countdown.Owner
	timeout   time.Duration
	now       func() time.Time

	deviceReg listener.Registration
}

// New creates an unbound security controller.
func New(deps Deps) *Controller {
	if deps.Executor == nil {
		deps.Executor = listener.Inline
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	if deps.CountdownInterval <= 0 {
		deps.CountdownInterval = countdown.DefaultInterval
	}
	if deps.LoadTimeout <= 0 {
		deps.LoadTimeout = defaultLoadTimeout
	}

	c := &Controller{
		store:     deps.Store,
		req:       deps.Requester,
		logger:    deps.Logger,
		devices:   model.NewListSource(deps.Store, deps.Fetcher),
		countdown: countdown.NewOwner(deps.Executor, deps.CountdownInterval),
		timeout:   deps.LoadTimeout,
		now:       time.Now,
	}
	c.base = subsystem.New[Callback](Namespace, c, deps.Deps)
	c.deviceReg = c.devices.AddModelListener(listener.Marshal(deps.Executor, c.onDeviceEvent))
	return c
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// BindPlace binds the security subsystem of placeID, cancelling any countdown
// from the previous place.
func (c *Controller) BindPlace(ctx context.Context, placeID string) error {
	c.countdown.Cancel()
	return c.base.BindPlace(ctx, placeID)
}

// Unbind stops the arming countdown and drops the place's subsystem and
// devices. Arm and Disarm return ErrNotBound until the next BindPlace.
func (c *Controller) Unbind() {
	c.countdown.Cancel()
	c.devices.Sync(nil)
	c.base.Unbind()
}

// SetCallback installs the UI callback and pushes the current view to it.
func (c *Controller) SetCallback(cb Callback) listener.Registration {
	return c.base.SetCallback(cb)
}

// Arm requests arming in mode. On success the platform's exit delay starts
// the local countdown. A TriggeredDevices rejection is delivered through
// PromptUnsecured and returned wrapped in ErrBypassRequired; any other
// failure is delivered through OnError and returned.
func (c *Controller) Arm(ctx context.Context, mode Mode) error {
	return c.arm(ctx, msgArm, mode)
}

// ArmBypassed requests arming in mode, bypassing unsecured devices.
func (c *Controller) ArmBypassed(ctx context.Context, mode Mode) error {
	return c.arm(ctx, msgArmBypassed, mode)
}

func (c *Controller) arm(ctx context.Context, msgType string, mode Mode) error {
	if !mode.Valid() {
		err := fmt.Errorf("%w: %q", ErrInvalidMode, mode)
		c.reportError(err)
		return err
	}

	addr := c.base.Address()
	if addr == "" {
		c.reportError(ErrNotBound)
		return ErrNotBound
	}

	resp, err := c.req.Request(ctx, addr, msgType, map[string]any{"mode": string(mode)})
	if err != nil {
		return c.armFailed(mode, err)
	}

	delay, _ := model.IntValue(resp["delaySec"])
	c.logger.Info("arm accepted", "mode", mode, "delay_sec", delay, "bypassed", msgType == msgArmBypassed)
	if delay > 0 {
		c.startCountdown(delay)
	}
	return nil
}

func (c *Controller) armFailed(mode Mode, err error) error {
	var perr *platform.Error
	if !errors.As(err, &perr) || perr.Code != CodeTriggeredDevices {
		c.logger.Warn("arm failed", "mode", mode, "error", err)
		c.reportError(err)
		return fmt.Errorf("arming %s: %w", mode, err)
	}

	prompt := Prompt{
		Mode:    mode,
		Reason:  perr.Message,
		Devices: c.deviceNames(c.triggeredBy(perr)),
	}
	c.logger.Info("arm blocked by unsecured devices", "mode", mode, "devices", len(prompt.Devices))
	c.base.Execute(func() {
		if cb, ok := c.base.Callback(); ok {
			cb.PromptUnsecured(prompt)
		}
	})
	return fmt.Errorf("%w: %w", ErrBypassRequired, err)
}

// triggeredBy returns the devices named by a TriggeredDevices error, falling
// back to the subsystem's triggered set.
func (c *Controller) triggeredBy(perr *platform.Error) []model.Address {
	if addrs := model.Addresses(model.StringsValue(perr.Attributes["triggeredDevices"])); len(addrs) > 0 {
		return addrs
	}
	if m := c.base.Model(); m != nil {
		return model.Addresses(m.Strings(AttrTriggeredDevices))
	}
	return nil
}

// Disarm requests disarming. The local countdown keeps running until a push
// confirms the new state.
func (c *Controller) Disarm(ctx context.Context) error {
	addr := c.base.Address()
	if addr == "" {
		c.reportError(ErrNotBound)
		return ErrNotBound
	}
	if _, err := c.req.Request(ctx, addr, msgDisarm, nil); err != nil {
		c.logger.Warn("disarm failed", "error", err)
		c.reportError(err)
		return fmt.Errorf("disarming: %w", err)
	}
	return nil
}

func (c *Controller) reportError(err error) {
	c.base.Execute(func() {
		if cb, ok := c.base.Callback(); ok {
			cb.OnError(err)
		}
	})
}

func (c *Controller) startCountdown(seconds int) {
	c.countdown.Start(seconds, func(remaining int) {
		if cb, ok := c.base.Callback(); ok {
			cb.OnArmingCountdown(remaining)
		}
	})
}

// syncArmingTimer starts the local countdown from the platform's advertised
// exit delay, unless one is already running.
func (c *Controller) syncArmingTimer(m *model.Model) {
	if c.countdown.Running() {
		return
	}

	delayAttr := AttrExitDelayOn
	if Mode(m.String(AttrAlarmMode)) == ModePartial {
		delayAttr = AttrExitDelayPartial
	}
	delay, ok := m.Int(delayAttr)
	if !ok || delay <= 0 {
		return
	}

	remaining := delay
	if armedAt, ok := m.Time(AttrLastArmedTime); ok {
		remaining = delay - int(c.now().Sub(armedAt)/time.Second)
	}
	if remaining <= 0 {
		return
	}
	c.logger.Debug("resuming arming countdown", "remaining", remaining)
	c.startCountdown(remaining)
}

// syncCountdown makes the local countdown follow the platform state.
func (c *Controller) syncCountdown(m *model.Model) {
	if State(m.String(AttrAlarmState)) == StateArming {
		c.syncArmingTimer(m)
		return
	}
	c.countdown.Cancel()
}

// OnSubsystemLoaded tracks the security devices and the countdown state.
func (c *Controller) OnSubsystemLoaded(m *model.Model) {
	c.syncDevices(m)
	c.syncCountdown(m)
}

// OnSubsystemChanged reacts to subsystem pushes.
func (c *Controller) OnSubsystemChanged(m *model.Model, keys model.AttributeSet) {
	if keys.Has(AttrSecurityDevices) {
		c.syncDevices(m)
	}
	switch {
	case keys.Has(AttrAlarmState):
		c.syncCountdown(m)
	case keys.HasAny(AttrExitDelayOn, AttrExitDelayPartial, AttrLastArmedTime) && State(m.String(AttrAlarmState)) == StateArming:
		c.syncArmingTimer(m)
	}
	if keys.HasNamespace(Namespace) {
		c.base.Refresh()
	}
}

// IsLoaded reports whether the subsystem and every security device are cached.
func (c *Controller) IsLoaded() bool {
	return c.base.SubsystemLoaded() && c.devices.IsLoaded()
}

// UpdateView pushes the recomputed view to cb.
func (c *Controller) UpdateView(cb Callback) {
	cb.OnSecurityChanged(c.View())
}

// syncDevices follows the subsystem's device list and loads new members in
// the background.
func (c *Controller) syncDevices(m *model.Model) {
	added := c.devices.Sync(model.Addresses(m.Strings(AttrSecurityDevices)))
	if len(added) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.devices.Load(ctx); err != nil {
			c.logger.Warn("loading security devices failed", "error", err)
			return
		}
		c.base.Execute(c.base.Refresh)
	}()
}

func (c *Controller) onDeviceEvent(e model.Event) {
	if e.Kind == model.EventChanged && !IsStatusChanged(e.Changed) {
		return
	}
	c.base.Refresh()
}

// View recomputes the security view from the cache.
func (c *Controller) View() View {
	m := c.base.Model()
	if m == nil {
		return View{}
	}

	v := View{
		State:     State(m.String(AttrAlarmState)),
		Mode:      Mode(m.String(AttrAlarmMode)),
		Devices:   len(c.devices.Addresses()),
		Triggered: c.deviceNames(model.Addresses(m.Strings(AttrTriggeredDevices))),
		Countdown: c.countdown.Remaining(),
	}
	if v.State == StateDisarmed {
		v.Mode = ModeOff
	}

	bypassed := make(map[model.Address]bool)
	for _, a := range model.Addresses(m.Strings(AttrBypassedDevices)) {
		bypassed[a] = true
	}
	for _, a := range model.Addresses(m.Strings(AttrArmedDevices)) {
		name := c.deviceName(a)
		switch {
		case bypassed[a]:
			v.Bypassed = append(v.Bypassed, name)
		case c.offline(a):
			v.Offline = append(v.Offline, name)
		default:
			v.Active = append(v.Active, name)
		}
	}
	return v
}

// CountdownRemaining returns the seconds left on the local arming countdown.
func (c *Controller) CountdownRemaining() int {
	return c.countdown.Remaining()
}

func (c *Controller) offline(addr model.Address) bool {
	dev := c.store.Get(addr)
	return dev != nil && dev.String(AttrConnState) == ConnOffline
}

func (c *Controller) deviceName(addr model.Address) string {
	if dev := c.store.Get(addr); dev != nil {
		if name := dev.String(AttrDeviceName); name != "" {
			return name
		}
	}
	return addr.ID()
}

func (c *Controller) deviceNames(addrs []model.Address) []string {
	names := make([]string, 0, len(addrs))
	for _, a := range addrs {
		names = append(names, c.deviceName(a))
	}
	return names
}

// Close cancels the countdown and detaches the controller.
func (c *Controller) Close() {
	c.countdown.Cancel()
	c.deviceReg.Unregister()
	c.devices.Close()
	c.base.Close()
}
