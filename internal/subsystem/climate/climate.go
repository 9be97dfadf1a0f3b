// Package climate follows the climate subsystem of the active place and
// reports its primary thermostat.
package climate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-client/internal/listener"
	"github.com/nerrad567/gray-logic-client/internal/model"
	"github.com/nerrad567/gray-logic-client/internal/subsystem"
)

// Namespace is the climate subsystem capability namespace.
const Namespace = "subclimate"

// Subsystem attributes.
const (
	AttrThermostats = "subclimate:thermostats"
	AttrPrimary     = "subclimate:primaryThermostat"
)

// Thermostat attributes.
const (
	AttrName         = "dev:name"
	AttrTemperature  = "temp:temperature"
	AttrHumidity     = "humid:humidity"
	AttrHeatSetPoint = "therm:heatsetpoint"
	AttrCoolSetPoint = "therm:coolsetpoint"
	AttrHVACMode     = "therm:hvacmode"
)

// msgSetAttributes writes attributes on a device.
const msgSetAttributes = "base:SetAttributes"

// HVAC modes accepted by SetHVACMode.
const (
	ModeOff  = "OFF"
	ModeHeat = "HEAT"
	ModeCool = "COOL"
	ModeAuto = "AUTO"
	ModeEco  = "ECO"
)

var (
	// ErrNoThermostat is returned when the place has no thermostat.
	ErrNoThermostat = errors.New("climate: no thermostat")

	// ErrInvalidMode is returned for an unknown HVAC mode.
	ErrInvalidMode = errors.New("climate: invalid hvac mode")
)

const defaultLoadTimeout = 30 * time.Second

// Requester issues platform requests.
type Requester interface {
	Request(ctx context.Context, dest model.Address, msgType string, attrs map[string]any) (map[string]any, error)
}

// Callback is the UI consumer of the climate controller.
type Callback interface {
	OnClimateChanged(v View)
	OnError(err error)
}

// View summarises the primary thermostat of the place.
type View struct {
	Thermostats int
	Primary     model.Address
	Name        string

	Temperature    float64
	HasTemperature bool
	Humidity       float64
	HasHumidity    bool

	HeatSetPoint float64
	CoolSetPoint float64
	Mode         string
}

// Deps holds the collaborators of a climate Controller.
type Deps struct {
	subsystem.Deps

	Requester   Requester
	LoadTimeout time.Duration
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Controller follows the climate subsystem of the active place.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Controller struct {
	base        *subsystem.Controller[Callback]
	req         Requester
	logger      subsystem.Logger
	thermostats *model.ListSource
	timeout     time.Duration

	thermostatReg listener.Registration
}

// New creates an unbound climate controller.
func New(deps Deps) *Controller {
	if deps.Executor == nil {
		deps.Executor = listener.Inline
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	if deps.LoadTimeout <= 0 {
		deps.LoadTimeout = defaultLoadTimeout
	}

	c := &Controller{
		req:         deps.Requester,
		logger:      deps.Logger,
		thermostats: model.NewListSource(deps.Store, deps.Fetcher),
		timeout:     deps.LoadTimeout,
	}
	c.base = subsystem.New[Callback](Namespace, c, deps.Deps)
	c.thermostatReg = c.thermostats.AddModelListener(listener.Marshal(deps.Executor, c.onThermostatEvent))
	return c
}

// BindPlace binds the climate subsystem of placeID.
func (c *Controller) BindPlace(ctx context.Context, placeID string) error {
	return c.base.BindPlace(ctx, placeID)
}

// Unbind drops the bound place's subsystem and thermostats.
func (c *Controller) Unbind() {
	c.thermostats.Sync(nil)
	c.base.Unbind()
}

// SetCallback installs the UI callback and pushes the current view to it.
func (c *Controller) SetCallback(cb Callback) listener.Registration {
	return c.base.SetCallback(cb)
}

// SetHVACMode changes the mode of the primary thermostat. The view updates
// when the platform pushes the new value.
func (c *Controller) SetHVACMode(ctx context.Context, mode string) error {
	switch mode {
	case ModeOff, ModeHeat, ModeCool, ModeAuto, ModeEco:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	primary := c.primary()
	if primary == "" {
		return ErrNoThermostat
	}
	if _, err := c.req.Request(ctx, primary, msgSetAttributes, map[string]any{AttrHVACMode: mode}); err != nil {
		c.base.Execute(func() {
			if cb, ok := c.base.Callback(); ok {
				cb.OnError(err)
			}
		})
		return fmt.Errorf("setting hvac mode: %w", err)
	}
	return nil
}

// OnSubsystemLoaded tracks the thermostat list.
func (c *Controller) OnSubsystemLoaded(m *model.Model) {
	c.syncThermostats(m)
}

// OnSubsystemChanged follows thermostat list and primary changes.
func (c *Controller) OnSubsystemChanged(m *model.Model, keys model.AttributeSet) {
	if keys.Has(AttrThermostats) {
		c.syncThermostats(m)
	}
	if keys.HasAny(AttrThermostats, AttrPrimary) {
		c.base.Refresh()
	}
}

// IsLoaded reports whether the subsystem and its thermostats are cached.
func (c *Controller) IsLoaded() bool {
	return c.base.SubsystemLoaded() && c.thermostats.IsLoaded()
}

// UpdateView pushes the recomputed view to cb.
func (c *Controller) UpdateView(cb Callback) {
	cb.OnClimateChanged(c.View())
}

func (c *Controller) syncThermostats(m *model.Model) {
	if added := c.thermostats.Sync(model.Addresses(m.Strings(AttrThermostats))); len(added) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.thermostats.Load(ctx); err != nil {
			c.logger.Warn("loading thermostats failed", "error", err)
			return
		}
		c.base.Execute(c.base.Refresh)
	}()
}

func (c *Controller) onThermostatEvent(e model.Event) {
	if e.Kind == model.EventChanged && !IsClimateChanged(e.Changed) {
		return
	}
	c.base.Refresh()
}

// IsClimateChanged reports whether a thermostat change affects the view.
func IsClimateChanged(keys model.AttributeSet) bool {
	return keys.Has(AttrName) || keys.HasNamespace("temp") || keys.HasNamespace("humid") || keys.HasNamespace("therm")
}

// primary returns the primary thermostat: the advertised one when it is a
// member, else the first thermostat.
func (c *Controller) primary() model.Address {
	addrs := c.thermostats.Addresses()
	if m := c.base.Model(); m != nil {
		if p := model.Address(m.String(AttrPrimary)); p != "" && c.thermostats.Contains(p) {
			return p
		}
	}
	if len(addrs) == 0 {
		return ""
	}
	return addrs[0]
}

// View recomputes the climate view from the cache.
func (c *Controller) View() View {
	v := View{Thermostats: len(c.thermostats.Addresses())}

	v.Primary = c.primary()
	if v.Primary == "" {
		return v
	}
	t := c.thermostats.Get(v.Primary)
	if t == nil {
		return v
	}

	v.Name = t.String(AttrName)
	v.Temperature, v.HasTemperature = t.Float(AttrTemperature)
	v.Humidity, v.HasHumidity = t.Float(AttrHumidity)
	v.HeatSetPoint, _ = t.Float(AttrHeatSetPoint)
	v.CoolSetPoint, _ = t.Float(AttrCoolSetPoint)
	v.Mode = t.String(AttrHVACMode)
	return v
}

// Close detaches the controller.
func (c *Controller) Close() {
	c.thermostatReg.Unregister()
	c.thermostats.Close()
	c.base.Close()
}
