package description

import (
	"fmt"

	"github.com/navidrome/goupnp-core/internal/upnplog"
	"github.com/navidrome/goupnp-core/upnptype"
)

// BindingError reports a host-side misconfiguration of a service found
// while binding a ServiceDef — spec.md §4.2's LocalServiceBindingException,
// renamed to fit Go error conventions. Binding fails fast: a single bad
// element aborts registration of the whole service.
type BindingError struct {
	Element string
	Reason  error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("description: binding %s: %v", e.Element, e.Reason)
}

func (e *BindingError) Unwrap() error { return e.Reason }

func bindErr(element string, reason error) error {
	return &BindingError{Element: element, Reason: reason}
}

// RangeDef declares a numeric allowed range before binding.
type RangeDef struct {
	Min, Max, Step float64
}

// AllowedValueProvider supplies a string variable's allowed values at
// bind time (spec.md §4.2, option (c)). The produced list is cached on
// the bound StateVariable so descriptor XML stays stable across runs
// (Design Notes, "Dynamic allowed-value/range providers").
type AllowedValueProvider func() ([]string, error)

// StateVariableDef is the declarative input to Bind for one state
// variable.
type StateVariableDef struct {
	Name                string
	DataType            string
	HasDefault          bool
	DefaultValue        string
	AllowedValues       []string
	AllowedValueProvider AllowedValueProvider
	Range               *RangeDef
	SendEvents          bool
	EventMaxRateMillis  int64
	EventMinimumDelta   float64
	Accessor            func() (string, error)
}

// ArgumentDef is the declarative input to Bind for one action argument.
type ArgumentDef struct {
	Name                 string
	Direction            Direction
	RelatedStateVariable string // optional; defaults to A_ARG_TYPE_<Name>
	ReturnValue          bool
}

// ActionDef is the declarative input to Bind for one action.
type ActionDef struct {
	Name      string
	Arguments []ArgumentDef
}

// ServiceDef is the full declarative description a binder turns into a
// *Service, standing in for the source's annotation/builder input
// (spec.md §4.2).
type ServiceDef struct {
	Type           string
	ID             string
	SCPDURL        string
	ControlURL     string
	EventSubURL    string
	Actions        []ActionDef
	StateVariables []StateVariableDef
}

// Bind turns a ServiceDef into a validated *Service, applying every rule
// in spec.md §4.2. It fails fast on the first violation, naming the
// offending element as BindingError requires.
func Bind(def ServiceDef) (*Service, error) {
	if def.Type == "" {
		return nil, bindErr("service", fmt.Errorf("service type is required"))
	}
	svc := NewService(def.Type, def.ID)
	svc.SCPDURL = def.SCPDURL
	svc.ControlURL = def.ControlURL
	svc.EventSubURL = def.EventSubURL

	for _, vd := range def.StateVariables {
		v, err := bindStateVariable(vd)
		if err != nil {
			return nil, err
		}
		svc.AddStateVariable(v)
	}

	for _, ad := range def.Actions {
		a, err := bindAction(svc, ad)
		if err != nil {
			return nil, err
		}
		svc.AddAction(a)
	}

	if err := svc.Validate(); err != nil {
		return nil, bindErr(def.Type, err)
	}
	return svc, nil
}

func bindStateVariable(vd StateVariableDef) (*StateVariable, error) {
	dt, err := upnptype.New(vd.DataType)
	if err != nil {
		return nil, bindErr(vd.Name, err)
	}

	v := &StateVariable{
		Name:         vd.Name,
		Datatype:     dt,
		HasDefault:   vd.HasDefault,
		DefaultValue: vd.DefaultValue,
		Accessor:     vd.Accessor,
		Event: EventPolicy{
			SendEvents:          vd.SendEvents,
			MaxRateMilliseconds: vd.EventMaxRateMillis,
			MinimumDelta:        vd.EventMinimumDelta,
		},
	}

	// Allowed values: explicit list or provider (spec.md §4.2 (a)/(c)).
	switch {
	case len(vd.AllowedValues) > 0:
		v.AllowedValues = vd.AllowedValues
	case vd.AllowedValueProvider != nil:
		values, err := vd.AllowedValueProvider()
		if err != nil {
			return nil, bindErr(vd.Name, fmt.Errorf("allowed value provider failed: %w", err))
		}
		v.AllowedValues = values // cached on the variable for stable descriptor XML
	}
	for _, av := range v.AllowedValues {
		if len(av) > 32 {
			return nil, bindErr(vd.Name, fmt.Errorf("allowed value %q exceeds UPnP's 32 character limit", av))
		}
	}

	if vd.Range != nil {
		if !dt.Kind.IsNumeric() {
			return nil, bindErr(vd.Name, fmt.Errorf("range only valid for numeric types"))
		}
		v.HasRange = true
		v.Range = upnptype.Range{Min: vd.Range.Min, Max: vd.Range.Max, Step: vd.Range.Step}
		if err := v.Range.Validate(); err != nil {
			return nil, bindErr(vd.Name, err)
		}
	}

	if vd.SendEvents && v.Accessor == nil {
		return nil, bindErr(vd.Name, fmt.Errorf("sendEvents requires an accessor to read the current value"))
	}

	if vd.EventMinimumDelta != 0 && !dt.Kind.IsIntegral() {
		// spec.md §9 Open Question (a): no-op for non-integer types, but
		// warn at bind time instead of silently ignoring it.
		upnplog.Warn(nil, "eventMinimumDelta is a no-op for non-integer datatype", nil, "variable", vd.Name, "dataType", vd.DataType)
	}

	if err := v.Validate(); err != nil {
		return nil, bindErr(vd.Name, err)
	}
	return v, nil
}

func bindAction(svc *Service, ad ActionDef) (*Action, error) {
	if ad.Name == "" {
		return nil, bindErr("action", fmt.Errorf("action name is required"))
	}
	a := &Action{Name: ad.Name}
	returnSeen := false
	for _, argd := range ad.Arguments {
		if argd.Name == "" {
			return nil, bindErr(ad.Name, fmt.Errorf("argument name is required"))
		}
		related := argd.RelatedStateVariable
		if related == "" {
			related = "A_ARG_TYPE_" + argd.Name
		}
		if _, ok := svc.StateVariable(related); !ok {
			return nil, bindErr(ad.Name, fmt.Errorf("argument %s: no related state variable %q declared", argd.Name, related))
		}
		arg := Argument{
			Name:                 argd.Name,
			Direction:            argd.Direction,
			RelatedStateVariable: related,
			ReturnValue:          argd.ReturnValue,
		}
		if arg.ReturnValue {
			if arg.Direction != Out {
				return nil, bindErr(ad.Name, fmt.Errorf("argument %s: return value must be an output argument", argd.Name))
			}
			if returnSeen {
				return nil, bindErr(ad.Name, fmt.Errorf("at most one output argument may be the return value"))
			}
			returnSeen = true
		}
		switch arg.Direction {
		case In:
			a.Inputs = append(a.Inputs, arg)
		case Out:
			a.Outputs = append(a.Outputs, arg)
		}
	}
	if err := a.Validate(); err != nil {
		return nil, bindErr(ad.Name, err)
	}
	return a, nil
}
