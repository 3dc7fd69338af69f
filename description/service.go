package description

import "fmt"

// Service identifies and holds one UPnP service (spec.md §3): an action
// table, a state-variable table, and the three URL paths. OwnerUDN is a
// lookup key into the registry's device table rather than a pointer back
// to the owning Device, avoiding the Service -> Device -> Service cycle
// (Design Notes §9, "arena + ids").
type Service struct {
	Type    string // urn:schemas-upnp-org:service:<type>:<ver>
	ID      string // urn:upnp-org:serviceId:<id>
	OwnerUDN string

	SCPDURL     string
	ControlURL  string
	EventSubURL string

	actionNames []string
	actions     map[string]*Action

	variableNames []string
	variables     map[string]*StateVariable
}

// NewService creates an empty service ready for AddAction/AddStateVariable.
func NewService(serviceType, serviceID string) *Service {
	return &Service{
		Type:      serviceType,
		ID:        serviceID,
		actions:   make(map[string]*Action),
		variables: make(map[string]*StateVariable),
	}
}

func (s *Service) AddStateVariable(v *StateVariable) {
	if _, exists := s.variables[v.Name]; !exists {
		s.variableNames = append(s.variableNames, v.Name)
	}
	s.variables[v.Name] = v
}

func (s *Service) AddAction(a *Action) {
	if _, exists := s.actions[a.Name]; !exists {
		s.actionNames = append(s.actionNames, a.Name)
	}
	s.actions[a.Name] = a
}

// Action looks up an action by name.
func (s *Service) Action(name string) (*Action, bool) {
	a, ok := s.actions[name]
	return a, ok
}

// StateVariable looks up a state variable by name.
func (s *Service) StateVariable(name string) (*StateVariable, bool) {
	v, ok := s.variables[name]
	return v, ok
}

// Actions returns actions in declaration order.
func (s *Service) Actions() []*Action {
	out := make([]*Action, len(s.actionNames))
	for i, n := range s.actionNames {
		out[i] = s.actions[n]
	}
	return out
}

// StateVariables returns state variables in declaration order.
func (s *Service) StateVariables() []*StateVariable {
	out := make([]*StateVariable, len(s.variableNames))
	for i, n := range s.variableNames {
		out[i] = s.variables[n]
	}
	return out
}

// EventedVariables returns the state variables with sendEvents=true, in
// declaration order — used by the service manager to build the initial
// GENA event (spec.md §4.8).
func (s *Service) EventedVariables() []*StateVariable {
	var out []*StateVariable
	for _, n := range s.variableNames {
		v := s.variables[n]
		if v.Event.SendEvents {
			out = append(out, v)
		}
	}
	return out
}

// CopyActionsAndVariablesFrom merges in the action/state-variable
// tables read from a separate SCPD document (description.ReadSCPD
// returns a bare Service with Type/ID/URLs unset, since those live in
// the owning device's serviceList entry instead). Used by the
// discovery engine's remote-device descriptor fetch (spec.md §4.6).
func (s *Service) CopyActionsAndVariablesFrom(scpd *Service) {
	for _, v := range scpd.StateVariables() {
		s.AddStateVariable(v)
	}
	for _, a := range scpd.Actions() {
		s.AddAction(a)
	}
}

// Validate checks the cross-table invariant from spec.md §3: "every
// action argument references a state variable declared by the same
// service". Call after all actions/variables have been added.
func (s *Service) Validate() error {
	for _, v := range s.variables {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	for _, a := range s.actions {
		if err := a.Validate(); err != nil {
			return err
		}
		for _, arg := range append(append([]Argument{}, a.Inputs...), a.Outputs...) {
			if _, ok := s.variables[arg.RelatedStateVariable]; !ok {
				return fmt.Errorf("action %s argument %s: related state variable %q not declared in service %s",
					a.Name, arg.Name, arg.RelatedStateVariable, s.Type)
			}
		}
	}
	return nil
}
