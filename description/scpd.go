package description

import (
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/navidrome/goupnp-core/upnptype"
)

// SCPD wire structures, generalized from the teacher's hand-written
// contentDirectorySCPD/connectionManagerSCPD string constants
// (server/dlna/device.go) into a codec driven by the bound Service.

type scpdXML struct {
	XMLName          xml.Name             `xml:"urn:schemas-upnp-org:service-1-0 scpd"`
	SpecVersion      specVersionXML       `xml:"specVersion"`
	ActionList       actionListXML        `xml:"actionList"`
	ServiceStateTable stateTableXML       `xml:"serviceStateTable"`
}

type actionListXML struct {
	Actions []actionXML `xml:"action"`
}

type actionXML struct {
	Name      string        `xml:"name"`
	Arguments *argumentListXML `xml:"argumentList,omitempty"`
}

type argumentListXML struct {
	Arguments []argumentXML `xml:"argument"`
}

type argumentXML struct {
	Name                 string `xml:"name"`
	Direction            string `xml:"direction"`
	RetValue             *struct{} `xml:"retval,omitempty"`
	RelatedStateVariable string `xml:"relatedStateVariable"`
}

type stateTableXML struct {
	Variables []stateVariableXML `xml:"stateVariable"`
}

type stateVariableXML struct {
	SendEvents      string               `xml:"sendEvents,attr"`
	Name            string               `xml:"name"`
	DataType        string               `xml:"dataType"`
	DefaultValue    string               `xml:"defaultValue,omitempty"`
	AllowedValueList *allowedValueListXML `xml:"allowedValueList,omitempty"`
	AllowedValueRange *allowedRangeXML    `xml:"allowedValueRange,omitempty"`
}

type allowedValueListXML struct {
	Values []string `xml:"allowedValue"`
}

type allowedRangeXML struct {
	Minimum string `xml:"minimum"`
	Maximum string `xml:"maximum"`
	Step    string `xml:"step,omitempty"`
}

// WriteSCPD serializes a Service's action/state-variable tables to SCPD XML.
func WriteSCPD(s *Service) ([]byte, error) {
	doc := scpdXML{SpecVersion: specVersionXML{Major: 1, Minor: 0}}
	for _, a := range s.Actions() {
		ax := actionXML{Name: a.Name}
		var args []argumentXML
		for _, in := range a.Inputs {
			args = append(args, argumentXML{Name: in.Name, Direction: "in", RelatedStateVariable: in.RelatedStateVariable})
		}
		for _, out := range a.Outputs {
			argx := argumentXML{Name: out.Name, Direction: "out", RelatedStateVariable: out.RelatedStateVariable}
			if out.ReturnValue {
				argx.RetValue = &struct{}{}
			}
			args = append(args, argx)
		}
		if len(args) > 0 {
			ax.Arguments = &argumentListXML{Arguments: args}
		}
		doc.ActionList.Actions = append(doc.ActionList.Actions, ax)
	}
	for _, v := range s.StateVariables() {
		vx := stateVariableXML{Name: v.Name, DataType: v.Datatype.String()}
		if v.Event.SendEvents {
			vx.SendEvents = "yes"
		} else {
			vx.SendEvents = "no"
		}
		if v.HasDefault {
			vx.DefaultValue = v.DefaultValue
		}
		if len(v.AllowedValues) > 0 {
			vx.AllowedValueList = &allowedValueListXML{Values: v.AllowedValues}
		}
		if v.HasRange {
			vx.AllowedValueRange = &allowedRangeXML{
				Minimum: formatFloat(v.Range.Min),
				Maximum: formatFloat(v.Range.Max),
				Step:    formatFloat(v.Range.Step),
			}
		}
		doc.ServiceStateTable.Variables = append(doc.ServiceStateTable.Variables, vx)
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("description: write SCPD: %w", err)
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, []byte(xml.Header)...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}

// ReadSCPD parses an SCPD document into a bare Service (Type/ID/URLs are
// not part of SCPD XML; the caller fills those in from the owning
// device's serviceList entry). State variables are read without
// accessors — remote services never need one, only local bound ones do.
func ReadSCPD(data []byte) (*Service, error) {
	var doc scpdXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("description: read SCPD: %w", err)
	}
	svc := NewService("", "")
	for _, vx := range doc.ServiceStateTable.Variables {
		if vx.Name == "" || vx.DataType == "" {
			return nil, fmt.Errorf("description: state variable missing required name/dataType")
		}
		dt, err := upnptype.New(vx.DataType)
		if err != nil {
			return nil, fmt.Errorf("description: state variable %s: %w", vx.Name, err)
		}
		v := &StateVariable{
			Name:       vx.Name,
			Datatype:   dt,
			HasDefault: vx.DefaultValue != "",
			DefaultValue: vx.DefaultValue,
			Event:      EventPolicy{SendEvents: vx.SendEvents == "yes"},
		}
		if vx.AllowedValueList != nil {
			v.AllowedValues = vx.AllowedValueList.Values
		}
		if vx.AllowedValueRange != nil {
			min, err1 := strconv.ParseFloat(vx.AllowedValueRange.Minimum, 64)
			max, err2 := strconv.ParseFloat(vx.AllowedValueRange.Maximum, 64)
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("description: state variable %s: invalid allowedValueRange", vx.Name)
			}
			step := 1.0
			if vx.AllowedValueRange.Step != "" {
				if s, err := strconv.ParseFloat(vx.AllowedValueRange.Step, 64); err == nil {
					step = s
				}
			}
			v.HasRange = true
			v.Range = upnptype.Range{Min: min, Max: max, Step: step}
		}
		svc.AddStateVariable(v)
	}
	for _, ax := range doc.ActionList.Actions {
		if ax.Name == "" {
			return nil, fmt.Errorf("description: action missing required name")
		}
		a := &Action{Name: ax.Name}
		if ax.Arguments != nil {
			for _, argx := range ax.Arguments.Arguments {
				if argx.Direction != "in" && argx.Direction != "out" {
					return nil, fmt.Errorf("description: action %s argument %s: invalid/missing direction %q", ax.Name, argx.Name, argx.Direction)
				}
				arg := Argument{
					Name:                 argx.Name,
					RelatedStateVariable: argx.RelatedStateVariable,
					ReturnValue:          argx.RetValue != nil,
				}
				if argx.Direction == "in" {
					arg.Direction = In
					a.Inputs = append(a.Inputs, arg)
				} else {
					arg.Direction = Out
					a.Outputs = append(a.Outputs, arg)
				}
			}
		}
		svc.AddAction(a)
	}
	return svc, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
