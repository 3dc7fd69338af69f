package soap

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// DecodeActionRequest parses an incoming SOAP control request envelope
// and returns the bound action name, declared service type, and its
// arguments in document order (spec.md §4.3). It rejects envelopes
// with anything other than exactly one child element in the body, per
// spec.md's "multiple body children" edge case.
func DecodeActionRequest(data []byte) (*ActionRequest, error) {
	node, err := decodeBodyChild(data)
	if err != nil {
		return nil, err
	}
	return &ActionRequest{
		ServiceType: node.XMLName.Space,
		ActionName:  node.XMLName.Local,
		Arguments:   nodeArguments(node),
	}, nil
}

// DecodeActionResponse parses a SOAP control response envelope. The
// action element's local name is expected to carry the "Response"
// suffix, which is stripped to recover the action name.
func DecodeActionResponse(data []byte) (*ActionResponse, error) {
	node, err := decodeBodyChild(data)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(node.XMLName.Local, "Response")
	return &ActionResponse{
		ServiceType: node.XMLName.Space,
		ActionName:  name,
		Arguments:   nodeArguments(node),
	}, nil
}

// DecodeFault parses a SOAP fault envelope into a *Fault. Returns an
// error (not a *Fault) if the document isn't a well-formed fault
// envelope at all.
func DecodeFault(data []byte) (*Fault, error) {
	var fe faultEnvelope
	if err := xml.Unmarshal(data, &fe); err != nil {
		return nil, fmt.Errorf("soap: decode fault: %w", err)
	}
	if fe.Body.Fault.Detail.UPnPError.ErrorCode == 0 {
		return nil, fmt.Errorf("soap: decode fault: missing UPnPError detail")
	}
	return &Fault{
		Code:        fe.Body.Fault.Detail.UPnPError.ErrorCode,
		Description: fe.Body.Fault.Detail.UPnPError.ErrorDescription,
	}, nil
}

// IsFault reports whether a response body is a SOAP fault rather than
// a normal action response, by sniffing for a <Fault> body child
// without committing to a full decode.
func IsFault(data []byte) bool {
	return strings.Contains(string(data), ":Fault>") || strings.Contains(string(data), "<Fault>")
}

func decodeBodyChild(data []byte) (*genericNode, error) {
	var env envelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("soap: decode envelope: %w", err)
	}

	var holder struct {
		Children []genericNode `xml:",any"`
	}
	// Body.Content is innerxml of <s:Body>...</s:Body>; wrap it so the
	// any-children rule applies at the top level.
	wrapped := append([]byte("<wrap>"), append(env.Body.Content, []byte("</wrap>")...)...)
	if err := xml.Unmarshal(wrapped, &holder); err != nil {
		return nil, fmt.Errorf("soap: decode body: %w", err)
	}
	switch len(holder.Children) {
	case 0:
		return nil, fmt.Errorf("soap: body has no action element")
	case 1:
		return &holder.Children[0], nil
	default:
		return nil, fmt.Errorf("soap: body has %d children, expected exactly one action element", len(holder.Children))
	}
}

// nodeArguments flattens a decoded action element's immediate children
// into ordered name/value argument pairs.
func nodeArguments(node *genericNode) []Argument {
	args := make([]Argument, 0, len(node.Children))
	for _, c := range node.Children {
		args = append(args, Argument{Name: c.XMLName.Local, Value: strings.TrimSpace(c.Content)})
	}
	return args
}

// ArgumentValue looks up a named argument's value, returning the
// ErrInvalidArgs fault case as a bool when it's missing.
func ArgumentValue(args []Argument, name string) (string, bool) {
	for _, a := range args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}
