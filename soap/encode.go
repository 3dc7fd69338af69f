package soap

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// actionElement renders one SOAP action/response element with a
// dynamic tag name and an ordered list of child arguments. encoding/xml
// has no declarative way to express a runtime-chosen element name with
// an xmlns:u attribute, so it implements xml.Marshaler directly —
// mirroring the teacher's approach of hand-building the action element
// string around an xml.Marshal'd body (server/sonos_cast/avtransport.go).
type actionElement struct {
	Prefix      string // "u" for both requests and responses; "" renders an unprefixed name
	LocalName   string // e.g. "SetAVTransportURI" or "SetAVTransportURIResponse"
	ServiceType string
	Arguments   []Argument
}

func (e actionElement) MarshalXML(enc *xml.Encoder, _ xml.StartElement) error {
	name := e.LocalName
	if e.Prefix != "" {
		name = e.Prefix + ":" + e.LocalName
	}
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if e.Prefix != "" {
		start.Attr = append(start.Attr, xml.Attr{
			Name:  xml.Name{Local: "xmlns:" + e.Prefix},
			Value: e.ServiceType,
		})
	} else {
		start.Attr = append(start.Attr, xml.Attr{
			Name:  xml.Name{Local: "xmlns"},
			Value: e.ServiceType,
		})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, arg := range e.Arguments {
		argStart := xml.StartElement{Name: xml.Name{Local: arg.Name}}
		if err := enc.EncodeToken(argStart); err != nil {
			return err
		}
		if err := enc.EncodeToken(xml.CharData(arg.Value)); err != nil {
			return err
		}
		if err := enc.EncodeToken(xml.EndElement{Name: argStart.Name}); err != nil {
			return err
		}
	}
	return enc.EncodeToken(xml.EndElement{Name: start.Name})
}

// EncodeActionRequest renders a SOAP control request envelope, per
// spec.md §4.3: "<s:Envelope><s:Body><u:ActionName
// xmlns:u="…"><arg>…</arg>…</u:ActionName></s:Body></s:Envelope>".
func EncodeActionRequest(req ActionRequest) ([]byte, error) {
	elem := actionElement{Prefix: "u", LocalName: req.ActionName, ServiceType: req.ServiceType, Arguments: req.Arguments}
	return wrapEnvelope(elem)
}

// EncodeActionResponse renders a SOAP control response envelope:
// "<u:ActionNameResponse>" with output arguments (spec.md §4.3).
func EncodeActionResponse(resp ActionResponse) ([]byte, error) {
	elem := actionElement{Prefix: "u", LocalName: resp.ActionName + "Response", ServiceType: resp.ServiceType, Arguments: resp.Arguments}
	return wrapEnvelope(elem)
}

func wrapEnvelope(elem actionElement) ([]byte, error) {
	var inner bytes.Buffer
	enc := xml.NewEncoder(&inner)
	if err := enc.Encode(elem); err != nil {
		return nil, fmt.Errorf("soap: encode action element: %w", err)
	}

	var out bytes.Buffer
	out.WriteString(xml.Header)
	out.WriteString(`<s:Envelope xmlns:s="` + soapEnvelopeNS + `" s:encodingStyle="` + soapEncodingStyle + `">`)
	out.WriteString(`<s:Body>`)
	out.Write(inner.Bytes())
	out.WriteString(`</s:Body></s:Envelope>`)
	return out.Bytes(), nil
}

// EncodeFault renders a SOAP fault envelope carrying a UPnP error code
// (spec.md §4.3, §7).
func EncodeFault(code int, description string) []byte {
	return []byte(fmt.Sprintf(
		`%s<s:Envelope xmlns:s="%s" s:encodingStyle="%s"><s:Body><s:Fault>`+
			`<faultcode>s:Client</faultcode><faultstring>UPnPError</faultstring>`+
			`<detail><UPnPError xmlns="urn:schemas-upnp-org:control-1-0">`+
			`<errorCode>%d</errorCode><errorDescription>%s</errorDescription>`+
			`</UPnPError></detail></s:Fault></s:Body></s:Envelope>`,
		xml.Header, soapEnvelopeNS, soapEncodingStyle, code, xmlEscape(description)))
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
