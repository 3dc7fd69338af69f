// Package gena implements the GENA eventing codec and subscription
// model from spec.md §4.3/§4.6: property-set NOTIFY bodies, the
// LastChange aggregation idiom, and the subscription bookkeeping
// shared by the eventing server and client engines. Grounded on the
// soap package's envelope-codec idiom (no GENA code was retrieved from
// the teacher; this package follows spec.md directly, styled after
// soap/soap.go and description/xml.go's tolerant-reader conventions).
package gena

import (
	"encoding/xml"
	"fmt"
)

const propertySetNS = "urn:schemas-upnp-org:event-1-0"

// Property is one name/value pair inside a property set.
type Property struct {
	Name  string
	Value string
}

type propertySetXML struct {
	XMLName    xml.Name      `xml:"urn:schemas-upnp-org:event-1-0 propertyset"`
	Properties []propertyXML `xml:"property"`
}

type propertyXML struct {
	Inner []byte `xml:",innerxml"`
}

// EncodePropertySet renders a GENA NOTIFY body from a set of evented
// properties (spec.md §4.3): one <e:property> per variable, each
// wrapping a single named element holding the raw (already-escaped)
// value.
func EncodePropertySet(props []Property) ([]byte, error) {
	doc := propertySetXML{}
	for _, p := range props {
		inner, err := xml.Marshal(struct {
			XMLName xml.Name
			Value   string `xml:",chardata"`
		}{XMLName: xml.Name{Local: p.Name}, Value: p.Value})
		if err != nil {
			return nil, fmt.Errorf("gena: encode property %s: %w", p.Name, err)
		}
		doc.Properties = append(doc.Properties, propertyXML{Inner: inner})
	}
	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("gena: encode property set: %w", err)
	}
	out := make([]byte, 0, len(xml.Header)+len(body))
	out = append(out, []byte(xml.Header)...)
	out = append(out, body...)
	return out, nil
}

// DecodePropertySet parses a NOTIFY body into its properties, tolerant
// of whichever namespace prefix the sender used for the outer element
// (UPnP devices vary here in practice).
func DecodePropertySet(data []byte) ([]Property, error) {
	var raw struct {
		XMLName    xml.Name
		Properties []struct {
			Children []struct {
				XMLName xml.Name
				Content string `xml:",chardata"`
			} `xml:",any"`
		} `xml:"property"`
	}
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("gena: decode property set: %w", err)
	}
	var props []Property
	for _, p := range raw.Properties {
		for _, c := range p.Children {
			props = append(props, Property{Name: c.XMLName.Local, Value: c.Content})
		}
	}
	return props, nil
}
