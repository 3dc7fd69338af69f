package description

import (
	"encoding/xml"
	"fmt"
)

// Wire structures for the device descriptor and SCPD documents, modeled
// after the teacher's server/dlna/device.go DeviceDescription/Device/
// Service structs but generalized to an arbitrary, dynamically bound
// service/action/state-variable set instead of two hardcoded services.
//
// The reader is tolerant of unknown elements and out-of-order children
// (encoding/xml already is) but strict about the required fields
// spec.md §4.3 names: UDN, device/service type, action name, argument
// direction. The writer emits stable attribute order and UTF-8 with no
// BOM, relying on encoding/xml's deterministic struct-field ordering.

type deviceDescXML struct {
	XMLName     xml.Name       `xml:"urn:schemas-upnp-org:device-1-0 root"`
	SpecVersion specVersionXML `xml:"specVersion"`
	Device      deviceXML      `xml:"device"`
}

type specVersionXML struct {
	Major int `xml:"major"`
	Minor int `xml:"minor"`
}

type deviceXML struct {
	DeviceType       string        `xml:"deviceType"`
	FriendlyName     string        `xml:"friendlyName"`
	Manufacturer     string        `xml:"manufacturer"`
	ManufacturerURL  string        `xml:"manufacturerURL,omitempty"`
	ModelDescription string        `xml:"modelDescription,omitempty"`
	ModelName        string        `xml:"modelName"`
	ModelNumber      string        `xml:"modelNumber,omitempty"`
	ModelURL         string        `xml:"modelURL,omitempty"`
	SerialNumber     string        `xml:"serialNumber,omitempty"`
	UDN              string        `xml:"UDN"`
	IconList         *iconListXML  `xml:"iconList,omitempty"`
	ServiceList      serviceListXML `xml:"serviceList"`
	DeviceList       *deviceListXML `xml:"deviceList,omitempty"`
	PresentationURL  string        `xml:"presentationURL,omitempty"`
}

type deviceListXML struct {
	Devices []deviceXML `xml:"device"`
}

type iconListXML struct {
	Icons []iconXML `xml:"icon"`
}

type iconXML struct {
	MimeType string `xml:"mimetype"`
	Width    int    `xml:"width"`
	Height   int    `xml:"height"`
	Depth    int    `xml:"depth"`
	URL      string `xml:"url"`
}

type serviceListXML struct {
	Services []serviceRefXML `xml:"service"`
}

type serviceRefXML struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	SCPDURL     string `xml:"SCPDURL"`
	ControlURL  string `xml:"controlURL"`
	EventSubURL string `xml:"eventSubURL"`
}

// WriteDeviceDescriptor serializes a Device tree to its device.xml form.
func WriteDeviceDescriptor(d *Device) ([]byte, error) {
	doc := deviceDescXML{
		SpecVersion: specVersionXML{Major: 1, Minor: 1},
		Device:      toDeviceXML(d),
	}
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("description: write device descriptor: %w", err)
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, []byte(xml.Header)...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}

func toDeviceXML(d *Device) deviceXML {
	out := deviceXML{
		DeviceType:       d.DeviceType,
		FriendlyName:     d.FriendlyName,
		Manufacturer:     d.Manufacturer,
		ManufacturerURL:  d.ManufacturerURL,
		ModelDescription: d.ModelDescription,
		ModelName:        d.ModelName,
		ModelNumber:      d.ModelNumber,
		ModelURL:         d.ModelURL,
		SerialNumber:     d.SerialNumber,
		UDN:              d.UDN,
		PresentationURL:  d.PresentationURL,
	}
	if len(d.Icons) > 0 {
		il := &iconListXML{}
		for _, icon := range d.Icons {
			il.Icons = append(il.Icons, iconXML{
				MimeType: icon.MimeType, Width: icon.Width, Height: icon.Height, Depth: icon.Depth, URL: icon.URL,
			})
		}
		out.IconList = il
	}
	for _, svc := range d.Services {
		out.ServiceList.Services = append(out.ServiceList.Services, serviceRefXML{
			ServiceType: svc.Type,
			ServiceID:   svc.ID,
			SCPDURL:     svc.SCPDURL,
			ControlURL:  svc.ControlURL,
			EventSubURL: svc.EventSubURL,
		})
	}
	if len(d.EmbeddedDevices) > 0 {
		dl := &deviceListXML{}
		for _, child := range d.EmbeddedDevices {
			dl.Devices = append(dl.Devices, toDeviceXML(child))
		}
		out.DeviceList = dl
	}
	return out
}

// ReadDeviceDescriptor parses a device.xml document. Services are
// returned with only their URN/id/URLs populated — action and
// state-variable tables come from a separate ReadSCPD call per service.
func ReadDeviceDescriptor(data []byte) (*Device, error) {
	var doc deviceDescXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("description: read device descriptor: %w", err)
	}
	return fromDeviceXML(doc.Device)
}

func fromDeviceXML(dx deviceXML) (*Device, error) {
	if dx.UDN == "" {
		return nil, fmt.Errorf("description: device descriptor missing required UDN")
	}
	if dx.DeviceType == "" {
		return nil, fmt.Errorf("description: device %s missing required deviceType", dx.UDN)
	}
	d := &Device{
		UDN:              dx.UDN,
		DeviceType:       dx.DeviceType,
		FriendlyName:     dx.FriendlyName,
		Manufacturer:     dx.Manufacturer,
		ManufacturerURL:  dx.ManufacturerURL,
		ModelDescription: dx.ModelDescription,
		ModelName:        dx.ModelName,
		ModelNumber:      dx.ModelNumber,
		ModelURL:         dx.ModelURL,
		SerialNumber:     dx.SerialNumber,
		PresentationURL:  dx.PresentationURL,
	}
	if dx.IconList != nil {
		for _, ix := range dx.IconList.Icons {
			d.Icons = append(d.Icons, Icon{MimeType: ix.MimeType, Width: ix.Width, Height: ix.Height, Depth: ix.Depth, URL: ix.URL})
		}
	}
	for _, sx := range dx.ServiceList.Services {
		if sx.ServiceType == "" {
			return nil, fmt.Errorf("description: device %s: service missing required serviceType", dx.UDN)
		}
		svc := NewService(sx.ServiceType, sx.ServiceID)
		svc.OwnerUDN = dx.UDN
		svc.SCPDURL = sx.SCPDURL
		svc.ControlURL = sx.ControlURL
		svc.EventSubURL = sx.EventSubURL
		d.Services = append(d.Services, svc)
	}
	if dx.DeviceList != nil {
		for _, childX := range dx.DeviceList.Devices {
			child, err := fromDeviceXML(childX)
			if err != nil {
				return nil, err
			}
			d.EmbeddedDevices = append(d.EmbeddedDevices, child)
		}
	}
	return d, nil
}
