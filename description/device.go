package description

import (
	"fmt"

	"github.com/google/uuid"
)

// Icon describes a device icon (spec.md §3).
type Icon struct {
	MimeType string
	Width    int
	Height   int
	Depth    int
	URL      string
}

// Device is a tree-shaped UPnP device description (spec.md §3): a UDN,
// device type, friendly-name/manufacturer metadata, icons, services, and
// embedded devices. A Device owns its Services by value in a slice
// (forward edge only); Services look up their owner by UDN instead of
// holding a pointer, matching Design Notes §9.
type Device struct {
	UDN              string // "uuid:<UUID>"
	DeviceType       string // urn:schemas-upnp-org:device:<type>:<ver> or vendor URN
	FriendlyName     string
	Manufacturer     string
	ManufacturerURL  string
	ModelDescription string
	ModelName        string
	ModelNumber      string
	ModelURL         string
	SerialNumber     string
	PresentationURL  string

	Icons           []Icon
	Services        []*Service
	EmbeddedDevices []*Device
}

// NewUDN generates a fresh RFC 4122 UDN, grounded on the teacher's use
// of github.com/google/uuid for stable identifiers (model/id package).
func NewUDN() string {
	return "uuid:" + uuid.NewString()
}

// Validate checks the required fields spec.md §4.3 calls out ("strict
// about required fields (UDN, device/service type, action name,
// argument direction)") and re-validates every owned service.
func (d *Device) Validate() error {
	if d.UDN == "" {
		return fmt.Errorf("device: UDN is required")
	}
	if d.DeviceType == "" {
		return fmt.Errorf("device %s: deviceType is required", d.UDN)
	}
	for _, svc := range d.Services {
		svc.OwnerUDN = d.UDN
		if svc.Type == "" {
			return fmt.Errorf("device %s: service type is required", d.UDN)
		}
		if err := svc.Validate(); err != nil {
			return fmt.Errorf("device %s: %w", d.UDN, err)
		}
	}
	for _, child := range d.EmbeddedDevices {
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// FindService returns the service matching a service type URN, searching
// this device and its embedded devices depth-first.
func (d *Device) FindService(serviceType string) (*Service, bool) {
	for _, svc := range d.Services {
		if svc.Type == serviceType {
			return svc, true
		}
	}
	for _, child := range d.EmbeddedDevices {
		if svc, ok := child.FindService(serviceType); ok {
			return svc, true
		}
	}
	return nil, false
}

// AllServiceTypes returns every service type URN in this device tree,
// used by the discovery engine to build the USN advertisement set
// (spec.md §4.6, "one per (device, service) advertisement triplet").
func (d *Device) AllServiceTypes() []string {
	var out []string
	var walk func(*Device)
	walk = func(n *Device) {
		for _, svc := range n.Services {
			out = append(out, svc.Type)
		}
		for _, child := range n.EmbeddedDevices {
			walk(child)
		}
	}
	walk(d)
	return out
}
