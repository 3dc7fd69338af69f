// Package control implements the Control protocol engine from spec.md
// §4.6: server-side SOAP dispatch to a bound service.Manager, and
// client-side envelope building/posting against a remote service's
// control URL. Grounded on the teacher's server/dlna/control.go
// (envelope parse → action lookup → dispatch → fault-on-failure
// pattern) and server/sonos_cast/avtransport.go's sendAction client
// idiom, generalized from two hardcoded services to the bound
// description/service model.
package control

import (
	"context"
	"fmt"
	"strings"

	"github.com/navidrome/goupnp-core/description"
	"github.com/navidrome/goupnp-core/internal/upnplog"
	"github.com/navidrome/goupnp-core/soap"
	"github.com/navidrome/goupnp-core/transport"
)

// ServiceLookup resolves a (UDN, serviceId) control-URL path into a
// bound manager. Implemented by upnp.Service over its table of
// managers; kept as a function type here so control never imports
// service (service already imports soap and gena, not control).
type ServiceLookup func(udn, serviceID string) (Invoker, bool)

// Invoker is the subset of *service.Manager the control engine needs.
type Invoker interface {
	Service() *description.Service
	Invoke(ctx context.Context, actionName string, args []soap.Argument) ([]soap.Argument, error)
}

// Server is the C6 Control engine's server side.
type Server struct {
	lookup ServiceLookup
	prefix string
}

// NewServer binds a Control server to a service lookup and the HTTP
// path prefix descriptor URLs use (spec.md §6).
func NewServer(lookup ServiceLookup, prefix string) *Server {
	return &Server{lookup: lookup, prefix: prefix}
}

// Matches implements router.StreamEngine: any POST to a */control
// path belongs to this engine.
func (s *Server) Matches(req *transport.StreamRequest) bool {
	return req.Method == "POST" && strings.HasSuffix(req.Path, "/control")
}

// HandleStream implements router.StreamEngine (spec.md §4.6 "Control
// (server)"): parse the envelope, look up the action, invoke under the
// service manager's lock, serialize outputs, or emit a SOAP fault.
func (s *Server) HandleStream(ctx context.Context, req *transport.StreamRequest) *transport.StreamResponse {
	udn, serviceID, ok := parseControlPath(s.prefix, req.Path)
	if !ok {
		return faultResponse(&soap.Fault{Code: soap.ErrInvalidAction, Description: "Invalid Action"})
	}

	svc, ok := s.lookup(udn, serviceID)
	if !ok {
		return faultResponse(&soap.Fault{Code: soap.ErrInvalidAction, Description: "Invalid Action"})
	}

	areq, err := soap.DecodeActionRequest(req.Body)
	if err != nil {
		upnplog.Debug(ctx, "malformed SOAP control request", "error", err.Error())
		return faultResponse(&soap.Fault{Code: soap.ErrInvalidArgs, Description: "Invalid Args"})
	}

	outputs, err := svc.Invoke(ctx, areq.ActionName, areq.Arguments)
	if err != nil {
		fault, ok := err.(*soap.Fault)
		if !ok {
			fault = &soap.Fault{Code: soap.ErrActionFailed, Description: err.Error()}
		}
		return faultResponse(fault)
	}

	body, err := soap.EncodeActionResponse(soap.ActionResponse{
		ServiceType: svc.Service().Type,
		ActionName:  areq.ActionName,
		Arguments:   outputs,
	})
	if err != nil {
		return faultResponse(&soap.Fault{Code: soap.ErrActionFailed, Description: "Action Failed"})
	}
	resp := transport.NewStreamResponse(200, `text/xml; charset="utf-8"`, body)
	return resp
}

func faultResponse(f *soap.Fault) *transport.StreamResponse {
	resp := transport.NewStreamResponse(500, `text/xml; charset="utf-8"`, soap.EncodeFault(f.Code, f.Description))
	return resp
}

// parseControlPath extracts (udn, serviceID) from
// "<prefix>/dev/<udn>/svc/<serviceId>/control".
func parseControlPath(prefix, path string) (udn, serviceID string, ok bool) {
	path = strings.TrimPrefix(path, prefix)
	path = strings.TrimSuffix(path, "/control")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 || parts[0] != "dev" || parts[2] != "svc" {
		return "", "", false
	}
	return parts[1], parts[3], true
}

// Client is the C6 Control engine's client side.
type Client struct {
	http *transport.HTTPClient
}

// InvokeRaw performs a plain GET, used by the discovery engine to
// fetch device.xml and SCPD documents (spec.md §4.6 "fetch and parse
// the device descriptor, then each service's SCPD").
func (c *Client) InvokeRaw(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.http.Request(ctx, url, &transport.StreamRequest{Method: "GET", Headers: transport.NewHeader()})
	if err != nil {
		return nil, fmt.Errorf("control: fetch %s: %w", url, err)
	}
	if resp.Status != 200 {
		return nil, fmt.Errorf("control: fetch %s: status %d", url, resp.Status)
	}
	return resp.Body, nil
}

// NewClient returns a Control client using the given timeouts.
func NewClient(timeouts transport.Timeouts) *Client {
	return &Client{http: transport.NewHTTPClient(timeouts)}
}

// Invoke builds the envelope, POSTs to controlURL with the required
// headers, and parses the response or fault (spec.md §4.6 "Control
// (client)").
func (c *Client) Invoke(ctx context.Context, controlURL, serviceType, actionName string, args []soap.Argument) ([]soap.Argument, error) {
	body, err := soap.EncodeActionRequest(soap.ActionRequest{ServiceType: serviceType, ActionName: actionName, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("control: encode request: %w", err)
	}

	headers := transport.NewHeader()
	headers.Set("Content-Type", `text/xml; charset="utf-8"`)
	headers.Set("SOAPAction", soap.SOAPAction(serviceType, actionName))

	resp, err := c.http.Request(ctx, controlURL, &transport.StreamRequest{Method: "POST", Headers: headers, Body: body})
	if err != nil {
		return nil, fmt.Errorf("control: request failed: %w", err)
	}

	if resp.Status != 200 {
		fault, ferr := soap.DecodeFault(resp.Body)
		if ferr != nil {
			return nil, fmt.Errorf("control: action failed with status %d", resp.Status)
		}
		return nil, fault
	}

	aresp, err := soap.DecodeActionResponse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("control: decode response: %w", err)
	}
	return aresp.Arguments, nil
}
