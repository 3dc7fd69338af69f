package control

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/goupnp-core/description"
	"github.com/navidrome/goupnp-core/soap"
	"github.com/navidrome/goupnp-core/transport"
	"github.com/navidrome/goupnp-core/upnptype"
)

type fakeInvoker struct {
	svc     *description.Service
	outputs []soap.Argument
	err     error
}

func (f *fakeInvoker) Service() *description.Service { return f.svc }
func (f *fakeInvoker) Invoke(ctx context.Context, actionName string, args []soap.Argument) ([]soap.Argument, error) {
	return f.outputs, f.err
}

func testService() *description.Service {
	svc := description.NewService("urn:schemas-upnp-org:service:SwitchPower:1", "urn:upnp-org:serviceId:SwitchPower1")
	svc.AddStateVariable(&description.StateVariable{Name: "Target", Datatype: upnptype.MustNew("boolean")})
	return svc
}

func TestParseControlPath(t *testing.T) {
	udn, serviceID, ok := parseControlPath("/upnp", "/upnp/dev/uuid:abc/svc/urn:upnp-org:serviceId:SwitchPower1/control")
	require.True(t, ok)
	assert.Equal(t, "uuid:abc", udn)
	assert.Equal(t, "urn:upnp-org:serviceId:SwitchPower1", serviceID)

	_, _, ok = parseControlPath("/upnp", "/upnp/dev/uuid:abc/control")
	assert.False(t, ok)
}

func TestServerHandleStreamSuccess(t *testing.T) {
	inv := &fakeInvoker{svc: testService(), outputs: []soap.Argument{{Name: "RetTargetValue", Value: "1"}}}
	s := NewServer(func(udn, serviceID string) (Invoker, bool) { return inv, true }, "/upnp")

	reqBody, err := soap.EncodeActionRequest(soap.ActionRequest{
		ServiceType: inv.svc.Type, ActionName: "GetTarget",
	})
	require.NoError(t, err)

	req := &transport.StreamRequest{
		Method: "POST",
		Path:   "/upnp/dev/uuid:abc/svc/urn:upnp-org:serviceId:SwitchPower1/control",
		Body:   reqBody,
	}
	assert.True(t, s.Matches(req))

	resp := s.HandleStream(context.Background(), req)
	require.Equal(t, 200, resp.Status)

	decoded, err := soap.DecodeActionResponse(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "GetTarget", decoded.ActionName)
	val, ok := soap.ArgumentValue(decoded.Arguments, "RetTargetValue")
	require.True(t, ok)
	assert.Equal(t, "1", val)
}

func TestServerHandleStreamUnknownServiceFaults(t *testing.T) {
	s := NewServer(func(udn, serviceID string) (Invoker, bool) { return nil, false }, "/upnp")
	req := &transport.StreamRequest{
		Method: "POST",
		Path:   "/upnp/dev/uuid:abc/svc/urn:upnp-org:serviceId:SwitchPower1/control",
		Body:   []byte{},
	}
	resp := s.HandleStream(context.Background(), req)
	assert.Equal(t, 500, resp.Status)
	assert.True(t, soap.IsFault(resp.Body))
}

func TestServerHandleStreamInvokeErrorMapsToFault(t *testing.T) {
	inv := &fakeInvoker{svc: testService(), err: &soap.Fault{Code: soap.ErrInvalidArgs, Description: "Invalid Args"}}
	s := NewServer(func(udn, serviceID string) (Invoker, bool) { return inv, true }, "/upnp")

	reqBody, err := soap.EncodeActionRequest(soap.ActionRequest{ServiceType: inv.svc.Type, ActionName: "SetTarget"})
	require.NoError(t, err)
	req := &transport.StreamRequest{
		Method: "POST",
		Path:   "/upnp/dev/uuid:abc/svc/urn:upnp-org:serviceId:SwitchPower1/control",
		Body:   reqBody,
	}
	resp := s.HandleStream(context.Background(), req)
	assert.Equal(t, 500, resp.Status)

	fault, err := soap.DecodeFault(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, soap.ErrInvalidArgs, fault.Code)
}

func TestClientInvokeAgainstHTTPServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := soap.EncodeActionResponse(soap.ActionResponse{
			ServiceType: "urn:schemas-upnp-org:service:SwitchPower:1",
			ActionName:  "GetTarget",
			Arguments:   []soap.Argument{{Name: "RetTargetValue", Value: "1"}},
		})
		require.NoError(t, err)
		w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
		w.WriteHeader(200)
		_, _ = w.Write(body)
	}))
	defer ts.Close()

	client := NewClient(transport.DefaultTimeouts)
	args, err := client.Invoke(context.Background(), ts.URL, "urn:schemas-upnp-org:service:SwitchPower:1", "GetTarget", nil)
	require.NoError(t, err)
	require.Len(t, args, 1)
	assert.Equal(t, "RetTargetValue", args[0].Name)
	assert.Equal(t, "1", args[0].Value)
}

func TestClientInvokeRawFetchesBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<scpd/>"))
	}))
	defer ts.Close()

	client := NewClient(transport.DefaultTimeouts)
	body, err := client.InvokeRaw(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "<scpd/>", string(body))
}
