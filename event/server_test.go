package event

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/goupnp-core/gena"
	"github.com/navidrome/goupnp-core/transport"
)

type fakeSource struct {
	props []gena.Property
	err   error
}

func (f *fakeSource) InitialEvent(ctx context.Context) ([]gena.Property, error) {
	return f.props, f.err
}

func testConfig() Config {
	return Config{MinLease: 30 * time.Second, MaxLease: 24 * time.Hour, RenewalSlack: 10 * time.Second}
}

func subscribeRequest(callbackURL string) *transport.StreamRequest {
	h := transport.NewHeader()
	h.Set("Callback", "<"+callbackURL+">")
	h.Set("Nt", "upnp:event")
	h.Set("Timeout", "Second-180")
	return &transport.StreamRequest{
		Method:  "SUBSCRIBE",
		Path:    "/upnp/dev/uuid:abc/svc/urn:upnp-org:serviceId:SwitchPower1/event",
		Headers: h,
	}
}

func TestMatchesSubscribeAndUnsubscribe(t *testing.T) {
	s := NewServer(testConfig(), func(udn, serviceID string) (Source, bool) { return nil, false }, "/upnp")
	assert.True(t, s.Matches(&transport.StreamRequest{Method: "SUBSCRIBE"}))
	assert.True(t, s.Matches(&transport.StreamRequest{Method: "UNSUBSCRIBE"}))
	assert.False(t, s.Matches(&transport.StreamRequest{Method: "POST"}))
}

func TestHandleStreamSubscribeAssignsSIDAndTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) }))
	defer ts.Close()

	src := &fakeSource{props: []gena.Property{{Name: "Status", Value: "0"}}}
	s := NewServer(testConfig(), func(udn, serviceID string) (Source, bool) { return src, true }, "/upnp")

	resp := s.HandleStream(context.Background(), subscribeRequest(ts.URL))
	require.Equal(t, 200, resp.Status)
	assert.NotEmpty(t, resp.Headers.Get("Sid"))
	assert.Equal(t, "Second-180", resp.Headers.Get("Timeout"))
}

func TestHandleStreamSubscribeUnknownServiceNotFound(t *testing.T) {
	s := NewServer(testConfig(), func(udn, serviceID string) (Source, bool) { return nil, false }, "/upnp")
	resp := s.HandleStream(context.Background(), subscribeRequest("http://127.0.0.1:0/cb"))
	assert.Equal(t, 404, resp.Status)
}

func TestHandleStreamRenewUnknownSIDFails(t *testing.T) {
	s := NewServer(testConfig(), func(udn, serviceID string) (Source, bool) { return nil, false }, "/upnp")
	h := transport.NewHeader()
	h.Set("Sid", "uuid:does-not-exist")
	req := &transport.StreamRequest{Method: "SUBSCRIBE", Path: "/upnp/dev/uuid:abc/svc/urn:upnp-org:serviceId:SwitchPower1/event", Headers: h}
	resp := s.HandleStream(context.Background(), req)
	assert.Equal(t, 412, resp.Status)
}

func TestHandleStreamSubscribeThenRenew(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) }))
	defer ts.Close()

	src := &fakeSource{props: []gena.Property{{Name: "Status", Value: "0"}}}
	s := NewServer(testConfig(), func(udn, serviceID string) (Source, bool) { return src, true }, "/upnp")

	subResp := s.HandleStream(context.Background(), subscribeRequest(ts.URL))
	sid := subResp.Headers.Get("Sid")
	require.NotEmpty(t, sid)

	h := transport.NewHeader()
	h.Set("Sid", sid)
	h.Set("Timeout", "Second-300")
	renewReq := &transport.StreamRequest{Method: "SUBSCRIBE", Path: "/upnp/dev/uuid:abc/svc/urn:upnp-org:serviceId:SwitchPower1/event", Headers: h}
	renewResp := s.HandleStream(context.Background(), renewReq)
	assert.Equal(t, 200, renewResp.Status)
	assert.Equal(t, sid, renewResp.Headers.Get("Sid"))
	assert.Equal(t, "Second-300", renewResp.Headers.Get("Timeout"))
}

func TestHandleStreamUnsubscribeRemovesSubscription(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) }))
	defer ts.Close()

	src := &fakeSource{}
	s := NewServer(testConfig(), func(udn, serviceID string) (Source, bool) { return src, true }, "/upnp")
	subResp := s.HandleStream(context.Background(), subscribeRequest(ts.URL))
	sid := subResp.Headers.Get("Sid")

	h := transport.NewHeader()
	h.Set("Sid", sid)
	unsubReq := &transport.StreamRequest{Method: "UNSUBSCRIBE", Path: "/upnp/dev/uuid:abc/svc/urn:upnp-org:serviceId:SwitchPower1/event", Headers: h}
	resp := s.HandleStream(context.Background(), unsubReq)
	assert.Equal(t, 200, resp.Status)

	// A second unsubscribe for the same SID now fails.
	resp = s.HandleStream(context.Background(), unsubReq)
	assert.Equal(t, 412, resp.Status)
}

func TestParseEventPath(t *testing.T) {
	udn, serviceID, ok := parseEventPath("/upnp", "/upnp/dev/uuid:abc/svc/urn:upnp-org:serviceId:SwitchPower1/event")
	require.True(t, ok)
	assert.Equal(t, "uuid:abc", udn)
	assert.Equal(t, "urn:upnp-org:serviceId:SwitchPower1", serviceID)
}

func TestParseCallbacks(t *testing.T) {
	cbs := parseCallbacks("<http://10.0.0.2:1234/cb1>, <http://10.0.0.2:1234/cb2>")
	assert.Equal(t, []string{"http://10.0.0.2:1234/cb1", "http://10.0.0.2:1234/cb2"}, cbs)
}
