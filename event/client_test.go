package event

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/goupnp-core/gena"
	"github.com/navidrome/goupnp-core/transport"
)

func subscribeServer(t *testing.T, timeoutHeader string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Sid", "uuid:fixed-sid")
		w.Header().Set("Timeout", timeoutHeader)
		w.WriteHeader(200)
	}))
}

func TestClientSubscribeRecordsSubscription(t *testing.T) {
	ts := subscribeServer(t, "Second-1800")
	defer ts.Close()

	c := NewClient(testConfig(), "http://127.0.0.1:9999")
	corrID, err := c.Subscribe(context.Background(), ts.URL, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, corrID)

	c.mu.Lock()
	sub, ok := c.subs[corrID]
	c.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, "uuid:fixed-sid", sub.SID)
	assert.Equal(t, 1800*time.Second, sub.ActualTimeout)
}

func TestClientSubscribeRejectedStatusReturnsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(412) }))
	defer ts.Close()

	c := NewClient(testConfig(), "http://127.0.0.1:9999")
	_, err := c.Subscribe(context.Background(), ts.URL, nil)
	assert.Error(t, err)
}

func TestClientHandleNotifyDeliversInOrderSequence(t *testing.T) {
	ts := subscribeServer(t, "Second-1800")
	defer ts.Close()

	c := NewClient(testConfig(), "http://127.0.0.1:9999")
	corrID, err := c.Subscribe(context.Background(), ts.URL, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var received []string
	var gaps []bool
	c.mu.Lock()
	c.listeners[corrID] = func(sid string, props []gena.Property, gapped bool) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, sid)
		gaps = append(gaps, gapped)
	}
	c.mu.Unlock()

	body, err := gena.EncodePropertySet([]gena.Property{{Name: "Status", Value: "1"}})
	require.NoError(t, err)

	h := transport.NewHeader()
	h.Set("Seq", "0")
	require.NoError(t, c.HandleNotify(context.Background(), corrID, h, body))

	h2 := transport.NewHeader()
	h2.Set("Seq", "1")
	require.NoError(t, c.HandleNotify(context.Background(), corrID, h2, body))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.False(t, gaps[0])
	assert.False(t, gaps[1])
}

func TestClientHandleNotifyDetectsGap(t *testing.T) {
	ts := subscribeServer(t, "Second-1800")
	defer ts.Close()

	c := NewClient(testConfig(), "http://127.0.0.1:9999")
	corrID, err := c.Subscribe(context.Background(), ts.URL, nil)
	require.NoError(t, err)

	var gapped bool
	c.mu.Lock()
	c.listeners[corrID] = func(sid string, props []gena.Property, g bool) { gapped = g }
	c.mu.Unlock()

	body, err := gena.EncodePropertySet([]gena.Property{{Name: "Status", Value: "1"}})
	require.NoError(t, err)

	h := transport.NewHeader()
	h.Set("Seq", "0")
	require.NoError(t, c.HandleNotify(context.Background(), corrID, h, body))

	// Skip straight to 5: not the expected next key.
	h2 := transport.NewHeader()
	h2.Set("Seq", "5")
	require.NoError(t, c.HandleNotify(context.Background(), corrID, h2, body))

	assert.True(t, gapped)
}

func TestClientHandleNotifyUnknownSubscriptionErrors(t *testing.T) {
	c := NewClient(testConfig(), "http://127.0.0.1:9999")
	h := transport.NewHeader()
	h.Set("Seq", "0")
	err := c.HandleNotify(context.Background(), "uuid:does-not-exist", h, []byte(`<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0"></e:propertyset>`))
	assert.Error(t, err)
}

func TestClientHandleNotifyMissingSeqErrors(t *testing.T) {
	ts := subscribeServer(t, "Second-1800")
	defer ts.Close()
	c := NewClient(testConfig(), "http://127.0.0.1:9999")
	corrID, err := c.Subscribe(context.Background(), ts.URL, nil)
	require.NoError(t, err)

	h := transport.NewHeader()
	err = c.HandleNotify(context.Background(), corrID, h, []byte(`<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0"></e:propertyset>`))
	assert.Error(t, err)
}

func TestClientUnsubscribeForgetsSubscription(t *testing.T) {
	ts := subscribeServer(t, "Second-1800")
	defer ts.Close()
	c := NewClient(testConfig(), "http://127.0.0.1:9999")
	corrID, err := c.Subscribe(context.Background(), ts.URL, nil)
	require.NoError(t, err)

	require.NoError(t, c.Unsubscribe(context.Background(), ts.URL, corrID))

	c.mu.Lock()
	_, ok := c.subs[corrID]
	c.mu.Unlock()
	assert.False(t, ok)
}

func TestClientUnsubscribeUnknownIsNoop(t *testing.T) {
	c := NewClient(testConfig(), "http://127.0.0.1:9999")
	assert.NoError(t, c.Unsubscribe(context.Background(), "http://127.0.0.1:0/x", "uuid:never-subscribed"))
}
