package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/goupnp-core/description"
)

func TestAddLocalNotifiesListener(t *testing.T) {
	r := New(time.Hour)
	var got Event
	r.AddListener(func(ev Event) { got = ev })

	dev := &description.Device{UDN: "uuid:local-1"}
	r.AddLocal(dev)

	assert.Equal(t, EventLocalAdded, got.Kind)
	assert.Equal(t, "uuid:local-1", got.UDN)
	require.Len(t, r.LocalDevices(), 1)
}

func TestUpdateRemoteAddsThenUpdates(t *testing.T) {
	r := New(time.Hour)
	var events []Event
	r.AddListener(func(ev Event) { events = append(events, ev) })

	ident := RemoteIdentity{UDN: "uuid:remote-1", MaxAgeSec: 1800, DiscoveredAt: time.Now()}
	dev := &description.Device{UDN: "uuid:remote-1"}
	r.UpdateRemote(ident, dev)
	r.UpdateRemote(ident, dev)

	require.Len(t, events, 2)
	assert.Equal(t, EventRemoteAdded, events[0].Kind)
	assert.Equal(t, EventRemoteUpdated, events[1].Kind)

	rd, ok := r.GetRemote("uuid:remote-1")
	require.True(t, ok)
	assert.Equal(t, 1800, rd.MaxAgeSec)
}

func TestRemoveRemoteNotifiesWithReason(t *testing.T) {
	r := New(time.Hour)
	ident := RemoteIdentity{UDN: "uuid:remote-2", MaxAgeSec: 1800, DiscoveredAt: time.Now()}
	r.UpdateRemote(ident, &description.Device{UDN: "uuid:remote-2"})

	var got Event
	r.AddListener(func(ev Event) { got = ev })
	r.RemoveRemote(context.Background(), "uuid:remote-2", ReasonByeBye)

	assert.Equal(t, EventRemoteRemoved, got.Kind)
	assert.Equal(t, ReasonByeBye, got.Reason)
	assert.Equal(t, "BYEBYE", got.Reason.String())

	_, ok := r.GetRemote("uuid:remote-2")
	assert.False(t, ok)
}

func TestRemoveAllExpiredSweepsPastLease(t *testing.T) {
	r := New(time.Hour)
	ident := RemoteIdentity{
		UDN:          "uuid:remote-3",
		MaxAgeSec:    1,
		DiscoveredAt: time.Now().Add(-2 * time.Second),
	}
	r.UpdateRemote(ident, &description.Device{UDN: "uuid:remote-3"})

	var got Event
	r.AddListener(func(ev Event) { got = ev })
	r.RemoveAllExpired(context.Background())

	assert.Equal(t, EventRemoteRemoved, got.Kind)
	assert.Equal(t, ReasonExpired, got.Reason)
	_, ok := r.GetRemote("uuid:remote-3")
	assert.False(t, ok)
}

func TestPauseStopsExpirySweep(t *testing.T) {
	r := New(time.Hour)
	ident := RemoteIdentity{
		UDN:          "uuid:remote-4",
		MaxAgeSec:    1,
		DiscoveredAt: time.Now().Add(-2 * time.Second),
	}
	r.UpdateRemote(ident, &description.Device{UDN: "uuid:remote-4"})

	r.Pause()
	r.RemoveAllExpired(context.Background())
	_, ok := r.GetRemote("uuid:remote-4")
	assert.True(t, ok, "paused registry must not remove expired entries")

	r.Resume()
	r.RemoveAllExpired(context.Background())
	_, ok = r.GetRemote("uuid:remote-4")
	assert.False(t, ok)
}

func TestGetServicesWalksEmbeddedDevices(t *testing.T) {
	r := New(time.Hour)
	child := &description.Service{Type: "urn:schemas-upnp-org:service:Dimming:1"}
	root := &description.Device{
		UDN: "uuid:root-1",
		Services: []*description.Service{
			{Type: "urn:schemas-upnp-org:service:SwitchPower:1"},
		},
		EmbeddedDevices: []*description.Device{
			{UDN: "uuid:child-1", Services: []*description.Service{child}},
		},
	}
	r.AddLocal(root)

	all := r.GetServices(nil)
	assert.Len(t, all, 2)

	dimming := r.GetServices(func(s *description.Service) bool {
		return s.Type == "urn:schemas-upnp-org:service:Dimming:1"
	})
	require.Len(t, dimming, 1)
	assert.Same(t, child, dimming[0])
}
