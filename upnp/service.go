// Package upnp composes the registry, router, and protocol engines
// into the single explicit service object spec.md §9 calls for
// ("There is no module-level singleton; the registry, router, and
// executor are composed into an explicit UPnP service object with
// startup/shutdown phases"). Grounded on the teacher's server/dlna.New
// constructor plus its ctx/cancel Start/Stop pair, generalized from a
// single MediaServer device to an arbitrary set of registered local
// devices and discovered remote ones.
package upnp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/navidrome/goupnp-core/control"
	"github.com/navidrome/goupnp-core/description"
	"github.com/navidrome/goupnp-core/event"
	"github.com/navidrome/goupnp-core/gena"
	"github.com/navidrome/goupnp-core/internal/config"
	"github.com/navidrome/goupnp-core/internal/upnplog"
	"github.com/navidrome/goupnp-core/registry"
	"github.com/navidrome/goupnp-core/router"
	"github.com/navidrome/goupnp-core/service"
	"github.com/navidrome/goupnp-core/ssdp"
	"github.com/navidrome/goupnp-core/transport"
)

// eventFlushInterval is the cadence of the "event moderation flush"
// maintenance task spec.md §5 requires: how often a local service's
// held-back moderated values are released and its accumulated
// LastChange delta is published to subscribers.
const eventFlushInterval = 500 * time.Millisecond

// Service is the top-level UPnP device + control-point object a host
// process constructs once and starts/stops explicitly.
type Service struct {
	cfg      config.Config
	Registry *registry.Registry
	Router   *router.Router

	ssdpEngine    *ssdp.Engine
	controlServer *control.Server
	controlClient *control.Client
	eventServer   *event.Server
	eventClient   *event.Client

	managers map[string]*service.Manager // "udn/serviceId" -> manager

	httpServer *http.Server

	cancel context.CancelFunc
}

// New constructs a disabled Service. Call Start to bring it up.
func New(cfg config.Config) (*Service, error) {
	reg := registry.New(10 * time.Second)

	r, err := router.New(fmt.Sprintf("%s:%d", cfg.MulticastAddress, cfg.MulticastPort), cfg.TTL)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:      cfg,
		Registry: reg,
		Router:   r,
		managers: make(map[string]*service.Manager),
	}

	s.controlServer = control.NewServer(s.lookupManagerForControl, cfg.PathPrefix)
	s.controlClient = control.NewClient(transport.DefaultTimeouts)
	s.eventServer = event.NewServer(event.Config{
		MinLease:     time.Duration(cfg.MinLeaseSec) * time.Second,
		MaxLease:     time.Duration(cfg.MaxLeaseSec) * time.Second,
		RenewalSlack: time.Duration(cfg.RenewalSlackSec) * time.Second,
	}, s.lookupManagerForEvent, cfg.PathPrefix)

	r.AddStreamEngine(s.controlServer)
	r.AddStreamEngine(s.eventServer)

	s.ssdpEngine = ssdp.New(ssdp.Config{
		MaxAgeSec:         cfg.MaxLeaseSec,
		AdvertiseInterval: time.Duration(cfg.AdvertiseIntervalSec) * time.Second,
		SearchMX:          cfg.SearchMX,
		ServerString:      fmt.Sprintf("Go/1.25 UPnP/1.1 %s", cfg.UserAgentProduct),
		LocationForIface:  s.locationBaseFor,
	}, r, reg, s.fetchDescriptor)
	r.SetDiscoveryEngine(s.ssdpEngine)

	return s, nil
}

// RegisterLocalDevice exposes a device tree and its bound service
// managers, advertising it over SSDP (spec.md §3 "a local device is
// created when the host registers it").
func (s *Service) RegisterLocalDevice(d *description.Device, managers map[string]*service.Manager) {
	s.Registry.AddLocal(d)
	for key, mgr := range managers {
		s.managers[d.UDN+"/"+key] = mgr
	}
}

func (s *Service) lookupManagerForControl(udn, serviceID string) (control.Invoker, bool) {
	m, ok := s.managers[udn+"/"+serviceID]
	return m, ok
}

func (s *Service) lookupManagerForEvent(udn, serviceID string) (event.Source, bool) {
	m, ok := s.managers[udn+"/"+serviceID]
	return m, ok
}

func (s *Service) locationBaseFor(_ string) string {
	return fmt.Sprintf("http://%s:%d", "0.0.0.0", s.cfg.StreamListenPort)
}

func (s *Service) fetchDescriptor(ctx context.Context, location string) (*description.Device, error) {
	resp, err := s.controlClient.InvokeRaw(ctx, location)
	if err != nil {
		return nil, err
	}
	dev, err := description.ReadDeviceDescriptor(resp)
	if err != nil {
		return nil, fmt.Errorf("upnp: parse device descriptor: %w", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range dev.Services {
		svc := svc
		g.Go(func() error {
			scpd, err := s.controlClient.InvokeRaw(gctx, svc.SCPDURL)
			if err != nil {
				upnplog.Warn(ctx, "failed to fetch SCPD", err, "service", svc.Type)
				return nil
			}
			parsed, err := description.ReadSCPD(scpd)
			if err != nil {
				upnplog.Warn(ctx, "failed to parse SCPD", err, "service", svc.Type)
				return nil
			}
			svc.CopyActionsAndVariablesFrom(parsed)
			return nil
		})
	}
	_ = g.Wait()
	return dev, nil
}

// Start brings up the router's sockets, the HTTP stream server, and
// every background maintainer (advertise, sweep, moderation flush).
func (s *Service) Start(ctx context.Context, ifaces []net.Interface) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.Router.Enable(ctx, ifaces); err != nil {
		cancel()
		return fmt.Errorf("upnp: enable router: %w", err)
	}

	mux := router.NewHTTPMux(s.Router, s.cfg.PathPrefix)
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.StreamListenPort),
		Handler:           mux,
		ReadHeaderTimeout: transport.DefaultHTTPServerOptions.ReadHeaderTimeout,
		WriteTimeout:      transport.DefaultHTTPServerOptions.WriteTimeout,
		IdleTimeout:       transport.DefaultHTTPServerOptions.IdleTimeout,
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			upnplog.Error(ctx, "HTTP stream server stopped", err)
		}
	}()

	go s.Registry.RunSweeper(ctx)
	go s.ssdpEngine.RunAdvertiser(ctx)
	go s.eventServer.RunExpirySweeper(ctx, 30*time.Second)
	go s.runEventFlush(ctx, eventFlushInterval)
	s.ssdpEngine.Advertise(ctx)

	return nil
}

// runEventFlush is the scheduled maintenance task that turns
// in-process state-variable writes into GENA NOTIFYs. Each tick it
// releases any value a service's Moderator held back
// (Manager.FlushModeration), fires that service's live LastChange
// accumulator, and publishes a non-empty result to every subscriber
// (event.Server.Publish) — without this, a subscriber would only ever
// receive its initial SEQ:0 event (spec.md §4.6, §9 "ships
// state-variable changes to subscribers").
func (s *Service) runEventFlush(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			for key, mgr := range s.managers {
				mgr.FlushModeration(ctx, now)
				body, ok := mgr.FireLastChange(ctx)
				if !ok {
					continue
				}
				_, serviceID := splitManagerKey(key)
				s.eventServer.Publish(ctx, serviceID, []gena.Property{{Name: "LastChange", Value: body}})
			}
		}
	}
}

// splitManagerKey splits a "udn/serviceId" manager table key back into
// its parts.
func splitManagerKey(key string) (udn, serviceID string) {
	udn, serviceID, _ = strings.Cut(key, "/")
	return udn, serviceID
}

// Discover broadcasts an M-SEARCH for st (ssdp:all if empty), used by
// control-point-only consumers after Start.
func (s *Service) Discover(ctx context.Context, st string) {
	s.ssdpEngine.Search(ctx, st)
}

// Stop sends ssdp:byebye, tears down the HTTP server and router
// sockets, and cancels every background maintainer.
func (s *Service) Stop(ctx context.Context) {
	s.ssdpEngine.ByeBye(ctx)
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}
	s.Router.Disable()
	if s.cancel != nil {
		s.cancel()
	}
}
