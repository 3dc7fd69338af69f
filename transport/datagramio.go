package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/navidrome/goupnp-core/internal/upnplog"
)

// MinReceiveBuffer is the floor spec.md §4.4 sets ("Receive buffer ≥
// 256 KiB to absorb bursts").
const MinReceiveBuffer = 256 * 1024

// Processor receives decoded datagrams off a DatagramIO's run loop. It
// stands in for the router's received(IncomingDatagramMessage) entry
// point (spec.md §4.5) without transport importing router, avoiding an
// import cycle.
type Processor func(ctx context.Context, msg *DatagramMessage)

// DatagramIO owns one multicast-capable UDP socket bound to a given
// interface address, per spec.md §4.4. init/run/stop/send follow the
// thread-safety contract there: send/stop/init are mutually exclusive
// under mu; run reads concurrently with send via the underlying
// *net.UDPConn, which is itself safe for concurrent use.
type DatagramIO struct {
	mu        sync.Mutex
	conn      *net.UDPConn
	processor Processor
	ttl       int
	ifaceName string

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewDatagramIO returns an unbound DatagramIO; call Init to bind it.
func NewDatagramIO() *DatagramIO {
	return &DatagramIO{stopped: make(chan struct{})}
}

// Init binds the socket. If group is non-nil, the socket joins that
// multicast group on iface (the "multicast receiver" role); otherwise
// it binds an ordinary UDP socket on bindAddr (the "response socket"
// role, typically ephemeral port).
func (d *DatagramIO) Init(iface *net.Interface, group *net.UDPAddr, bindAddr *net.UDPAddr, ttl int, processor Processor) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		return fmt.Errorf("transport: datagramio already initialized")
	}

	var conn *net.UDPConn
	var err error
	if group != nil {
		conn, err = net.ListenMulticastUDP("udp4", iface, group)
	} else {
		conn, err = net.ListenUDP("udp4", bindAddr)
	}
	if err != nil {
		return fmt.Errorf("transport: bind datagram socket: %w", err)
	}

	if err := conn.SetReadBuffer(MinReceiveBuffer); err != nil {
		upnplog.Warn(context.Background(), "failed to set SSDP read buffer", err)
	}
	if ttl > 0 {
		if err := setMulticastTTL(conn, ttl); err != nil {
			upnplog.Warn(context.Background(), "failed to set multicast TTL", err, "ttl", ttl)
		}
	}

	d.conn = conn
	d.processor = processor
	d.ttl = ttl
	if iface != nil {
		d.ifaceName = iface.Name
	}
	return nil
}

// Run blocks, decoding datagrams and handing them to the processor,
// until Stop closes the socket. A closed socket is a normal terminal
// signal, never logged as an error (spec.md §4.4, §5).
func (d *DatagramIO) Run(ctx context.Context) {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		return
	}

	buf := make([]byte, MinReceiveBuffer)
	for {
		select {
		case <-d.stopped:
			return
		case <-ctx.Done():
			d.Stop()
			return
		default:
		}
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-d.stopped:
				return // socket closed by Stop: normal termination
			default:
			}
			upnplog.Debug(ctx, "datagram read error, skipping", "error", err.Error())
			continue
		}
		msg := ParseDatagramMessage(buf[:n], remote)
		msg.Interface = d.ifaceName
		if d.processor != nil {
			d.processor(ctx, msg)
		}
	}
}

// Send transmits a datagram to msg.RemoteAddr.
func (d *DatagramIO) Send(msg *DatagramMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	conn := d.conn
	if conn == nil {
		return fmt.Errorf("transport: datagramio not initialized")
	}
	if msg.RemoteAddr == nil {
		return fmt.Errorf("transport: outgoing datagram missing remote address")
	}
	_, err := conn.WriteToUDP(msg.Encode(), msg.RemoteAddr)
	return err
}

// Stop idempotently closes the socket, causing a blocked Run to return.
func (d *DatagramIO) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopped)
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.conn != nil {
			_ = d.conn.Close()
		}
	})
}
