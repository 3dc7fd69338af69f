// Package transport implements spec.md §4.4's Message/DatagramIO/HTTP
// stream adapters: the network edge the router (package router) binds
// to. Grounded on the teacher's server/dlna/ssdp.go (multicast socket
// lifecycle, NOTIFY/M-SEARCH string framing) and server/sonos_cast's
// http.Client usage for the stream side, generalized from two
// hardcoded services to arbitrary SSDP/HTTP traffic.
package transport

import (
	"net"
	"net/textproto"
	"strings"
	"time"
)

// Header is a case-insensitive multi-map, matching spec.md §3's
// "headers (case-insensitive multi-map)" requirement. It reuses
// net/textproto's canonicalization the same way net/http does.
type Header = textproto.MIMEHeader

// NewHeader returns an empty Header.
func NewHeader() Header {
	return make(Header)
}

// DatagramMessage is one SSDP datagram, inbound or outbound (spec.md
// §3). StartLine is the request/status line ("M-SEARCH * HTTP/1.1",
// "NOTIFY * HTTP/1.1", "HTTP/1.1 200 OK").
type DatagramMessage struct {
	StartLine  string
	Headers    Header
	Body       []byte
	RemoteAddr *net.UDPAddr
	Interface  string // name of the local interface the message arrived/departs on
}

// Method returns the verb of StartLine ("M-SEARCH", "NOTIFY", or ""
// for a status line).
func (m *DatagramMessage) Method() string {
	parts := strings.SplitN(m.StartLine, " ", 2)
	if len(parts) == 0 {
		return ""
	}
	if strings.HasPrefix(parts[0], "HTTP/") {
		return ""
	}
	return parts[0]
}

// IsResponse reports whether StartLine is an HTTP status line rather
// than a request line.
func (m *DatagramMessage) IsResponse() bool {
	return strings.HasPrefix(m.StartLine, "HTTP/")
}

// Encode renders the datagram to CRLF-terminated HTTP-like wire bytes
// (spec.md §6 "SSDP wire format").
func (m *DatagramMessage) Encode() []byte {
	var b strings.Builder
	b.WriteString(m.StartLine)
	b.WriteString("\r\n")
	for k, vs := range m.Headers {
		for _, v := range vs {
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\r\n")
		}
	}
	b.WriteString("\r\n")
	out := []byte(b.String())
	return append(out, m.Body...)
}

// ParseDatagramMessage decodes a raw SSDP datagram. It tolerates
// malformed header lines (spec.md §4.4 "must tolerate... malformed
// headers") by skipping them rather than failing the whole message.
func ParseDatagramMessage(raw []byte, from *net.UDPAddr) *DatagramMessage {
	text := string(raw)
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	m := &DatagramMessage{Headers: NewHeader(), RemoteAddr: from}
	if len(lines) == 0 {
		return m
	}
	m.StartLine = strings.TrimSpace(lines[0])
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue // malformed header line, skip and keep going
		}
		key := textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(line[:idx]))
		if key == "" {
			continue
		}
		m.Headers.Add(key, strings.TrimSpace(line[idx+1:]))
	}
	return m
}

// StreamRequest is an inbound HTTP request handed to the router by the
// HTTP stream transport (SOAP control or GENA subscribe/notify).
type StreamRequest struct {
	Method  string
	Path    string
	Headers Header
	Body    []byte
	Remote  string
}

// StreamResponse is the router's reply to a StreamRequest.
type StreamResponse struct {
	Status  int
	Headers Header
	Body    []byte
}

// NewStreamResponse builds a minimal response with the given status
// and content type.
func NewStreamResponse(status int, contentType string, body []byte) *StreamResponse {
	h := NewHeader()
	h.Set("Content-Type", contentType)
	return &StreamResponse{Status: status, Headers: h, Body: body}
}

// Timeouts bundles the connect/read/total timeouts spec.md §4.4 and
// §5 require for the HTTP stream transport's client side.
type Timeouts struct {
	Connect time.Duration
	Read    time.Duration
	Total   time.Duration
}

// DefaultTimeouts matches the teacher's sonos_cast client timeouts.
var DefaultTimeouts = Timeouts{Connect: 3 * time.Second, Read: 5 * time.Second, Total: 10 * time.Second}
