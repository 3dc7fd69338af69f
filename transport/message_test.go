package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatagramMessageMethodAndIsResponse(t *testing.T) {
	req := &DatagramMessage{StartLine: "M-SEARCH * HTTP/1.1"}
	assert.Equal(t, "M-SEARCH", req.Method())
	assert.False(t, req.IsResponse())

	resp := &DatagramMessage{StartLine: "HTTP/1.1 200 OK"}
	assert.Equal(t, "", resp.Method())
	assert.True(t, resp.IsResponse())
}

func TestDatagramMessageEncodeRoundTrip(t *testing.T) {
	h := NewHeader()
	h.Set("Host", "239.255.255.250:1900")
	h.Set("St", "ssdp:all")
	msg := &DatagramMessage{StartLine: "M-SEARCH * HTTP/1.1", Headers: h}

	encoded := msg.Encode()
	decoded := ParseDatagramMessage(encoded, nil)

	assert.Equal(t, "M-SEARCH * HTTP/1.1", decoded.StartLine)
	assert.Equal(t, "239.255.255.250:1900", decoded.Headers.Get("Host"))
	assert.Equal(t, "ssdp:all", decoded.Headers.Get("St"))
}

func TestParseDatagramMessageToleratesMalformedHeaderLines(t *testing.T) {
	raw := []byte("NOTIFY * HTTP/1.1\r\nHost: 239.255.255.250:1900\r\nthis-line-has-no-colon\r\nNT: upnp:rootdevice\r\n\r\n")
	msg := ParseDatagramMessage(raw, nil)

	require.Equal(t, "NOTIFY * HTTP/1.1", msg.StartLine)
	assert.Equal(t, "239.255.255.250:1900", msg.Headers.Get("Host"))
	assert.Equal(t, "upnp:rootdevice", msg.Headers.Get("Nt"))
}

func TestNewStreamResponseSetsContentType(t *testing.T) {
	resp := NewStreamResponse(200, `text/xml; charset="utf-8"`, []byte("<a/>"))
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, `text/xml; charset="utf-8"`, resp.Headers.Get("Content-Type"))
	assert.Equal(t, "<a/>", string(resp.Body))
}
