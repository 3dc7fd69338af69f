package soap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeActionRequestRoundTrip(t *testing.T) {
	req := ActionRequest{
		ServiceType: "urn:schemas-upnp-org:service:SwitchPower:1",
		ActionName:  "SetTarget",
		Arguments:   []Argument{{Name: "newTargetValue", Value: "1"}},
	}
	data, err := EncodeActionRequest(req)
	require.NoError(t, err)
	assert.Contains(t, string(data), `u:SetTarget`)
	assert.Contains(t, string(data), `xmlns:u="urn:schemas-upnp-org:service:SwitchPower:1"`)

	decoded, err := DecodeActionRequest(data)
	require.NoError(t, err)
	assert.Equal(t, req.ActionName, decoded.ActionName)
	assert.Equal(t, req.ServiceType, decoded.ServiceType)
	require.Len(t, decoded.Arguments, 1)
	assert.Equal(t, "newTargetValue", decoded.Arguments[0].Name)
	assert.Equal(t, "1", decoded.Arguments[0].Value)
}

func TestEncodeDecodeActionResponseRoundTrip(t *testing.T) {
	resp := ActionResponse{
		ServiceType: "urn:schemas-upnp-org:service:SwitchPower:1",
		ActionName:  "GetTarget",
		Arguments:   []Argument{{Name: "RetTargetValue", Value: "0"}},
	}
	data, err := EncodeActionResponse(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `u:GetTargetResponse`)

	decoded, err := DecodeActionResponse(data)
	require.NoError(t, err)
	assert.Equal(t, "GetTarget", decoded.ActionName)
	val, ok := ArgumentValue(decoded.Arguments, "RetTargetValue")
	require.True(t, ok)
	assert.Equal(t, "0", val)
}

func TestDecodeActionRequestRejectsMultipleBodyChildren(t *testing.T) {
	malformed := []byte(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
<s:Body>
<u:SetTarget xmlns:u="urn:schemas-upnp-org:service:SwitchPower:1"><newTargetValue>1</newTargetValue></u:SetTarget>
<u:SetTarget xmlns:u="urn:schemas-upnp-org:service:SwitchPower:1"><newTargetValue>0</newTargetValue></u:SetTarget>
</s:Body></s:Envelope>`)
	_, err := DecodeActionRequest(malformed)
	assert.Error(t, err)
}

func TestEncodeDecodeFault(t *testing.T) {
	data := EncodeFault(ErrInvalidArgs, "Invalid Args")
	assert.True(t, IsFault(data))

	fault, err := DecodeFault(data)
	require.NoError(t, err)
	assert.Equal(t, ErrInvalidArgs, fault.Code)
	assert.Equal(t, "Invalid Args", fault.Description)
}

func TestParseSOAPAction(t *testing.T) {
	serviceType, action := ParseSOAPAction(`"urn:schemas-upnp-org:service:SwitchPower:1#SetTarget"`)
	assert.Equal(t, "urn:schemas-upnp-org:service:SwitchPower:1", serviceType)
	assert.Equal(t, "SetTarget", action)
	assert.Equal(t, SOAPAction(serviceType, action), `urn:schemas-upnp-org:service:SwitchPower:1#SetTarget`)
}
