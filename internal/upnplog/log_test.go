package upnplog

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithFieldsMergesIntoLogOutput(t *testing.T) {
	var buf bytes.Buffer
	old := std.Out
	oldFormatter := std.Formatter
	std.SetOutput(&buf)
	std.SetFormatter(&logrus.JSONFormatter{})
	defer func() {
		std.SetOutput(old)
		std.SetFormatter(oldFormatter)
	}()

	ctx := WithFields(context.Background(), "udn", "uuid:abc")
	ctx = WithFields(ctx, "interface", "eth0")
	Info(ctx, "advertised device")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "uuid:abc", line["udn"])
	assert.Equal(t, "eth0", line["interface"])
	assert.Equal(t, "advertised device", line["msg"])
}

func TestWarnAttachesError(t *testing.T) {
	var buf bytes.Buffer
	old := std.Out
	oldFormatter := std.Formatter
	std.SetOutput(&buf)
	std.SetFormatter(&logrus.JSONFormatter{})
	defer func() {
		std.SetOutput(old)
		std.SetFormatter(oldFormatter)
	}()

	Warn(context.Background(), "fetch failed", assertErr{"boom"})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "boom", line["error"])
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
