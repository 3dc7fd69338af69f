package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/goupnp-core/description"
	"github.com/navidrome/goupnp-core/soap"
	"github.com/navidrome/goupnp-core/upnptype"
)

func newSwitchPowerService() *description.Service {
	svc := description.NewService("urn:schemas-upnp-org:service:SwitchPower:1", "urn:upnp-org:serviceId:SwitchPower1")
	svc.AddStateVariable(&description.StateVariable{
		Name:     "Target",
		Datatype: upnptype.MustNew("boolean"),
	})
	svc.AddStateVariable(&description.StateVariable{
		Name:     "Status",
		Datatype: upnptype.MustNew("boolean"),
		Event:    description.EventPolicy{SendEvents: true},
		Accessor: func() (string, error) { return "0", nil },
	})
	svc.AddAction(&description.Action{
		Name: "SetTarget",
		Inputs: []description.Argument{
			{Name: "newTargetValue", Direction: description.In, RelatedStateVariable: "Target"},
		},
	})
	svc.AddAction(&description.Action{
		Name: "GetStatus",
		Outputs: []description.Argument{
			{Name: "ResultStatus", Direction: description.Out, RelatedStateVariable: "Status"},
		},
	})
	return svc
}

type fakeImpl struct {
	status string
}

func (f *fakeImpl) Handler(action string) (ActionHandler, bool) {
	switch action {
	case "SetTarget":
		return func(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error) {
			target := inputs["newTargetValue"].(bool)
			if target {
				f.status = "1"
			} else {
				f.status = "0"
			}
			return nil, nil
		}, true
	case "GetStatus":
		return func(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"ResultStatus": f.status == "1"}, nil
		}, true
	case "FailingAction":
		return func(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error) {
			return nil, errors.New("boom")
		}, true
	}
	return nil, false
}

func TestManagerInvokeSetThenGet(t *testing.T) {
	svc := newSwitchPowerService()
	impl := &fakeImpl{status: "0"}
	mgr := NewManager(svc, impl)

	_, err := mgr.Invoke(context.Background(), "SetTarget", []soap.Argument{{Name: "newTargetValue", Value: "1"}})
	require.NoError(t, err)

	out, err := mgr.Invoke(context.Background(), "GetStatus", nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "ResultStatus", out[0].Name)
	assert.Equal(t, "1", out[0].Value)
}

func TestManagerInvokeUnknownActionReturnsFault(t *testing.T) {
	svc := newSwitchPowerService()
	mgr := NewManager(svc, &fakeImpl{})

	_, err := mgr.Invoke(context.Background(), "NoSuchAction", nil)
	require.Error(t, err)
	fault, ok := err.(*soap.Fault)
	require.True(t, ok)
	assert.Equal(t, soap.ErrInvalidAction, fault.Code)
}

func TestManagerInvokeMissingArgumentReturnsFault(t *testing.T) {
	svc := newSwitchPowerService()
	mgr := NewManager(svc, &fakeImpl{})

	_, err := mgr.Invoke(context.Background(), "SetTarget", nil)
	require.Error(t, err)
	fault, ok := err.(*soap.Fault)
	require.True(t, ok)
	assert.Equal(t, soap.ErrInvalidArgs, fault.Code)
}

func TestManagerInvokeHandlerErrorMapsToActionFailed(t *testing.T) {
	svc := newSwitchPowerService()
	svc.AddAction(&description.Action{Name: "FailingAction"})
	mgr := NewManager(svc, &fakeImpl{})

	_, err := mgr.Invoke(context.Background(), "FailingAction", nil)
	require.Error(t, err)
	fault, ok := err.(*soap.Fault)
	require.True(t, ok)
	assert.Equal(t, soap.ErrActionFailed, fault.Code)
}

func TestManagerWriteStateVariableAndFireLastChange(t *testing.T) {
	svc := newSwitchPowerService()
	mgr := NewManager(svc, &fakeImpl{})

	_, hasPending := mgr.FireLastChange(context.Background())
	assert.False(t, hasPending)

	mgr.WriteStateVariable(context.Background(), 0, "Status", "1")
	body, ok := mgr.FireLastChange(context.Background())
	require.True(t, ok)
	assert.Contains(t, body, "Status")
}

func TestManagerWriteStateVariableModeratesAndFlushReleases(t *testing.T) {
	svc := newSwitchPowerService()
	svc.AddStateVariable(&description.StateVariable{
		Name:     "Volume",
		Datatype: upnptype.MustNew("ui4"),
		Event: description.EventPolicy{
			SendEvents:          true,
			MaxRateMilliseconds: 1000,
		},
		Accessor: func() (string, error) { return "0", nil },
	})
	mgr := NewManager(svc, &fakeImpl{})

	mgr.WriteStateVariable(context.Background(), 0, "Volume", "10")
	body, ok := mgr.FireLastChange(context.Background())
	require.True(t, ok)
	assert.Contains(t, body, "Volume")
	assert.Contains(t, body, "10")

	// A second write inside the max-rate window is held back, not
	// dropped: it doesn't appear on the very next fire.
	mgr.WriteStateVariable(context.Background(), 0, "Volume", "12")
	_, ok = mgr.FireLastChange(context.Background())
	assert.False(t, ok)

	// Once the max-rate window has elapsed, flushing releases the held
	// value into the live accumulator for the next fire.
	mgr.FlushModeration(context.Background(), time.Now().Add(time.Hour))
	body, ok = mgr.FireLastChange(context.Background())
	require.True(t, ok)
	assert.Contains(t, body, "Volume")
	assert.Contains(t, body, "12")
}

func TestManagerInitialEventFallsBackToEventedVariables(t *testing.T) {
	svc := newSwitchPowerService()
	mgr := NewManager(svc, &fakeImpl{})

	props, err := mgr.InitialEvent(context.Background())
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "Status", props[0].Name)
}

// reentrantImpl calls back into the manager from within a handler to
// prove withLock's context-token reentrancy doesn't deadlock.
type reentrantImpl struct {
	mgr *Manager
}

func (r *reentrantImpl) Handler(action string) (ActionHandler, bool) {
	if action != "SetTarget" {
		return nil, false
	}
	return func(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error) {
		r.mgr.WriteStateVariable(ctx, 0, "Status", "1")
		return nil, nil
	}, true
}

func TestManagerWithLockReentrancyDoesNotDeadlock(t *testing.T) {
	svc := newSwitchPowerService()
	impl := &reentrantImpl{}
	mgr := NewManager(svc, impl)
	impl.mgr = mgr

	done := make(chan struct{})
	go func() {
		_, _ = mgr.Invoke(context.Background(), "SetTarget", []soap.Argument{{Name: "newTargetValue", Value: "1"}})
		close(done)
	}()
	<-done

	body, ok := mgr.FireLastChange(context.Background())
	require.True(t, ok)
	assert.Contains(t, body, "Status")
}
