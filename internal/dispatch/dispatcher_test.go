// ABOUTME: Tests for JSON-RPC request validation and method routing
// ABOUTME: Checks exact wire responses against the gateway's protocol contract

package dispatch

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/rbus-gateway/internal/rbus"
	"github.com/harper/rbus-gateway/internal/subscription"
)

type discardSink struct{}

func (discardSink) HandleEvent(event *rbus.Event, connID string) {}

func newTestDispatcher(fake *rbus.Fake) *Dispatcher {
	subs := subscription.NewManager(fake, discardSink{}, 0)
	return NewDispatcher(fake, subs)
}

func errorCode(t *testing.T, raw []byte) (int, any) {
	t.Helper()
	var resp struct {
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		ID any `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.NotNil(t, resp.Error, "expected an error response, got %s", raw)
	return resp.Error.Code, resp.ID
}

func errorMessage(t *testing.T, raw []byte) string {
	t.Helper()
	var resp struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.NotNil(t, resp.Error, "expected an error response, got %s", raw)
	return resp.Error.Message
}

func TestMalformedJSON(t *testing.T) {
	d := newTestDispatcher(rbus.NewFake())

	resp := d.Handle([]byte(`{not json`), "conn-1")
	assert.JSONEq(t,
		`{"jsonrpc":"2.0","error":{"code":-32700,"message":"Parse error"},"id":null}`,
		string(resp))
}

func TestInvalidEnvelopes(t *testing.T) {
	d := newTestDispatcher(rbus.NewFake())

	cases := []string{
		`[1,2,3]`,                                   // not an object
		`"hello"`,                                   // not an object
		`{"params":{},"id":1}`,                      // missing method
		`{"method":123,"params":{},"id":1}`,         // method not a string
		`{"method":"rbus_get","id":1}`,              // missing params
		`{"method":"rbus_get","params":[1],"id":1}`, // params not an object
	}
	for _, c := range cases {
		code, _ := errorCode(t, d.Handle([]byte(c), "conn-1"))
		assert.Equal(t, -32600, code, "input %s", c)
	}
}

func TestUnknownMethod(t *testing.T) {
	d := newTestDispatcher(rbus.NewFake())

	code, id := errorCode(t, d.Handle([]byte(`{"method":"rbus_delete","params":{},"id":9}`), "conn-1"))
	assert.Equal(t, -32601, code)
	assert.Equal(t, float64(9), id)
}

func TestGetScenario(t *testing.T) {
	fake := rbus.NewFake()
	fake.Load("Device.DeviceInfo.ModelName", rbus.NewString("testmodel"))
	fake.Load("Device.DeviceInfo.SerialNumber", rbus.NewString("123456"))
	d := newTestDispatcher(fake)

	req := `{"jsonrpc":"2.0","method":"rbus_get","params":{"path":"Device.DeviceInfo.ModelName,Device.DeviceInfo.SerialNumber"},"id":1}`
	resp := d.Handle([]byte(req), "conn-1")

	assert.JSONEq(t,
		`{"jsonrpc":"2.0","result":{"Device.DeviceInfo.ModelName":"testmodel","Device.DeviceInfo.SerialNumber":"123456"},"id":1}`,
		string(resp))
}

func TestGetTrimsPathSegments(t *testing.T) {
	fake := rbus.NewFake()
	fake.Load("Device.A", rbus.NewInt(1))
	fake.Load("Device.B", rbus.NewInt(2))
	d := newTestDispatcher(fake)

	resp := d.Handle([]byte(`{"method":"rbus_get","params":{"path":" Device.A , Device.B "},"id":2}`), "conn-1")

	var decoded struct {
		Result map[string]int64 `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resp, &decoded))
	assert.Equal(t, int64(1), decoded.Result["Device.A"])
	assert.Equal(t, int64(2), decoded.Result["Device.B"])
}

func TestGetMissingPath(t *testing.T) {
	d := newTestDispatcher(rbus.NewFake())

	for _, c := range []string{
		`{"method":"rbus_get","params":{},"id":1}`,
		`{"method":"rbus_get","params":{"path":42},"id":1}`,
	} {
		resp := d.Handle([]byte(c), "conn-1")
		code, _ := errorCode(t, resp)
		assert.Equal(t, -32602, code, "input %s", c)
		assert.Equal(t, "Invalid params", errorMessage(t, resp), "input %s", c)
	}
}

func TestGetEmptyPath(t *testing.T) {
	d := newTestDispatcher(rbus.NewFake())

	// A path key that is present but yields no segments is reported
	// distinctly from a missing one.
	for _, c := range []string{
		`{"method":"rbus_get","params":{"path":""},"id":1}`,
		`{"method":"rbus_get","params":{"path":" , ,"},"id":1}`,
	} {
		resp := d.Handle([]byte(c), "conn-1")
		code, _ := errorCode(t, resp)
		assert.Equal(t, -32602, code, "input %s", c)
		assert.Equal(t, "Invalid or empty path", errorMessage(t, resp), "input %s", c)
	}
}

func TestGetBusFailureEmbedsCause(t *testing.T) {
	fake := rbus.NewFake()
	fake.GetErr = errors.New("RBUS_ERROR_BUS_ERROR")
	d := newTestDispatcher(fake)

	resp := d.Handle([]byte(`{"method":"rbus_get","params":{"path":"Device.X"},"id":1}`), "conn-1")

	var decoded struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp, &decoded))
	assert.Equal(t, -32000, decoded.Error.Code)
	assert.Contains(t, decoded.Error.Message, "RBUS_ERROR_BUS_ERROR")
}

func TestSetStoresConvertedValue(t *testing.T) {
	fake := rbus.NewFake()
	d := newTestDispatcher(fake)

	resp := d.Handle([]byte(`{"method":"rbus_set","params":{"path":"Device.X","value":42},"id":3}`), "conn-1")
	assert.JSONEq(t, `{"jsonrpc":"2.0","result":true,"id":3}`, string(resp))

	stored := fake.Stored("Device.X")
	require.NotNil(t, stored)
	assert.Equal(t, rbus.TypeInt, stored.Type())
	assert.Equal(t, int64(42), stored.Int())
}

func TestSetMissingParams(t *testing.T) {
	d := newTestDispatcher(rbus.NewFake())

	cases := []string{
		`{"method":"rbus_set","params":{"value":1},"id":1}`,
		`{"method":"rbus_set","params":{"path":"Device.X"},"id":1}`,
	}
	for _, c := range cases {
		code, _ := errorCode(t, d.Handle([]byte(c), "conn-1"))
		assert.Equal(t, -32602, code, "input %s", c)
	}
}

func TestSetConversionFailure(t *testing.T) {
	d := newTestDispatcher(rbus.NewFake())

	// null has no bus representation
	code, _ := errorCode(t, d.Handle([]byte(`{"method":"rbus_set","params":{"path":"Device.X","value":null},"id":1}`), "conn-1"))
	assert.Equal(t, -32000, code)
}

func TestSetBusFailure(t *testing.T) {
	fake := rbus.NewFake()
	fake.SetErr = errors.New("read only")
	d := newTestDispatcher(fake)

	resp := d.Handle([]byte(`{"method":"rbus_set","params":{"path":"Device.X","value":1},"id":1}`), "conn-1")
	assert.JSONEq(t,
		`{"jsonrpc":"2.0","error":{"code":-32000,"message":"Set failed"},"id":1}`,
		string(resp))
}

func TestSubscribeSuccess(t *testing.T) {
	fake := rbus.NewFake()
	d := newTestDispatcher(fake)

	resp := d.Handle([]byte(`{"method":"rbusEvent_Subscribe","params":{"eventName":"Device.Test.Event"},"id":4}`), "conn-1")
	assert.JSONEq(t, `{"jsonrpc":"2.0","result":true,"id":4}`, string(resp))
	assert.Equal(t, 30, fake.LastTimeout, "default timeout is 30")
}

func TestSubscribeExplicitTimeout(t *testing.T) {
	fake := rbus.NewFake()
	d := newTestDispatcher(fake)

	d.Handle([]byte(`{"method":"rbusEvent_Subscribe","params":{"eventName":"Device.Test.Event","timeout":10},"id":4}`), "conn-1")
	assert.Equal(t, 10, fake.LastTimeout)
}

func TestSubscribeMissingEventName(t *testing.T) {
	d := newTestDispatcher(rbus.NewFake())

	code, _ := errorCode(t, d.Handle([]byte(`{"method":"rbusEvent_Subscribe","params":{},"id":1}`), "conn-1"))
	assert.Equal(t, -32602, code)
}

func TestSubscribeBusFailure(t *testing.T) {
	fake := rbus.NewFake()
	fake.SubscribeErr = errors.New("no provider")
	d := newTestDispatcher(fake)

	resp := d.Handle([]byte(`{"method":"rbusEvent_Subscribe","params":{"eventName":"Device.Test.Event"},"id":1}`), "conn-1")
	assert.JSONEq(t,
		`{"jsonrpc":"2.0","error":{"code":-32000,"message":"Subscription failed"},"id":1}`,
		string(resp))
}

func TestUnsubscribeNotSubscribed(t *testing.T) {
	d := newTestDispatcher(rbus.NewFake())

	resp := d.Handle([]byte(`{"method":"rbusEvent_Unsubscribe","params":{"eventName":"Device.Test.Event"},"id":5}`), "conn-1")
	assert.JSONEq(t,
		`{"jsonrpc":"2.0","error":{"code":-32000,"message":"Unsubscription failed: not subscribed"},"id":5}`,
		string(resp))
}

func TestSubscribeThenUnsubscribe(t *testing.T) {
	d := newTestDispatcher(rbus.NewFake())

	d.Handle([]byte(`{"method":"rbusEvent_Subscribe","params":{"eventName":"Device.Test.Event"},"id":1}`), "conn-1")
	resp := d.Handle([]byte(`{"method":"rbusEvent_Unsubscribe","params":{"eventName":"Device.Test.Event"},"id":2}`), "conn-1")
	assert.JSONEq(t, `{"jsonrpc":"2.0","result":true,"id":2}`, string(resp))
}

func TestAbsentIDRoundTripsAsNull(t *testing.T) {
	fake := rbus.NewFake()
	fake.Load("Device.X", rbus.NewInt(1))
	d := newTestDispatcher(fake)

	resp := d.Handle([]byte(`{"method":"rbus_get","params":{"path":"Device.X"}}`), "conn-1")
	assert.JSONEq(t,
		`{"jsonrpc":"2.0","result":{"Device.X":1},"id":null}`,
		string(resp))
}

func TestStringIDEchoedVerbatim(t *testing.T) {
	fake := rbus.NewFake()
	fake.Load("Device.X", rbus.NewBoolean(true))
	d := newTestDispatcher(fake)

	resp := d.Handle([]byte(`{"method":"rbus_get","params":{"path":"Device.X"},"id":"abc"}`), "conn-1")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(resp, &decoded))
	assert.Equal(t, "abc", decoded["id"])
}
