// internal/browser/monitor_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mjbeckett/stepflow/api/schemas"
)

func newTestMonitor() *Monitor {
	return NewMonitor(context.Background(), zap.NewNop())
}

func requestSent(id, url, method string) *network.EventRequestWillBeSent {
	return &network.EventRequestWillBeSent{
		RequestID: network.RequestID(id),
		Request:   &network.Request{URL: url, Method: method},
	}
}

func TestMonitorRequestLifecycle(t *testing.T) {
	m := newTestMonitor()
	m.BeginStep()

	m.handleRequestWillBeSent(requestSent("r1", "https://api.example.com/items", "GET"))
	m.handleResponseReceived(&network.EventResponseReceived{
		RequestID: "r1",
		Response:  &network.Response{Status: 200},
	})

	// Still in flight until loading finishes.
	assert.Empty(t, m.StepRequests())

	m.handleLoadingFinished(&network.EventLoadingFinished{RequestID: "r1", EncodedDataLength: 2048})

	reqs := m.StepRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "https://api.example.com/items", reqs[0].URL)
	assert.Equal(t, "GET", reqs[0].Method)
	assert.Equal(t, 200, reqs[0].Status)
	assert.Equal(t, int64(2048), reqs[0].ResponseSize)
	assert.Empty(t, reqs[0].Error)
}

func TestMonitorFailedRequest(t *testing.T) {
	m := newTestMonitor()
	m.BeginStep()

	m.handleRequestWillBeSent(requestSent("r1", "https://api.example.com/down", "POST"))
	m.handleLoadingFailed(&network.EventLoadingFailed{RequestID: "r1", ErrorText: "net::ERR_CONNECTION_REFUSED"})

	reqs := m.StepRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "net::ERR_CONNECTION_REFUSED", reqs[0].Error)
}

func TestMonitorConcurrentSameURLTrackedSeparately(t *testing.T) {
	m := newTestMonitor()
	m.BeginStep()

	// Two in-flight hits on the same URL must not collapse into one.
	m.handleRequestWillBeSent(requestSent("r1", "https://api.example.com/poll", "GET"))
	m.handleRequestWillBeSent(requestSent("r2", "https://api.example.com/poll", "GET"))

	m.handleLoadingFinished(&network.EventLoadingFinished{RequestID: "r1"})
	assert.Len(t, m.StepRequests(), 1)

	m.handleLoadingFinished(&network.EventLoadingFinished{RequestID: "r2"})
	assert.Len(t, m.StepRequests(), 2)
}

func TestMonitorRedirectSettlesPreviousRequest(t *testing.T) {
	m := newTestMonitor()
	m.BeginStep()

	m.handleRequestWillBeSent(requestSent("r1", "https://example.com/old", "GET"))
	redirected := requestSent("r1", "https://example.com/new", "GET")
	redirected.RedirectResponse = &network.Response{Status: 302}
	m.handleRequestWillBeSent(redirected)

	reqs := m.StepRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "https://example.com/old", reqs[0].URL)
	assert.Equal(t, 302, reqs[0].Status)

	// The redirected request is now the pending one.
	m.handleLoadingFinished(&network.EventLoadingFinished{RequestID: "r1"})
	assert.Len(t, m.StepRequests(), 2)
}

func TestMonitorBeginStepResetsBuffers(t *testing.T) {
	m := newTestMonitor()
	m.BeginStep()
	m.handleRequestWillBeSent(requestSent("r1", "https://example.com", "GET"))
	m.handleLoadingFinished(&network.EventLoadingFinished{RequestID: "r1"})
	require.Len(t, m.StepRequests(), 1)

	m.BeginStep()
	assert.Empty(t, m.StepRequests())
	assert.Empty(t, m.StepConsole())
}

func TestMonitorDrain(t *testing.T) {
	m := newTestMonitor()

	// Nothing pending drains immediately.
	pending, _ := m.Drain(context.Background(), time.Second, time.Millisecond)
	assert.Equal(t, 0, pending)

	// A lingering request hits the ceiling.
	m.handleRequestWillBeSent(requestSent("r1", "https://slow.example.com", "GET"))
	pending, waited := m.Drain(context.Background(), 30*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, 1, pending)
	assert.GreaterOrEqual(t, waited, 30*time.Millisecond)

	// Settling in the background unblocks the drain.
	go func() {
		time.Sleep(20 * time.Millisecond)
		m.handleLoadingFinished(&network.EventLoadingFinished{RequestID: "r1"})
	}()
	pending, _ = m.Drain(context.Background(), time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, pending)
}

func TestMonitorEmitHook(t *testing.T) {
	m := newTestMonitor()
	m.BeginStep()

	var emitted []schemas.NetworkRequest
	m.SetEmit(func(req schemas.NetworkRequest) {
		emitted = append(emitted, req)
	})

	m.handleRequestWillBeSent(requestSent("r1", "https://example.com", "GET"))
	m.handleLoadingFinished(&network.EventLoadingFinished{RequestID: "r1"})

	require.Len(t, emitted, 1)
	assert.Equal(t, "https://example.com", emitted[0].URL)
}
