package push

import (
	"context"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"nhooyr.io/websocket"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	frames    chan []byte
	readErrs  chan error
	closed    chan struct{}
	closeOnce sync.Once

	// closeLag delays the reader noticing a Close, as a real websocket does
	closeLag time.Duration
}

func newFakeConn(closeLag time.Duration) *fakeConn {
	return &fakeConn{
		frames:   make(chan []byte, 16),
		readErrs: make(chan error, 1),
		closed:   make(chan struct{}),
		closeLag: closeLag,
	}
}

func (f *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-f.frames:
		return frame, nil
	case err := <-f.readErrs:
		return nil, err
	case <-f.closed:
		time.Sleep(f.closeLag)
		return nil, ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

type fakeDialer struct {
	mu       sync.Mutex
	conns    []*fakeConn
	err      error
	closeLag time.Duration
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		d.conns = append(d.conns, nil)
		return nil, d.err
	}
	conn := newFakeConn(d.closeLag)
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) Conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

type recorder struct {
	mu     sync.Mutex
	events []*Event
}

func (r *recorder) listen(client *Client, kinds ...EventKind) {
	for _, kind := range kinds {
		client.On(kind, func(event *Event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, event)
			return nil
		})
	}
}

func (r *recorder) Event(i int) *Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[i]
}

func (r *recorder) Kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []EventKind
	for _, event := range r.events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

func newTestClient(dialer Dialer, interval time.Duration) *Client {
	return NewClient("ws://scanner.test/ws", &Options{
		Dialer:          dialer,
		ReconnectPolicy: &ConstantDelay{Interval: interval},
		AutoReconnect:   true,
	})
}

func TestClient_ConnectEmitsConnected(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(dialer, time.Hour)
	events := &recorder{}
	events.listen(client, EventConnected, EventDisconnected)

	require.NoError(t, client.Connect(context.Background()))
	require.Equal(t, StateConnected, client.State())
	require.Equal(t, []EventKind{EventConnected}, events.Kinds())

	// redundant connect is a no-op
	require.NoError(t, client.Connect(context.Background()))
	require.Equal(t, 1, dialer.Dials())

	require.NoError(t, client.Disconnect())
	require.Eventually(t, func() bool { return client.State() == StateDisconnected }, time.Second, 5*time.Millisecond)
}

func TestClient_DispatchesFramesAndSurvivesMalformedOnes(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(dialer, time.Hour)
	received := make(chan string, 4)
	client.On(EventJobStatus, func(event *Event) error {
		received <- string(event.Payload)
		return nil
	})
	client.On(EventJobStatus, func(event *Event) error {
		panic("listener bug")
	})

	require.NoError(t, client.Connect(context.Background()))
	conn := dialer.Conn(0)
	conn.frames <- []byte(`{"type":"job_status","payload":{"id":"1"}}`)
	conn.frames <- []byte(`not json`)
	conn.frames <- []byte(`{"type":"unknown_kind","payload":{}}`)
	conn.frames <- []byte(`{"type":"job_status","payload":{"id":"2"}}`)

	require.Equal(t, `{"id":"1"}`, <-received)
	require.Equal(t, `{"id":"2"}`, <-received)
	require.Equal(t, StateConnected, client.State())
	require.Equal(t, 1, dialer.Dials())

	require.NoError(t, client.Disconnect())
}

func TestClient_ReconnectsOnceAfterUnexpectedClose(t *testing.T) {
	dialer := &fakeDialer{}
	interval := 50 * time.Millisecond
	client := newTestClient(dialer, interval)
	events := &recorder{}
	events.listen(client, EventConnected, EventDisconnected, EventError)

	require.NoError(t, client.Connect(context.Background()))
	closedAt := time.Now()
	require.NoError(t, dialer.Conn(0).Close())

	require.Eventually(t, func() bool { return dialer.Dials() == 2 }, time.Second, 5*time.Millisecond)
	require.GreaterOrEqual(t, time.Since(closedAt), interval)
	require.Eventually(t, func() bool { return client.State() == StateConnected }, time.Second, 5*time.Millisecond)

	time.Sleep(3 * interval)
	require.Equal(t, 2, dialer.Dials())
	require.Equal(t, []EventKind{EventConnected, EventDisconnected, EventConnected}, events.Kinds())

	require.NoError(t, client.Disconnect())
}

func TestClient_NoReconnectAfterDisconnect(t *testing.T) {
	dialer := &fakeDialer{}
	interval := 20 * time.Millisecond
	client := newTestClient(dialer, interval)
	events := &recorder{}
	events.listen(client, EventConnected, EventDisconnected, EventError)

	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, client.Disconnect())

	require.Eventually(t, func() bool { return client.State() == StateDisconnected }, time.Second, 5*time.Millisecond)
	time.Sleep(5 * interval)
	require.Equal(t, 1, dialer.Dials())
	require.Equal(t, []EventKind{EventConnected, EventDisconnected}, events.Kinds())

	// an explicit connect re-arms reconnection
	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, dialer.Conn(1).Close())
	require.Eventually(t, func() bool { return dialer.Dials() == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, client.Disconnect())
}

func TestClient_NoReconnectWhenDisabled(t *testing.T) {
	dialer := &fakeDialer{}
	interval := 20 * time.Millisecond
	client := newTestClient(dialer, interval)
	client.SetAutoReconnect(false)

	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, dialer.Conn(0).Close())

	require.Eventually(t, func() bool { return client.State() == StateDisconnected }, time.Second, 5*time.Millisecond)
	time.Sleep(5 * interval)
	require.Equal(t, 1, dialer.Dials())
}

func TestClient_DialFailureEmitsErrorAndRetries(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("connection refused")}
	interval := 30 * time.Millisecond
	client := newTestClient(dialer, interval)
	errs := make(chan error, 8)
	client.On(EventError, func(event *Event) error {
		select {
		case errs <- event.Err:
		default:
		}
		return nil
	})

	err := client.Connect(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
	require.Contains(t, (<-errs).Error(), "connection refused")
	require.Equal(t, StateDisconnected, client.State())

	require.Eventually(t, func() bool { return dialer.Dials() >= 2 }, time.Second, 5*time.Millisecond)
	client.SetAutoReconnect(false)
	time.Sleep(2 * interval)
	dials := dialer.Dials()
	time.Sleep(3 * interval)
	require.Equal(t, dials, dialer.Dials())
}

func TestClient_WebsocketRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := r.Context()
		for _, frame := range []string{
			`{"type":"job_status","payload":{"id":"a","status":"processing"}}`,
			`{broken`,
			`{"type":"scanner_status","payload":{"id":"s1","status":"idle"}}`,
		} {
			if err := conn.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
				return
			}
		}
		// hold the connection open until the client leaves
		_, _, _ = conn.Read(ctx)
	}))
	defer server.Close()

	client := NewClient(WebsocketURL(server.URL), &Options{AutoReconnect: false})
	received := make(chan EventKind, 4)
	for _, kind := range []EventKind{EventJobStatus, EventScannerStatus} {
		client.On(kind, func(event *Event) error {
			received <- event.Kind
			return nil
		})
	}

	require.NoError(t, client.Connect(context.Background()))
	require.Equal(t, EventJobStatus, <-received)
	require.Equal(t, EventScannerStatus, <-received)
	require.Equal(t, StateConnected, client.State())

	require.NoError(t, client.Disconnect())
	require.Eventually(t, func() bool { return client.State() == StateDisconnected }, 2*time.Second, 5*time.Millisecond)
}

func TestClient_ReadErrorEmitsErrorThenReconnects(t *testing.T) {
	dialer := &fakeDialer{}
	interval := 30 * time.Millisecond
	client := newTestClient(dialer, interval)
	events := &recorder{}
	events.listen(client, EventConnected, EventDisconnected, EventError)

	require.NoError(t, client.Connect(context.Background()))
	readErr := errors.New("connection reset by peer")
	dialer.Conn(0).readErrs <- readErr

	require.Eventually(t, func() bool { return len(events.Kinds()) == 4 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []EventKind{EventConnected, EventError, EventDisconnected, EventConnected}, events.Kinds())
	require.Equal(t, readErr, events.Event(1).Err)
	require.Equal(t, StateConnected, client.State())

	time.Sleep(3 * interval)
	require.Equal(t, 2, dialer.Dials())
	require.NoError(t, client.Disconnect())
}

func TestClient_ConnectWhileDisconnectIsClosing(t *testing.T) {
	dialer := &fakeDialer{closeLag: 10 * time.Millisecond}
	client := newTestClient(dialer, time.Hour)
	events := &recorder{}
	events.listen(client, EventConnected, EventDisconnected)

	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, client.Disconnect())
	require.NoError(t, client.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return dialer.Dials() == 2 && client.State() == StateConnected
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, StateConnected, client.State())
	require.Equal(t, 2, dialer.Dials())
	require.Equal(t, []EventKind{EventConnected, EventDisconnected, EventConnected}, events.Kinds())

	// a second disconnect drops the deferred connect
	require.NoError(t, client.Disconnect())
	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, client.Disconnect())
	require.Eventually(t, func() bool { return client.State() == StateDisconnected }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, StateDisconnected, client.State())
	require.Equal(t, 2, dialer.Dials())
}
