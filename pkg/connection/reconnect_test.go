package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var fastRetry = &Options{
	Backoff: BackoffConfig{
		Initial:    50 * time.Millisecond,
		Max:        200 * time.Millisecond,
		Multiplier: 2.0,
	},
	AttemptTimeout: time.Second,
}

func TestManager(t *testing.T) {
	t.Run("InitialState", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil }, nil)
		defer m.Close()

		if m.State() != StateDisconnected {
			t.Errorf("Initial state = %v, want StateDisconnected", m.State())
		}
		if m.IsConnected() {
			t.Error("IsConnected() = true, want false")
		}
	})

	t.Run("SuccessfulConnect", func(t *testing.T) {
		connectCalled := false
		m := NewManager(func(ctx context.Context) error {
			connectCalled = true
			return nil
		}, nil)
		defer m.Close()

		var connectedCalled bool
		m.OnConnected(func() { connectedCalled = true })

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if !connectCalled {
			t.Error("Connect function was not called")
		}
		if !connectedCalled {
			t.Error("OnConnected callback was not called")
		}
		if m.State() != StateConnected {
			t.Errorf("State() = %v, want StateConnected", m.State())
		}
	})

	t.Run("FailedConnect", func(t *testing.T) {
		expectedErr := errors.New("handshake failed")
		m := NewManager(func(ctx context.Context) error { return expectedErr }, nil)
		defer m.Close()

		if err := m.Connect(context.Background()); !errors.Is(err, expectedErr) {
			t.Errorf("Connect() error = %v, want %v", err, expectedErr)
		}
		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected", m.State())
		}
	})

	t.Run("AlreadyConnected", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil }, nil)
		defer m.Close()

		_ = m.Connect(context.Background())
		if err := m.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
			t.Errorf("Second Connect() error = %v, want ErrAlreadyConnected", err)
		}
	})

	t.Run("ConnectAfterClose", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil }, nil)
		m.Close()
		if err := m.Connect(context.Background()); !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("Connect() error = %v, want ErrConnectionClosed", err)
		}
	})

	t.Run("Disconnect", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil }, &Options{DisableAutoReconnect: true})
		defer m.Close()

		_ = m.Connect(context.Background())

		var disconnectedCalled bool
		m.OnDisconnected(func() { disconnectedCalled = true })
		m.Disconnect()

		if !disconnectedCalled {
			t.Error("OnDisconnected callback was not called")
		}
		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected", m.State())
		}
	})

	t.Run("StateChangeCallback", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil }, nil)
		m.SetAutoReconnect(false)
		defer m.Close()

		var transitions []struct{ old, new State }
		m.OnStateChange(func(old, new State) {
			transitions = append(transitions, struct{ old, new State }{old, new})
		})

		_ = m.Connect(context.Background())
		m.NotifyConnectionLost()

		expected := []struct{ old, new State }{
			{StateDisconnected, StateConnecting},
			{StateConnecting, StateConnected},
			{StateConnected, StateDisconnected},
		}
		if len(transitions) != len(expected) {
			t.Fatalf("Got %d transitions, want %d", len(transitions), len(expected))
		}
		for i, exp := range expected {
			if transitions[i] != exp {
				t.Errorf("Transition %d: got %v->%v, want %v->%v",
					i, transitions[i].old, transitions[i].new, exp.old, exp.new)
			}
		}
	})
}

func TestManagerReconnect(t *testing.T) {
	t.Run("AutoReconnectOnLoss", func(t *testing.T) {
		var connectCount atomic.Int32
		m := NewManager(func(ctx context.Context) error {
			connectCount.Add(1)
			return nil
		}, fastRetry)
		m.StartReconnectLoop()
		defer m.Close()

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Initial Connect() error = %v", err)
		}
		m.NotifyConnectionLost()

		time.Sleep(200 * time.Millisecond)

		if m.State() != StateConnected {
			t.Errorf("State() = %v, want StateConnected after reconnect", m.State())
		}
		if connectCount.Load() != 2 {
			t.Errorf("Connect called %d times, want 2", connectCount.Load())
		}
		if m.BackoffAttempts() != 0 {
			t.Errorf("BackoffAttempts() = %d after success, want 0", m.BackoffAttempts())
		}
	})

	t.Run("RetryAfterFailedFirstConnect", func(t *testing.T) {
		var connectCount atomic.Int32
		var mu sync.Mutex
		var attempts []time.Time
		var delays []time.Duration

		m := NewManager(func(ctx context.Context) error {
			mu.Lock()
			attempts = append(attempts, time.Now())
			mu.Unlock()
			if connectCount.Add(1) < 4 {
				return errors.New("server unreachable")
			}
			return nil
		}, fastRetry)
		m.OnReconnecting(func(attempt int, delay time.Duration) {
			mu.Lock()
			delays = append(delays, delay)
			mu.Unlock()
		})
		m.StartReconnectLoop()
		defer m.Close()

		if err := m.Connect(context.Background()); err == nil {
			t.Fatal("first Connect() should fail")
		}
		m.Retry()

		time.Sleep(600 * time.Millisecond)

		if m.State() != StateConnected {
			t.Errorf("Final state = %v, want StateConnected", m.State())
		}

		mu.Lock()
		defer mu.Unlock()
		if len(attempts) != 4 {
			t.Fatalf("Expected 4 attempts, got %d", len(attempts))
		}
		want := []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}
		for i, d := range want {
			if i >= len(delays) || delays[i] < d || delays[i] > d+d/4+time.Millisecond {
				t.Errorf("delay %d = %v, want about %v", i, delays, d)
			}
		}
		if gap := attempts[1].Sub(attempts[0]); gap < 40*time.Millisecond {
			t.Errorf("First retry after %v, expected at least 40ms", gap)
		}
	})

	t.Run("DisabledAutoReconnect", func(t *testing.T) {
		var connectCount atomic.Int32
		m := NewManager(func(ctx context.Context) error {
			connectCount.Add(1)
			return nil
		}, fastRetry)
		m.SetAutoReconnect(false)
		m.StartReconnectLoop()
		defer m.Close()

		_ = m.Connect(context.Background())
		m.Disconnect()
		time.Sleep(100 * time.Millisecond)

		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected", m.State())
		}
		if connectCount.Load() != 1 {
			t.Errorf("Connect called %d times, want 1", connectCount.Load())
		}
	})

	t.Run("CloseStopsRetries", func(t *testing.T) {
		var connectCount atomic.Int32
		m := NewManager(func(ctx context.Context) error {
			connectCount.Add(1)
			return errors.New("down")
		}, fastRetry)
		m.StartReconnectLoop()

		m.Retry()
		time.Sleep(80 * time.Millisecond)
		m.Close()
		n := connectCount.Load()
		time.Sleep(200 * time.Millisecond)

		if m.State() != StateClosed {
			t.Errorf("State() = %v, want StateClosed", m.State())
		}
		if connectCount.Load() != n {
			t.Errorf("attempts continued after Close: %d -> %d", n, connectCount.Load())
		}
	})
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "DISCONNECTED"},
		{StateConnecting, "CONNECTING"},
		{StateConnected, "CONNECTED"},
		{StateReconnecting, "RECONNECTING"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
