package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/planovo/planovo-api/internal/events"
)

func newTestBus(cfg Config) *Bus {
	return New(cfg, zerolog.Nop())
}

func TestEmitInvokesHandlersInSubscriptionOrder(t *testing.T) {
	// Single worker so deliveries are strictly sequential.
	b := newTestBus(Config{Workers: 1})

	var mu sync.Mutex
	var got []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		b.Subscribe(events.PaymentPaidName, func(ctx context.Context, evt events.Event) error {
			mu.Lock()
			got = append(got, name)
			mu.Unlock()
			return nil
		})
	}

	b.Emit(context.Background(), events.PaymentPaid{TenantID: "t1", InvoiceID: "inv-1"})
	b.Close()

	require.Equal(t, []string{"first", "second", "third"}, got)
}

func TestHandlerFailureDoesNotStopSiblings(t *testing.T) {
	b := newTestBus(Config{Workers: 1})

	ran := make(chan struct{}, 1)
	b.Subscribe(events.PaymentPaidName, func(ctx context.Context, evt events.Event) error {
		panic("boom")
	})
	b.Subscribe(events.PaymentPaidName, func(ctx context.Context, evt events.Event) error {
		ran <- struct{}{}
		return nil
	})

	b.Emit(context.Background(), events.PaymentPaid{TenantID: "t1"})
	b.Close()

	select {
	case <-ran:
	default:
		t.Fatal("second handler did not run after first panicked")
	}
}

func TestEmitDoesNotBlockCaller(t *testing.T) {
	b := newTestBus(Config{Workers: 1, QueueSize: 1})

	blocked := make(chan struct{})
	release := make(chan struct{})
	b.Subscribe(events.EmployeeSickName, func(ctx context.Context, evt events.Event) error {
		close(blocked)
		<-release
		return nil
	})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Emit(context.Background(), events.EmployeeSick{TenantID: "t1", EmployeeID: "e1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked the caller")
	}
	<-blocked
	close(release)
	b.Close()
}

func TestChainDepthBounded(t *testing.T) {
	b := newTestBus(Config{Workers: 1, MaxChainDepth: 3})

	var mu sync.Mutex
	count := 0
	b.Subscribe(events.InvoiceOverdueName, func(ctx context.Context, evt events.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		// Re-emit the same event; the bus must cut the chain off.
		b.Emit(ctx, evt)
		return nil
	})

	b.Emit(context.Background(), events.InvoiceOverdue{TenantID: "t1", InvoiceID: "inv-1"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 3
	}, 2*time.Second, 10*time.Millisecond)

	// Give a potential runaway chain a moment to disprove itself.
	time.Sleep(50 * time.Millisecond)
	b.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, count)
}

func TestQueueStatus(t *testing.T) {
	b := newTestBus(Config{Workers: 1, QueueSize: 16})
	st := b.QueueStatus()
	require.Equal(t, 0, st.QueueLength)
	require.Equal(t, 16, st.Capacity)
	b.Close()
}

func TestEmitAfterCloseIsDropped(t *testing.T) {
	b := newTestBus(Config{Workers: 1})
	called := false
	b.Subscribe(events.TaskOverdueName, func(ctx context.Context, evt events.Event) error {
		called = true
		return nil
	})
	b.Close()
	b.Emit(context.Background(), events.TaskOverdue{TenantID: "t1", TaskID: "task-1"})
	require.False(t, called)
}
