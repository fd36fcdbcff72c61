package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"possync/internal/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to            []string
	subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []sentMail
}

func (m *fakeMailer) Send(to []string, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func juicePayload(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(LowStockJobPayload{
		AlertID: "a1", ProductID: "p1", SKU: "JUICE-1L", ProductName: "Juice",
		Severity: "warning", Message: "Stock running low: 10 units remaining (reorder level 20)",
		Stock: 10, ReorderLevel: 20, Outcome: "raised",
	})
	require.NoError(t, err)
	return raw
}

func TestLowStockWorker_SendsNotice(t *testing.T) {
	mailer := &fakeMailer{}
	w := NewLowStockWorker(mailer, infra.NewCircuitBreaker(infra.CircuitBreakerConfig{}), "ops@example.com")

	require.NoError(t, w.Process(context.Background(), juicePayload(t)))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"ops@example.com"}, mailer.sent[0].to)
	assert.Equal(t, "[warning] Low stock: Juice (JUICE-1L)", mailer.sent[0].subject)
	assert.Contains(t, mailer.sent[0].body, "Current stock: 10")
	assert.Contains(t, mailer.sent[0].body, "Reorder level: 20")
}

func TestLowStockWorker_OwnerRecipientOverridesDefault(t *testing.T) {
	mailer := &fakeMailer{}
	raw, err := json.Marshal(LowStockJobPayload{
		AlertID: "a1", OwnerID: "o1", SKU: "JUICE-1L", ProductName: "Juice", Severity: "critical",
		Stock: 1, ReorderLevel: 20, Outcome: "raised", To: "owner@shop.example",
	})
	require.NoError(t, err)

	for _, def := range []string{"ops@example.com", ""} {
		w := NewLowStockWorker(mailer, infra.NewCircuitBreaker(infra.CircuitBreakerConfig{}), def)
		require.NoError(t, w.Process(context.Background(), raw))
	}
	require.Len(t, mailer.sent, 2)
	assert.Equal(t, []string{"owner@shop.example"}, mailer.sent[0].to)
	assert.Equal(t, []string{"owner@shop.example"}, mailer.sent[1].to)
}

func TestLowStockWorker_NoRecipientSkips(t *testing.T) {
	mailer := &fakeMailer{}
	w := NewLowStockWorker(mailer, infra.NewCircuitBreaker(infra.CircuitBreakerConfig{}), "")
	require.NoError(t, w.Process(context.Background(), juicePayload(t)))
	assert.Empty(t, mailer.sent)
}

func TestLowStockWorker_InvalidPayloadIsDropped(t *testing.T) {
	mailer := &fakeMailer{}
	w := NewLowStockWorker(mailer, infra.NewCircuitBreaker(infra.CircuitBreakerConfig{}), "ops@example.com")
	assert.NoError(t, w.Process(context.Background(), json.RawMessage(`{"stock":"many"`)))
	assert.Empty(t, mailer.sent)
}

func TestLowStockWorker_FailuresTripBreaker(t *testing.T) {
	relayErr := errors.New("dial tcp: connection refused")
	mailer := &fakeMailer{err: relayErr}
	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{FailureThreshold: 2, OpenTimeout: time.Hour})
	w := NewLowStockWorker(mailer, cb, "ops@example.com")

	assert.ErrorIs(t, w.Process(context.Background(), juicePayload(t)), relayErr)
	assert.ErrorIs(t, w.Process(context.Background(), juicePayload(t)), relayErr)
	assert.Equal(t, infra.CBOpen, cb.State())

	mailer.err = nil
	assert.ErrorIs(t, w.Process(context.Background(), juicePayload(t)), infra.ErrCircuitOpen)
	assert.Empty(t, mailer.sent)
}

type countingSweeper struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingSweeper) SweepRecovered(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return 1, s.err
}

func (s *countingSweeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestStartAlertSweep_TicksUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sweeper := &countingSweeper{}
	StartAlertSweep(ctx, sweeper, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return sweeper.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
}

func TestStartAlertSweep_DisabledWithoutInterval(t *testing.T) {
	sweeper := &countingSweeper{}
	StartAlertSweep(context.Background(), sweeper, 0)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, sweeper.count())
}

func TestSweepOnce_ErrorIsLogged(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("db gone")}
	sweepOnce(context.Background(), sweeper)
	assert.Equal(t, 1, sweeper.count())
}
