package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-todo-auth/internal/domain"
	"github.com/go-todo-auth/internal/infrastructure/memory"
	"github.com/go-todo-auth/internal/infrastructure/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

// hookStore wraps the memory store to inject another instance's writes or
// store failures between the service's steps.
type hookStore struct {
	*memory.VerificationStore
	afterGet   func()
	flagPutErr error
}

func (h *hookStore) Get(ctx context.Context, email, verType string) (*domain.Verification, error) {
	v, err := h.VerificationStore.Get(ctx, email, verType)
	if h.afterGet != nil {
		h.afterGet()
	}
	return v, err
}

func (h *hookStore) Put(ctx context.Context, v *domain.Verification) error {
	if v.Type == domain.VerificationVerified && h.flagPutErr != nil {
		return h.flagPutErr
	}
	return h.VerificationStore.Put(ctx, v)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// --- builder ---

type fixture struct {
	svc     *service
	store   *memory.VerificationStore
	mailer  *mockMailer
	clock   *fakeClock
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, maxAttempts int) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewVerificationStore(),
		mailer:  &mockMailer{},
		clock:   &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	f.svc = NewService(ServiceDeps{
		Store:       f.store,
		Mailer:      f.mailer,
		Metrics:     f.metrics,
		TTL:         5 * time.Minute,
		MaxAttempts: maxAttempts,
		Now:         f.clock.Now,
	}).(*service)
	f.svc.newCode = func() (string, error) { return "123456", nil }
	return f
}

// --- Send ---

func TestSend_StoresAndMails(t *testing.T) {
	f := newFixture(t, 0)
	f.mailer.On("SendEmail", "a@b.com", "Your OTP Verification Code", mock.MatchedBy(func(body string) bool {
		return body == "Your OTP is: 123456. It will expire in 5 minutes."
	})).Return(nil)

	require.NoError(t, f.svc.Send(context.Background(), "a@b.com"))

	v, err := f.store.Get(context.Background(), "a@b.com", domain.VerificationOTP)
	require.NoError(t, err)
	assert.Equal(t, "123456", v.Code)
	assert.Equal(t, f.clock.Now().Add(5*time.Minute).UnixMilli(), v.ExpiresAt)
	f.mailer.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OTPSent.WithLabelValues("ok")))
}

func TestSend_ReplacesPriorCode(t *testing.T) {
	f := newFixture(t, 0)
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.svc.Send(context.Background(), "a@b.com"))
	f.svc.newCode = func() (string, error) { return "654321", nil }
	require.NoError(t, f.svc.Send(context.Background(), "a@b.com"))

	assert.True(t, errors.Is(f.svc.Verify(context.Background(), "a@b.com", "123456"), domain.ErrOTPMismatch))
	assert.NoError(t, f.svc.Verify(context.Background(), "a@b.com", "654321"))
}

func TestSend_DispatchFailureRollsBack(t *testing.T) {
	f := newFixture(t, 0)
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	err := f.svc.Send(context.Background(), "a@b.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDispatch))
	assert.Zero(t, f.store.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OTPSent.WithLabelValues("dispatch_failed")))
}

// --- Verify ---

func TestVerify_SucceedsOnceThenNotFound(t *testing.T) {
	f := newFixture(t, 0)
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	require.NoError(t, f.svc.Send(ctx, "a@b.com"))
	require.NoError(t, f.svc.Verify(ctx, "a@b.com", "123456"))

	err := f.svc.Verify(ctx, "a@b.com", "123456")
	assert.True(t, errors.Is(err, domain.ErrOTPNotFound))
}

func TestVerify_NoRecord(t *testing.T) {
	f := newFixture(t, 0)
	err := f.svc.Verify(context.Background(), "a@b.com", "123456")
	assert.True(t, errors.Is(err, domain.ErrOTPNotFound))
}

func TestVerify_ExpiredRegardlessOfCode(t *testing.T) {
	f := newFixture(t, 0)
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	require.NoError(t, f.svc.Send(ctx, "a@b.com"))
	f.clock.Advance(5*time.Minute + time.Second)

	assert.True(t, errors.Is(f.svc.Verify(ctx, "a@b.com", "123456"), domain.ErrOTPExpired))
	assert.True(t, errors.Is(f.svc.Verify(ctx, "a@b.com", "000000"), domain.ErrOTPExpired))

	// Stale records are rejected lazily, not removed.
	_, err := f.store.Get(ctx, "a@b.com", domain.VerificationOTP)
	assert.NoError(t, err)
}

func TestVerify_AtExpiryBoundaryStillValid(t *testing.T) {
	f := newFixture(t, 0)
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	require.NoError(t, f.svc.Send(ctx, "a@b.com"))
	f.clock.Advance(5 * time.Minute)
	assert.NoError(t, f.svc.Verify(ctx, "a@b.com", "123456"))
}

func TestVerify_ExpiredJustPastBoundaryOnFractionalSecond(t *testing.T) {
	f := newFixture(t, 0)
	f.clock.t = time.Date(2026, 1, 1, 12, 0, 0, 700*int(time.Millisecond), time.UTC)
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	require.NoError(t, f.svc.Send(ctx, "a@b.com"))
	f.clock.Advance(5*time.Minute + 200*time.Millisecond)
	assert.True(t, errors.Is(f.svc.Verify(ctx, "a@b.com", "123456"), domain.ErrOTPExpired))
}

func TestVerify_FlagWriteFailureKeepsCode(t *testing.T) {
	f := newFixture(t, 0)
	hs := &hookStore{VerificationStore: f.store, flagPutErr: errors.New("throttled")}
	f.svc.store = hs
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	require.NoError(t, f.svc.Send(ctx, "a@b.com"))
	require.Error(t, f.svc.Verify(ctx, "a@b.com", "123456"))

	hs.flagPutErr = nil
	require.NoError(t, f.svc.Verify(ctx, "a@b.com", "123456"))
	assert.NoError(t, f.svc.ConsumeVerified(ctx, "a@b.com"))
}

func TestVerify_StaleMismatchDoesNotRestoreOldCode(t *testing.T) {
	f := newFixture(t, 0)
	hs := &hookStore{VerificationStore: f.store}
	f.svc.store = hs
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()
	require.NoError(t, f.svc.Send(ctx, "a@b.com"))

	// Another instance sends a fresh code while this one is mid-verify.
	hs.afterGet = func() {
		hs.afterGet = nil
		_ = f.store.Put(ctx, &domain.Verification{
			Email: "a@b.com", Type: domain.VerificationOTP, Code: "654321",
			ExpiresAt: f.clock.Now().Add(5 * time.Minute).UnixMilli(),
		})
	}
	assert.True(t, errors.Is(f.svc.Verify(ctx, "a@b.com", "000000"), domain.ErrOTPMismatch))

	v, err := f.store.Get(ctx, "a@b.com", domain.VerificationOTP)
	require.NoError(t, err)
	assert.Equal(t, "654321", v.Code)
	assert.Zero(t, v.Attempts)
	assert.NoError(t, f.svc.Verify(ctx, "a@b.com", "654321"))
}

func TestVerify_MismatchKeepsRecordForRetry(t *testing.T) {
	f := newFixture(t, 0)
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	require.NoError(t, f.svc.Send(ctx, "a@b.com"))
	assert.True(t, errors.Is(f.svc.Verify(ctx, "a@b.com", "111111"), domain.ErrOTPMismatch))
	assert.NoError(t, f.svc.Verify(ctx, "a@b.com", "123456"))
}

func TestVerify_MaxAttemptsDiscardsRecord(t *testing.T) {
	f := newFixture(t, 3)
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	require.NoError(t, f.svc.Send(ctx, "a@b.com"))
	for i := 0; i < 3; i++ {
		assert.True(t, errors.Is(f.svc.Verify(ctx, "a@b.com", "000000"), domain.ErrOTPMismatch))
	}
	assert.True(t, errors.Is(f.svc.Verify(ctx, "a@b.com", "123456"), domain.ErrOTPNotFound))
}

// --- ConsumeVerified ---

func TestConsumeVerified_ExactlyOnce(t *testing.T) {
	f := newFixture(t, 0)
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	assert.True(t, errors.Is(f.svc.ConsumeVerified(ctx, "a@b.com"), domain.ErrOTPNotVerified))

	require.NoError(t, f.svc.Send(ctx, "a@b.com"))
	assert.True(t, errors.Is(f.svc.ConsumeVerified(ctx, "a@b.com"), domain.ErrOTPNotVerified), "sent but not verified")

	require.NoError(t, f.svc.Verify(ctx, "a@b.com", "123456"))
	assert.NoError(t, f.svc.ConsumeVerified(ctx, "a@b.com"))
	assert.True(t, errors.Is(f.svc.ConsumeVerified(ctx, "a@b.com"), domain.ErrOTPNotVerified))
}

func TestConsumeVerified_FlagExpiry(t *testing.T) {
	f := newFixture(t, 0)
	f.svc.verifiedTTL = 10 * time.Minute
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	require.NoError(t, f.svc.Send(ctx, "a@b.com"))
	require.NoError(t, f.svc.Verify(ctx, "a@b.com", "123456"))
	f.clock.Advance(11 * time.Minute)
	assert.True(t, errors.Is(f.svc.ConsumeVerified(ctx, "a@b.com"), domain.ErrOTPNotVerified))
}

func TestConsumeVerified_ConcurrentCallersOnlyOneWins(t *testing.T) {
	f := newFixture(t, 0)
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()
	require.NoError(t, f.svc.Send(ctx, "a@b.com"))
	require.NoError(t, f.svc.Verify(ctx, "a@b.com", "123456"))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.svc.ConsumeVerified(ctx, "a@b.com") == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
