package daemon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/marcin-skalski/seatwatch/internal/logging"
	"github.com/marcin-skalski/seatwatch/internal/notify"
	"github.com/marcin-skalski/seatwatch/internal/seats"
	"github.com/marcin-skalski/seatwatch/internal/store"
	"github.com/marcin-skalski/seatwatch/internal/store/mocks"
)

type fixedFetcher struct {
	reading seats.Reading
	// block, when set, makes Fetch hang until closed, ignoring ctx.
	block chan struct{}
}

func (f *fixedFetcher) Fetch(_ context.Context, _ string) (seats.Reading, error) {
	if f.block != nil {
		<-f.block
	}
	return f.reading, nil
}

type sentMessage struct {
	to      []string
	subject string
	body    string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) Notify(_ context.Context, to []string, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{to: to, subject: subject, body: body})
	return nil
}

func (n *recordingNotifier) withSubject(subject string) []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMessage
	for _, m := range n.sent {
		if m.subject == subject {
			out = append(out, m)
		}
	}
	return out
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func item(id, name string) store.WatchedItem {
	return store.WatchedItem{
		ID:         id,
		Name:       name,
		Target:     "http://seats.test/" + id,
		Recipients: []string{id + "@x.edu"},
		Desired:    true,
	}
}

func testOptions() Options {
	return Options{
		PollInterval:      time.Hour,
		ReconcileInterval: time.Hour,
		ShutdownTimeout:   time.Second,
		SiteURL:           "https://seats.example.edu",
	}
}

// newTestDaemon returns a daemon ready for direct reconcile calls, without
// a running loop.
func newTestDaemon(t *testing.T, st store.DesiredState, f *fixedFetcher, n notify.Notifier) *Daemon {
	t.Helper()

	d := New(st, f, n, testOptions(), logging.Discard())
	d.base, d.baseCancel = context.WithCancel(context.Background())
	t.Cleanup(func() {
		for _, p := range d.registry.Drain() {
			p.Cancel()
			<-p.Done()
		}
		d.baseCancel()
	})
	return d
}

func TestReconcile_ActivationAndDeactivationInOneTick(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockDesiredState(ctrl)
	n := &recordingNotifier{}
	d := newTestDaemon(t, st, &fixedFetcher{reading: seats.Reading{Capacity: 30, Actual: 28, Remaining: 2}}, n)

	oldItem := item("old", "MAT 211")
	newItem := item("new", "CSC 190")

	d.spawn(oldItem, false)
	oldPoller, ok := d.registry.Get("old")
	require.True(t, ok)

	ctx := context.Background()
	gomock.InOrder(
		st.EXPECT().ListDesiredActiveNotRunning(gomock.Any()).Return([]store.WatchedItem{newItem}, nil),
		st.EXPECT().MarkRunning(gomock.Any(), "new").Return(nil),
		st.EXPECT().OnboardRecipientsIfNew(gomock.Any(), newItem).
			Return([]store.Recipient{{Address: "new@x.edu", DeactivationCode: "CODE1234567890abcdef"}}, nil),
		st.EXPECT().ListDesiredInactiveButRunning(gomock.Any()).Return([]store.WatchedItem{oldItem}, nil),
		st.EXPECT().MarkNotRunning(gomock.Any(), "old").Return(nil),
	)

	require.NoError(t, d.reconcile(ctx))

	assert.Equal(t, 1, d.registry.Len())
	_, hasNew := d.registry.Get("new")
	assert.True(t, hasNew)
	_, hasOld := d.registry.Get("old")
	assert.False(t, hasOld)

	select {
	case <-oldPoller.Done():
	default:
		t.Fatal("deactivated poller was not joined")
	}

	welcomes := n.withSubject(notify.WelcomeSubject)
	require.Len(t, welcomes, 1)
	assert.Equal(t, []string{"new@x.edu"}, welcomes[0].to)
	assert.Contains(t, welcomes[0].body, "CODE1234567890abcdef")
	assert.Contains(t, welcomes[0].body, "https://seats.example.edu")

	require.Eventually(t, func() bool {
		return len(n.withSubject(notify.AlertSubject("CSC 190"))) == 1
	}, time.Second, 5*time.Millisecond, "new item should announce its baseline")
	assert.Equal(t, "There are 2 seats available in the course.", n.withSubject(notify.AlertSubject("CSC 190"))[0].body)
}

func TestReconcile_NoChangesIsNoop(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockDesiredState(ctrl)
	n := &recordingNotifier{}
	d := newTestDaemon(t, st, &fixedFetcher{}, n)

	d.spawn(item("a", "A"), false)

	st.EXPECT().ListDesiredActiveNotRunning(gomock.Any()).Return(nil, nil).Times(2)
	st.EXPECT().ListDesiredInactiveButRunning(gomock.Any()).Return(nil, nil).Times(2)

	require.NoError(t, d.reconcile(context.Background()))
	require.NoError(t, d.reconcile(context.Background()))

	assert.Equal(t, 1, d.registry.Len())
	assert.Equal(t, 0, n.count())
}

func TestReconcile_StoreErrorAbortsTick(t *testing.T) {
	t.Parallel()

	t.Run("listing activations", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		st := mocks.NewMockDesiredState(ctrl)
		d := newTestDaemon(t, st, &fixedFetcher{}, &recordingNotifier{})

		st.EXPECT().ListDesiredActiveNotRunning(gomock.Any()).Return(nil, errors.New("connection refused"))

		err := d.reconcile(context.Background())
		require.ErrorContains(t, err, "connection refused")
		assert.Equal(t, 0, d.registry.Len())
		assert.Equal(t, "list newly desired items: connection refused", d.GetSnapshot().LastReconcileErr)
	})

	t.Run("listing deactivations", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		st := mocks.NewMockDesiredState(ctrl)
		d := newTestDaemon(t, st, &fixedFetcher{}, &recordingNotifier{})

		a := item("a", "A")
		st.EXPECT().ListDesiredActiveNotRunning(gomock.Any()).Return([]store.WatchedItem{a}, nil)
		st.EXPECT().MarkRunning(gomock.Any(), "a").Return(nil)
		st.EXPECT().OnboardRecipientsIfNew(gomock.Any(), a).Return(nil, nil)
		st.EXPECT().ListDesiredInactiveButRunning(gomock.Any()).Return(nil, errors.New("timeout"))

		require.Error(t, d.reconcile(context.Background()))
		assert.Equal(t, 1, d.registry.Len())
	})
}

func TestReconcile_MarkRunningFailureSkipsItem(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockDesiredState(ctrl)
	d := newTestDaemon(t, st, &fixedFetcher{}, &recordingNotifier{})

	a, b := item("a", "A"), item("b", "B")
	st.EXPECT().ListDesiredActiveNotRunning(gomock.Any()).Return([]store.WatchedItem{a, b}, nil)
	st.EXPECT().MarkRunning(gomock.Any(), "a").Return(store.ErrNotFound)
	st.EXPECT().MarkRunning(gomock.Any(), "b").Return(nil)
	st.EXPECT().OnboardRecipientsIfNew(gomock.Any(), b).Return(nil, nil)
	st.EXPECT().ListDesiredInactiveButRunning(gomock.Any()).Return(nil, nil)

	require.NoError(t, d.reconcile(context.Background()))

	_, hasA := d.registry.Get("a")
	assert.False(t, hasA)
	_, hasB := d.registry.Get("b")
	assert.True(t, hasB)
}

func TestReconcile_OnboardingFailureStillStartsPoller(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockDesiredState(ctrl)
	n := &recordingNotifier{}
	d := newTestDaemon(t, st, &fixedFetcher{}, n)

	a := item("a", "A")
	st.EXPECT().ListDesiredActiveNotRunning(gomock.Any()).Return([]store.WatchedItem{a}, nil)
	st.EXPECT().MarkRunning(gomock.Any(), "a").Return(nil)
	st.EXPECT().OnboardRecipientsIfNew(gomock.Any(), a).Return(nil, errors.New("deadlock detected"))
	st.EXPECT().ListDesiredInactiveButRunning(gomock.Any()).Return(nil, nil)

	require.NoError(t, d.reconcile(context.Background()))
	assert.Equal(t, 1, d.registry.Len())
	assert.Empty(t, n.withSubject(notify.WelcomeSubject))
}

func TestReconcile_NeverDuplicatesPoller(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockDesiredState(ctrl)
	d := newTestDaemon(t, st, &fixedFetcher{}, &recordingNotifier{})

	a := item("a", "A")
	d.spawn(a, false)
	existing, _ := d.registry.Get("a")

	st.EXPECT().ListDesiredActiveNotRunning(gomock.Any()).Return([]store.WatchedItem{a}, nil)
	st.EXPECT().MarkRunning(gomock.Any(), "a").Return(nil)
	st.EXPECT().ListDesiredInactiveButRunning(gomock.Any()).Return(nil, nil)

	require.NoError(t, d.reconcile(context.Background()))

	assert.Equal(t, 1, d.registry.Len())
	got, _ := d.registry.Get("a")
	assert.Same(t, existing, got)
}

func TestReconcile_DeactivateUnknownItem(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockDesiredState(ctrl)
	d := newTestDaemon(t, st, &fixedFetcher{}, &recordingNotifier{})

	a := item("a", "A")
	a.Desired = false
	st.EXPECT().ListDesiredActiveNotRunning(gomock.Any()).Return(nil, nil)
	st.EXPECT().ListDesiredInactiveButRunning(gomock.Any()).Return([]store.WatchedItem{a}, nil)
	st.EXPECT().MarkNotRunning(gomock.Any(), "a").Return(nil)

	require.NoError(t, d.reconcile(context.Background()))
	assert.Equal(t, 0, d.registry.Len())
}

func TestStart_ResumesRunningWithoutOnboarding(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockDesiredState(ctrl)
	n := &recordingNotifier{}
	f := &fixedFetcher{reading: seats.Reading{Capacity: 10, Actual: 10, Remaining: 0}}
	d := New(st, f, n, testOptions(), logging.Discard())

	a, b := item("a", "A"), item("b", "B")
	a.Running, b.Running = true, true
	st.EXPECT().ListAlreadyRunning(gomock.Any()).Return([]store.WatchedItem{a, b}, nil)
	st.EXPECT().ListDesiredActiveNotRunning(gomock.Any()).Return(nil, nil).AnyTimes()
	st.EXPECT().ListDesiredInactiveButRunning(gomock.Any()).Return(nil, nil).AnyTimes()

	require.NoError(t, d.Start(context.Background()))
	assert.Equal(t, 2, d.PollerCount())
	pollers := d.registry.List()

	require.Eventually(t, func() bool {
		snap := d.GetSnapshot()
		return len(snap.Courses) == 2 && snap.Courses[0].HasReading && snap.Courses[1].HasReading
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))

	assert.Equal(t, 0, d.PollerCount())
	for _, p := range pollers {
		select {
		case <-p.Done():
		default:
			t.Fatalf("poller %s still running after Shutdown", p.ID())
		}
	}
	assert.Equal(t, 0, n.count(), "resumed items must not be onboarded or announced")
}

func TestStart_Twice(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockDesiredState(ctrl)
	d := New(st, &fixedFetcher{}, &recordingNotifier{}, testOptions(), logging.Discard())

	st.EXPECT().ListAlreadyRunning(gomock.Any()).Return(nil, nil)
	st.EXPECT().ListDesiredActiveNotRunning(gomock.Any()).Return(nil, nil).AnyTimes()
	st.EXPECT().ListDesiredInactiveButRunning(gomock.Any()).Return(nil, nil).AnyTimes()

	require.NoError(t, d.Start(context.Background()))
	assert.ErrorIs(t, d.Start(context.Background()), ErrAlreadyStarted)
	require.NoError(t, d.Shutdown(context.Background()))
}

func TestStart_StoreError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockDesiredState(ctrl)
	d := New(st, &fixedFetcher{}, &recordingNotifier{}, testOptions(), logging.Discard())

	st.EXPECT().ListAlreadyRunning(gomock.Any()).Return(nil, errors.New("no route to host"))

	require.ErrorContains(t, d.Start(context.Background()), "no route to host")
	assert.NoError(t, d.Shutdown(context.Background()))
}

func TestShutdown_OnlyOnce(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockDesiredState(ctrl)
	d := New(st, &fixedFetcher{}, &recordingNotifier{}, testOptions(), logging.Discard())

	st.EXPECT().ListAlreadyRunning(gomock.Any()).Return([]store.WatchedItem{item("a", "A")}, nil)
	st.EXPECT().ListDesiredActiveNotRunning(gomock.Any()).Return(nil, nil).AnyTimes()
	st.EXPECT().ListDesiredInactiveButRunning(gomock.Any()).Return(nil, nil).AnyTimes()

	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Shutdown(context.Background()))
	require.NoError(t, d.Shutdown(context.Background()))
}

func TestShutdown_TimesOutOnStuckPoller(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockDesiredState(ctrl)
	f := &fixedFetcher{block: make(chan struct{})}
	d := New(st, f, &recordingNotifier{}, testOptions(), logging.Discard())
	t.Cleanup(func() { close(f.block) })

	st.EXPECT().ListAlreadyRunning(gomock.Any()).Return([]store.WatchedItem{item("stuck", "Stuck")}, nil)
	st.EXPECT().ListDesiredActiveNotRunning(gomock.Any()).Return(nil, nil).AnyTimes()
	st.EXPECT().ListDesiredInactiveButRunning(gomock.Any()).Return(nil, nil).AnyTimes()

	require.NoError(t, d.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.Shutdown(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "1 pollers still running")
	assert.Equal(t, 0, d.PollerCount())
	assert.ErrorIs(t, d.base.Err(), context.Canceled)
}

func TestShutdown_CancelsPollersWhenReconcilerIsStuck(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockDesiredState(ctrl)
	d := New(st, &fixedFetcher{reading: seats.Reading{Capacity: 5, Actual: 5}}, &recordingNotifier{}, testOptions(), logging.Discard())

	entered := make(chan struct{})
	release := make(chan struct{})
	unblock := sync.OnceFunc(func() { close(release) })
	var once sync.Once
	st.EXPECT().ListAlreadyRunning(gomock.Any()).Return([]store.WatchedItem{item("a", "A")}, nil)
	st.EXPECT().ListDesiredActiveNotRunning(gomock.Any()).
		DoAndReturn(func(context.Context) ([]store.WatchedItem, error) {
			once.Do(func() { close(entered) })
			<-release
			return []store.WatchedItem{item("late", "Late")}, nil
		}).AnyTimes()
	st.EXPECT().MarkRunning(gomock.Any(), "late").Return(nil).AnyTimes()
	st.EXPECT().OnboardRecipientsIfNew(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	st.EXPECT().ListDesiredInactiveButRunning(gomock.Any()).Return(nil, nil).AnyTimes()
	t.Cleanup(func() {
		unblock()
		<-d.loopDone
	})

	require.NoError(t, d.Start(context.Background()))
	pollers := d.registry.List()
	require.Len(t, pollers, 1)
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.Shutdown(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "reconciler did not stop")

	select {
	case <-pollers[0].Done():
	case <-time.After(time.Second):
		t.Fatal("poller kept running after Shutdown gave up on the reconciler")
	}
	assert.Equal(t, 0, d.PollerCount())

	// The reconciler finishing its tick late must not bring a poller back.
	unblock()
	<-d.loopDone
	assert.Equal(t, 0, d.PollerCount())
}

func TestShutdown_BeforeStartKeepsShutdownUsable(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockDesiredState(ctrl)
	d := New(st, &fixedFetcher{}, &recordingNotifier{}, testOptions(), logging.Discard())

	require.NoError(t, d.Shutdown(context.Background()))

	st.EXPECT().ListAlreadyRunning(gomock.Any()).Return([]store.WatchedItem{item("a", "A")}, nil)
	st.EXPECT().ListDesiredActiveNotRunning(gomock.Any()).Return(nil, nil).AnyTimes()
	st.EXPECT().ListDesiredInactiveButRunning(gomock.Any()).Return(nil, nil).AnyTimes()

	require.NoError(t, d.Start(context.Background()))
	pollers := d.registry.List()
	require.Len(t, pollers, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
	assert.Equal(t, 0, d.PollerCount())
	select {
	case <-pollers[0].Done():
	default:
		t.Fatal("poller still running after Shutdown")
	}

	assert.ErrorIs(t, d.Start(context.Background()), ErrAlreadyStarted)
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockDesiredState(ctrl)
	d := New(st, &fixedFetcher{}, &recordingNotifier{}, testOptions(), logging.Discard())

	st.EXPECT().ListAlreadyRunning(gomock.Any()).Return([]store.WatchedItem{item("a", "A")}, nil)
	st.EXPECT().ListDesiredActiveNotRunning(gomock.Any()).Return(nil, nil).AnyTimes()
	st.EXPECT().ListDesiredInactiveButRunning(gomock.Any()).Return(nil, nil).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return d.PollerCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, 0, d.PollerCount())
}
