package lifecycle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/acceptance/pkg/converge"
	acceptErrors "github.com/openfroyo/acceptance/pkg/errors"
	"github.com/openfroyo/acceptance/pkg/remote"
	"github.com/openfroyo/acceptance/pkg/remote/remotetest"
)

type countingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *countingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
	return ctx.Err()
}

func (s *countingSleeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sleeps)
}

var db1 = remote.Host{Name: "db1"}

func TestStartWaitsForReachability(t *testing.T) {
	runner := remotetest.NewRunner().
		On("curl", remotetest.Exit(7), remotetest.Exit(7), remotetest.Exit(0))
	sleeper := &countingSleeper{}
	c := NewController(runner, WithSleeper(sleeper.Sleep))

	require.NoError(t, c.Start(context.Background(), db1))

	assert.Equal(t, []string{
		"service puppetdb start",
		"curl http://localhost:8080",
		"curl http://localhost:8080",
		"curl http://localhost:8080",
	}, runner.Commands("db1"))
	assert.Equal(t, 2, sleeper.count())
	assert.Equal(t, time.Second, sleeper.sleeps[0])
}

func TestStartTimesOutAfterSixtyProbes(t *testing.T) {
	runner := remotetest.NewRunner().On("curl", remotetest.Exit(7))
	sleeper := &countingSleeper{}
	c := NewController(runner, WithSleeper(sleeper.Sleep))

	err := c.Start(context.Background(), db1)
	require.Error(t, err)
	assert.True(t, acceptErrors.IsServiceStartTimeoutError(err))
	assert.True(t, converge.IsTimeoutError(err))

	var te *converge.TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 7, te.Last)
	assert.Equal(t, 60, te.Attempts)
	assert.Equal(t, 60, runner.Count("curl"))
	assert.Equal(t, 59, sleeper.count())
}

func TestStopWaitsForRefusal(t *testing.T) {
	runner := remotetest.NewRunner().
		On("curl", remotetest.Exit(0), remotetest.Exit(52), remotetest.Exit(7))
	sleeper := &countingSleeper{}
	c := NewController(runner, WithSleeper(sleeper.Sleep))

	require.NoError(t, c.Stop(context.Background(), db1))
	assert.Equal(t, 3, runner.Count("curl"))
	assert.Equal(t, 1, runner.Count("service puppetdb stop"))
}

func TestStopTimeout(t *testing.T) {
	runner := remotetest.NewRunner().On("curl", remotetest.Exit(0))
	c := NewController(runner,
		WithSleeper((&countingSleeper{}).Sleep),
		WithBudget(converge.Retries{Max: 4, Interval: time.Second}))

	err := c.Stop(context.Background(), db1)
	require.Error(t, err)
	assert.True(t, acceptErrors.IsServiceStopTimeoutError(err))
	assert.False(t, acceptErrors.IsServiceStartTimeoutError(err))
	assert.Equal(t, 5, runner.Count("curl"))
}

func TestProbeToolMissingIsATransportFault(t *testing.T) {
	runner := remotetest.NewRunner().On("curl", remotetest.Exit(7), remotetest.Exit(127))
	sleeper := &countingSleeper{}
	c := NewController(runner, WithSleeper(sleeper.Sleep))

	err := c.Start(context.Background(), db1)
	require.Error(t, err)
	assert.True(t, acceptErrors.IsExitCodeError(err))
	assert.False(t, acceptErrors.IsServiceStartTimeoutError(err))
	assert.Equal(t, 2, runner.Count("curl"))
}

func TestServiceCommandFailureSkipsProbe(t *testing.T) {
	runner := remotetest.NewRunner().On("service puppetdb start", remotetest.Response{ExitCode: 1, Stderr: "unrecognized service"})
	c := NewController(runner, WithSleeper((&countingSleeper{}).Sleep))

	err := c.Start(context.Background(), db1)
	require.Error(t, err)
	assert.True(t, acceptErrors.IsExitCodeError(err))
	assert.Zero(t, runner.Count("curl"))
}

func TestRestartAbortsWhenStopFails(t *testing.T) {
	runner := remotetest.NewRunner().On("curl", remotetest.Exit(0))
	c := NewController(runner,
		WithSleeper((&countingSleeper{}).Sleep),
		WithBudget(converge.Retries{Max: 2, Interval: time.Second}))

	err := c.Restart(context.Background(), db1)
	require.Error(t, err)
	assert.True(t, acceptErrors.IsServiceStopTimeoutError(err))
	assert.Zero(t, runner.Count("service puppetdb start"))
}

func TestRestart(t *testing.T) {
	runner := remotetest.NewRunner().
		On("curl", remotetest.Exit(7), remotetest.Exit(7), remotetest.Exit(0))
	c := NewController(runner, WithSleeper((&countingSleeper{}).Sleep))

	require.NoError(t, c.Restart(context.Background(), db1))
	assert.Equal(t, []string{
		"service puppetdb stop",
		"curl http://localhost:8080",
		"service puppetdb start",
		"curl http://localhost:8080",
		"curl http://localhost:8080",
	}, runner.Commands("db1"))
}

func TestCustomServiceAndProbe(t *testing.T) {
	runner := remotetest.NewRunner()
	c := NewController(runner, WithServiceName("pe-puppetdb"), WithProbeURL("http://localhost:8081"))

	require.NoError(t, c.Start(context.Background(), db1))
	assert.Equal(t, []string{"service pe-puppetdb start", "curl http://localhost:8081"}, runner.Commands("db1"))
}

// overlapRunner tracks transitions in flight per host: a service command
// opens one and a successful probe closes it.
type overlapRunner struct {
	mu       sync.Mutex
	inFlight map[string]int
	maxSeen  map[string]int
}

func (r *overlapRunner) Run(ctx context.Context, host remote.Host, cmd string, accept remote.ExitCodes) (remote.Result, error) {
	r.mu.Lock()
	if strings.HasPrefix(cmd, "service") {
		r.inFlight[host.Name]++
		if r.inFlight[host.Name] > r.maxSeen[host.Name] {
			r.maxSeen[host.Name] = r.inFlight[host.Name]
		}
	}
	r.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	if strings.HasPrefix(cmd, "curl") {
		r.mu.Lock()
		r.inFlight[host.Name]--
		r.mu.Unlock()
	}
	return remote.Result{Host: host.Name, Command: cmd}, nil
}

func (r *overlapRunner) WriteFile(ctx context.Context, host remote.Host, path string, content []byte) error {
	return nil
}

func TestTransitionsOnOneHostAreSerialized(t *testing.T) {
	runner := &overlapRunner{inFlight: map[string]int{}, maxSeen: map[string]int{}}
	c := NewController(runner)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Start(context.Background(), db1))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, runner.maxSeen["db1"])
}
