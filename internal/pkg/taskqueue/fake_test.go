package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mediaq/internal/pkg/ipc"
	"mediaq/internal/pkg/logger"
	"mediaq/internal/pkg/worker"

	"github.com/stretchr/testify/require"
)

// fakeSpawner runs the real worker runtime (or a scripted peer) on
// goroutines connected by pipes instead of starting processes
type fakeSpawner struct {
	// setup registers handlers on each worker runtime
	setup func(rt *worker.Runtime)
	// script replaces the runtime when set
	script func(in *ipc.Decoder, out *ipc.Encoder)
	// gate delays worker boot until closed
	gate chan struct{}
	// failBoots makes the first n processes exit before reporting ready
	failBoots int

	spawnErr error
	sendErr  error

	mu    sync.Mutex
	procs []*fakeProcess
}

type fakeProcess struct {
	pid     int
	opts    worker.Options
	inW     *io.PipeWriter
	outR    *io.PipeReader
	enc     *ipc.Encoder
	sendErr error
	code    atomic.Int32
	exited  atomic.Bool
	killed  atomic.Bool
	done    chan struct{}
}

func (s *fakeSpawner) Spawn(opts worker.Options, h ProcessHandlers) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spawnErr != nil {
		return nil, s.spawnErr
	}

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	p := &fakeProcess{
		pid:     1000 + len(s.procs),
		opts:    opts,
		inW:     inW,
		outR:    outR,
		enc:     ipc.NewEncoder(inW),
		sendErr: s.sendErr,
		done:    make(chan struct{}),
	}
	failBoot := len(s.procs) < s.failBoots
	s.procs = append(s.procs, p)

	gate, setup, script := s.gate, s.setup, s.script
	if failBoot {
		p.code.Store(1)
		script = func(*ipc.Decoder, *ipc.Encoder) {}
	}
	go func() {
		defer outW.Close()
		if gate != nil {
			<-gate
		}
		if script != nil {
			script(ipc.NewDecoder(inR), ipc.NewEncoder(outW))
			return
		}
		rt := worker.NewRuntime(opts, logger.NewNop())
		if setup != nil {
			setup(rt)
		}
		_ = rt.Serve(context.Background(), inR, outW)
	}()

	go func() {
		defer close(p.done)
		readMessages(outR, h.OnMessage, logger.NewNop())
		p.exited.Store(true)
		h.OnExit(int(p.code.Load()), nil)
	}()

	return p, nil
}

func (s *fakeSpawner) spawned() []*fakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*fakeProcess, len(s.procs))
	copy(out, s.procs)
	return out
}

func (s *fakeSpawner) count() int {
	return len(s.spawned())
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Send(msg ipc.Message) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	if p.exited.Load() {
		return errors.New("process exited")
	}
	return p.enc.Encode(msg)
}

func (p *fakeProcess) Kill() error {
	if !p.killed.CompareAndSwap(false, true) {
		return errors.New("already killed")
	}
	p.terminate(-1)
	return nil
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

// exit simulates the process ending on its own with code
func (p *fakeProcess) exit(code int) {
	p.terminate(code)
}

func (p *fakeProcess) terminate(code int) {
	p.code.Store(int32(code))
	_ = p.inW.Close()
	_ = p.outR.Close()
}

// testHandlers registers the handlers the queue tests use. "block" waits
// for release to be closed.
func testHandlers(release <-chan struct{}) func(rt *worker.Runtime) {
	return func(rt *worker.Runtime) {
		rt.Register("echo", worker.HandlerFunc(func(ctx context.Context, task *worker.Task) (any, error) {
			return task.Payload, nil
		}))
		rt.Register("fail", worker.HandlerFunc(func(ctx context.Context, task *worker.Task) (any, error) {
			return nil, errors.New("boom")
		}))
		rt.Register("block", worker.HandlerFunc(func(ctx context.Context, task *worker.Task) (any, error) {
			<-release
			return "released", nil
		}))
		rt.Register("whoami", worker.HandlerFunc(func(ctx context.Context, task *worker.Task) (any, error) {
			return map[string]any{"worker": task.WorkerID, "session": task.Session.ID}, nil
		}))
		rt.Register("progress", worker.HandlerFunc(func(ctx context.Context, task *worker.Task) (any, error) {
			if err := task.SendMessage(map[string]any{"type": "progress", "pct": 50}); err != nil {
				return nil, err
			}
			if err := task.SendMessage(map[string]any{"note": "untyped"}); err != nil {
				return nil, err
			}
			return "done", nil
		}))
	}
}

type testEnv struct {
	q       *Queue
	spawner *fakeSpawner
	release chan struct{}
	fatal   chan error

	mu      sync.Mutex
	results []Result
}

func newTestEnv(t *testing.T, opts Options, tweak ...func(*fakeSpawner)) *testEnv {
	t.Helper()

	env := &testEnv{
		release: make(chan struct{}),
		fatal:   make(chan error, 8),
	}
	env.spawner = &fakeSpawner{setup: testHandlers(env.release)}
	for _, fn := range tweak {
		fn(env.spawner)
	}

	if opts.MaxWorkers == 0 {
		opts.MaxWorkers = 2
	}
	opts.Spawner = env.spawner
	opts.Session = worker.Session{ID: "session-1"}
	opts.OnFatal = func(err error) { env.fatal <- err }

	q, err := New(opts, logger.NewNop())
	require.NoError(t, err)
	env.q = q

	q.OnTaskComplete(func(_ context.Context, r Result) error {
		env.mu.Lock()
		env.results = append(env.results, r)
		env.mu.Unlock()
		return nil
	})

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Shutdown(ctx)
		select {
		case <-env.release:
		default:
			close(env.release)
		}
	})
	return env
}

func (e *testEnv) collected() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Result, len(e.results))
	copy(out, e.results)
	return out
}

func (e *testEnv) resultsFor(id string) []Result {
	var out []Result
	for _, r := range e.collected() {
		if r.TaskID == id {
			out = append(out, r)
		}
	}
	return out
}

func (e *testEnv) releaseAll() {
	close(e.release)
}

func (e *testEnv) awaitAll(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.q.AwaitAllTasks(ctx))
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 5*time.Millisecond, msg)
}

func (e *testEnv) readyWorkers() int {
	n := 0
	for _, w := range e.q.GetWorkerState() {
		if w.Ready {
			n++
		}
	}
	return n
}

func (e *testEnv) running() int {
	return e.q.GetStatus().Running
}

func rawJSON(s string) json.RawMessage {
	return json.RawMessage(s)
}
