package taskqueue

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"mediaq/internal/pkg/ipc"
	"mediaq/internal/pkg/logger"
	"mediaq/internal/pkg/worker"

	"go.uber.org/zap"
)

// Process is a running worker process as seen by the pool
type Process interface {
	PID() int
	// Send posts a message to the worker. It fails once the process is gone.
	Send(msg ipc.Message) error
	// Kill terminates the process without waiting for it
	Kill() error
	// Done is closed after the exit handler has returned
	Done() <-chan struct{}
}

// ProcessHandlers receive a worker's traffic. Every message is delivered
// before the exit. Spawners must invoke them from their own goroutines,
// never from within Spawn.
type ProcessHandlers struct {
	OnMessage func(msg ipc.Message)
	OnExit    func(code int, err error)
}

// Spawner starts worker processes
type Spawner interface {
	Spawn(opts worker.Options, handlers ProcessHandlers) (Process, error)
}

// propagatedEnv lists the variables a worker inherits from the controller
var propagatedEnv = []string{"TMPDIR", "TEMP", "TMP", "PATH", "HOME", "SYSTEMROOT"}

// workerEnv filters environ down to what a worker needs
func workerEnv(environ []string) []string {
	out := make([]string, 0, len(propagatedEnv)+1)
	for _, kv := range environ {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || key == worker.OptionsEnvVar {
			continue
		}
		if strings.HasPrefix(key, "MEDIAQ_") || contains(propagatedEnv, key) {
			out = append(out, kv)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ExecSpawner starts workers as child processes speaking the protocol over
// stdin/stdout. Whatever a worker writes to stderr is relayed into Logger.
type ExecSpawner struct {
	Command []string
	Logger  *logger.Logger
}

// NewExecSpawner creates a spawner for command. An empty command runs the
// current executable with the "worker" argument.
func NewExecSpawner(command []string, log *logger.Logger) (*ExecSpawner, error) {
	if len(command) == 0 {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve worker executable: %w", err)
		}
		command = []string{self, "worker"}
	}
	return &ExecSpawner{Command: command, Logger: log}, nil
}

// Spawn implements Spawner
func (s *ExecSpawner) Spawn(opts worker.Options, handlers ProcessHandlers) (Process, error) {
	encoded, err := opts.Encode()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(s.Command[0], s.Command[1:]...)
	cmd.Env = append(workerEnv(os.Environ()), worker.OptionsEnvVar+"="+encoded)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker %d: %w", opts.WorkerID, err)
	}

	p := &execProcess{
		cmd:   cmd,
		stdin: stdin,
		enc:   ipc.NewEncoder(stdin),
		done:  make(chan struct{}),
	}
	log := s.Logger.With(zap.Int("worker_id", opts.WorkerID), zap.Int("pid", p.PID()))

	var relay sync.WaitGroup
	relay.Add(1)
	go func() {
		defer relay.Done()
		relayOutput(stderr, log)
	}()

	go func() {
		defer close(p.done)

		readMessages(stdout, handlers.OnMessage, log)
		relay.Wait()

		err := cmd.Wait()
		handlers.OnExit(exitCode(cmd, err), err)
	}()

	return p, nil
}

// readMessages decodes protocol messages until the stream ends
func readMessages(r io.Reader, onMessage func(ipc.Message), log *logger.Logger) {
	dec := ipc.NewDecoder(r)
	for {
		msg, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if ipc.IsRecoverable(err) {
				log.Warn("Ignoring malformed message from worker", zap.Error(err))
				continue
			}
			log.Warn("Worker channel failed", zap.Error(err))
			_, _ = io.Copy(io.Discard, r)
			return
		}
		onMessage(msg)
	}
}

// relayOutput forwards stderr lines into the controller logger
func relayOutput(r io.Reader, log *logger.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			log.Info("worker", zap.String("output", line))
		}
	}
	_, _ = io.Copy(io.Discard, r)
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

type execProcess struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	enc   *ipc.Encoder
	done  chan struct{}
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Send(msg ipc.Message) error {
	select {
	case <-p.done:
		return fmt.Errorf("worker process %d has exited", p.PID())
	default:
	}
	return p.enc.Encode(msg)
}

func (p *execProcess) Kill() error {
	_ = p.stdin.Close()
	if err := p.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to kill worker process %d: %w", p.PID(), err)
	}
	return nil
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}
