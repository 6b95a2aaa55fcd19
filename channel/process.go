package channel

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/deckhand/orkestra/wire"
)

// processChannel wraps an *exec.Cmd's stdin/stdout as a duplex Channel,
// framing each wire.Envelope as one JSON object per line. This is the
// default concrete transport for true worker-process isolation: the spec
// treats the transport as an external collaborator (§1), and newline-
// delimited JSON over a pipe is the standard-library-only idiom for a
// generic duplex byte channel when no third-party RPC framing library in
// the example corpus targets process pipes specifically.
type processChannel struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	enc     *json.Encoder
	mu      sync.Mutex
	handler Handler
	started bool
}

// ProcessSpawner launches worker hosts as OS subprocesses. Resolve maps an
// EntryPoint locator to the executable path and arguments used to start
// the worker host program.
type ProcessSpawner struct {
	Resolve func(entryPoint string) (path string, args []string, err error)
}

// Spawn starts the worker host process, passing it its instance and type
// ids in ORKESTRA_INSTANCE_ID and ORKESTRA_TYPE_ID (the entry point and
// config are not passed to the process), wires its
// stdin/stdout to the returned downlink Channel, and wires a second pair of
// crossed OS pipes passed as extra file descriptors 3 and 4 for the uplink:
// fd 3 is the worker's read end for incoming UPLINK_RESPONSE/UPLINK_ERROR,
// fd 4 its write end for outgoing UPLINK_CALL. The worker host program is
// expected to use channel.NewStdioChannel for its downlink and
// channel.NewFDChannel(3, 4) for its uplink.
func (s *ProcessSpawner) Spawn(params SpawnParams) (Channel, Channel, error) {
	path, args, err := s.Resolve(params.EntryPoint)
	if err != nil {
		return nil, nil, fmt.Errorf("channel: resolve entry point %q: %w", params.EntryPoint, err)
	}

	cmd := exec.Command(path, args...)
	cmd.Env = append(os.Environ(),
		"ORKESTRA_INSTANCE_ID="+params.InstanceID,
		"ORKESTRA_TYPE_ID="+params.TypeID,
	)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("channel: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("channel: stdout pipe: %w", err)
	}

	// Two unidirectional pipes cross to form the duplex uplink: worker->host
	// carries UPLINK_CALL, host->worker carries UPLINK_RESPONSE/UPLINK_ERROR.
	// Each side keeps the opposite ends of the two pipes, the same crossing
	// channel.NewPipe does for the in-process case.
	w2hRead, w2hWrite, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("channel: uplink pipe (worker->host): %w", err)
	}
	h2wRead, h2wWrite, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("channel: uplink pipe (host->worker): %w", err)
	}
	// The child's fd 3 is its read end of host->worker (incoming
	// UPLINK_RESPONSE/UPLINK_ERROR), fd 4 its write end of worker->host
	// (outgoing UPLINK_CALL), matching NewFDChannel(3, 4)'s contract.
	cmd.ExtraFiles = []*os.File{h2wRead, w2hWrite}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("channel: start worker process: %w", err)
	}
	// The host no longer needs the child-local ends once the child has
	// inherited them.
	_ = h2wRead.Close()
	_ = w2hWrite.Close()

	downlink := &processChannel{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		enc:    json.NewEncoder(stdin),
	}
	uplinkHostEnd := &processChannel{
		stdin:  h2wWrite,
		stdout: w2hRead,
		enc:    json.NewEncoder(h2wWrite),
	}
	return downlink, uplinkHostEnd, nil
}

// Terminate kills the process backing downlink. Safe to call more than
// once; a process that already exited is not an error.
func (s *ProcessSpawner) Terminate(downlink Channel) error {
	pc, ok := downlink.(*processChannel)
	if !ok {
		return fmt.Errorf("channel: Terminate called with a non-process Channel")
	}
	if pc.cmd.Process == nil {
		return nil
	}
	_ = pc.cmd.Process.Kill()
	_ = pc.cmd.Wait()
	return nil
}

func (p *processChannel) Send(env wire.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Encode(env)
}

func (p *processChannel) OnMessage(h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

func (p *processChannel) Start() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	handler := p.handler
	p.mu.Unlock()

	go func() {
		scanner := bufio.NewScanner(p.stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			var env wire.Envelope
			if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
				continue
			}
			if handler != nil {
				go handler(env)
			}
		}
	}()
	return nil
}

func (p *processChannel) Close() error {
	return p.stdin.Close()
}

// NewStdioChannel builds the worker-side downlink Channel over the
// process's own standard input/output. Call Close to stop writing further
// frames (or let process exit do it).
func NewStdioChannel() Channel {
	return &processChannel{
		stdin:  os.Stdout, // the worker writes frames to its own stdout
		stdout: os.Stdin,  // and reads frames from its own stdin
		enc:    json.NewEncoder(os.Stdout),
	}
}

// NewFDChannel builds the worker-side uplink Channel over two inherited
// file descriptors: writeFD for outgoing frames (UPLINK_CALL), readFD for
// incoming frames (UPLINK_RESPONSE/UPLINK_ERROR), matching the descriptor
// numbers ProcessSpawner.Spawn wires via cmd.ExtraFiles.
func NewFDChannel(readFD, writeFD int) Channel {
	r := os.NewFile(uintptr(readFD), "uplink-read")
	w := os.NewFile(uintptr(writeFD), "uplink-write")
	return &processChannel{
		stdin:  w,
		stdout: r,
		enc:    json.NewEncoder(w),
	}
}
