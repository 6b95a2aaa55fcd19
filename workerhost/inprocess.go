package workerhost

import (
	"time"

	"github.com/deckhand/orkestra/channel"
)

// InProcessSpawner implements channel.Spawner by running a worker host in a
// goroutine of the same process, wired to the engine over two in-process
// channel.NewPipe pairs (one for the downlink, one for the uplink), rather
// than spawning a real OS
// subprocess. This is the "OS threads with message ports" transport the
// spec allows as an alternative to subprocess pipes (spec §1), and is what
// makes the worker-mode scenarios (S2, S6) exercisable without an external
// build step.
type InProcessSpawner struct {
	Registry   *Registry
	RPCTimeout time.Duration
}

// Spawn resolves bundle.TypeID against s.Registry synchronously (an
// unknown entry point/type fails the spawn immediately, the same contract
// a real subprocess's early exit would signal) and then runs the worker's
// lifecycle in a new goroutine.
func (s *InProcessSpawner) Spawn(params channel.SpawnParams) (channel.Channel, channel.Channel, error) {
	pt, err := s.Registry.Resolve(params.EntryPoint, params.TypeID)
	if err != nil {
		return nil, nil, err
	}

	hostDownlink, workerDownlink := channel.NewPipe()
	hostUplink, workerUplink := channel.NewPipe()

	bundle := Bundle{
		InstanceID: params.InstanceID,
		TypeID:     params.TypeID,
		EntryPoint: params.EntryPoint,
		Config:     params.Config,
	}

	timeout := s.RPCTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	go func() {
		_ = RunResolved(pt, bundle, workerDownlink, workerUplink, timeout)
	}()

	return hostDownlink, hostUplink, nil
}

// Terminate closes the host end of the downlink channel, which stops its
// read loop. The worker goroutine's own channel ends are not closed by this
// spawner.
func (s *InProcessSpawner) Terminate(downlink channel.Channel) error {
	return downlink.Close()
}
