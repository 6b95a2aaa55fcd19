package orkestra

// Logger is the minimal leveled-logging capability the engine uses. The
// engine logs only teardown failures, worker teardown timeouts, and
// terminate/uplink-close errors (Warnf); start/stop and worker spawn/ready
// transitions reach Hooks, not the Logger. The teacher module does not hard-wire a concrete
// logging library since it is itself a library, not a service; Orkestra
// follows the same policy and accepts any implementation of this narrow,
// go-logr-shaped surface.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}
