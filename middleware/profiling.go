package middleware

import (
	"fmt"
	"runtime"

	"github.com/grafana/pyroscope-go"

	"github.com/garciabuilder/site-service/config"
)

// profileTypes covers CPU, heap and the lock contention of the per-user sync mutexes.
var profileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
	pyroscope.ProfileMutexCount,
	pyroscope.ProfileMutexDuration,
	pyroscope.ProfileBlockCount,
	pyroscope.ProfileBlockDuration,
}

var profiler *pyroscope.Profiler

// InitProfiling starts continuous profiling against cfg.Profiling.Endpoint.
func InitProfiling(cfg *config.Config) error {
	name, namespace := serviceIdentity(cfg)
	if cfg.Profiling.ServiceName != "" {
		name = cfg.Profiling.ServiceName
	}

	// mutex and block profiles are empty unless sampling is on
	runtime.SetMutexProfileFraction(5)
	runtime.SetBlockProfileRate(5)

	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: name,
		ServerAddress:   cfg.Profiling.Endpoint,
		Tags: map[string]string{
			"namespace": namespace,
			"version":   cfg.Service.Version,
			"env":       cfg.Service.Env,
		},
		ProfileTypes: profileTypes,
	})
	if err != nil {
		return fmt.Errorf("start pyroscope: %w", err)
	}
	profiler = p
	return nil
}

// StopProfiling flushes and stops the profiler if it was started.
func StopProfiling() {
	if profiler == nil {
		return
	}
	_ = profiler.Stop()
	profiler = nil
}
