package utils

import (
	"gopkg.in/DataDog/dd-trace-go.v1/profiler"

	. "github.com/kwitter-app/kwitter/utils/flag"
	Logger "github.com/kwitter-app/kwitter/utils/log"
)

// InitProfiler starts the Datadog profiler. Called once from main.
func InitProfiler() {
	env := "development"
	if !IsDevelopment {
		env = "production"
	}

	if err := profiler.Start(
		profiler.WithService(ServiceName),
		profiler.WithEnv(env),
		profiler.WithProfileTypes(
			profiler.CPUProfile,
			profiler.HeapProfile,
			// The profiles below are disabled by
			// default to keep overhead low, but
			// can be enabled as needed.
			// profiler.BlockProfile,
			// profiler.MutexProfile,
			// profiler.GoroutineProfile,
		),
	); err != nil {
		Logger.Log.Fatal(err)
	}
}

// Stop profiler, OK to be closed multiple times
func CloseProfiler() {
	// Datadog profiler
	profiler.Stop()
}
