// Package executor hosts the interpreters that run submitted code.
//
// # Overview
//
// An Executor owns a single wazero runtime with WASI preview1 imports. Each
// Language supplies an interpreter module; the Executor compiles it once and
// caches the result, then instantiates a fresh, anonymous module instance for
// every run. Guests get no filesystem, network or preopened directories: only
// arguments, stdout and stderr.
//
// # Basic Usage
//
//	exec, err := executor.New(executor.WithDiskCache())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	result := exec.Run(ctx, javascript.New(), `console.log(2 + 3)`)
//	fmt.Println(result.Output) // 5
//
// # Cancellation
//
// The runtime is created with close-on-context-done, so cancelling the
// context passed to Run stops the guest at its next function call or loop
// back-edge. Run then reports ErrCanceled or ErrTimeout.
//
// # Runners
//
// Bind adapts one Language to the single-method runtime shape the
// coordinator expects:
//
//	py := exec.Bind(python.New(path), executor.WithTimeout(10*time.Second))
//	out, err := py.Run(ctx, "print(5)")
package executor
