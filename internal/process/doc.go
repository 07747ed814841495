// Package process runs spotdl as an external process and keeps track of every live process by id.
//
// # Registry
//
// [Registry] maps an opaque id to a live [Handle]. Registering an id twice fails with
// [shared.ErrDuplicateProcess]; [Registry.Destroy] kills and forgets a live process and returns
// false, never an error, when the id is unknown or the process already exited.
//
// # Runner
//
// [Runner.Run] registers a handle, starts the process, drains stdout and stderr concurrently and
// blocks until exit. Each stdout line is offered to an optional [LineFunc] before it is captured.
// A non-zero exit becomes an [*ExecutionError] unless the command is not strict and stderr is blank.
//
// Canceling the context passed to Run does not kill the process: the awaiting goroutine and the OS
// process are canceled separately, the latter through [Registry.Destroy].
//
// # Client
//
// [Client] builds spotdl command lines from a [Request] (operation, urls, options, raw commands, in
// that order), applies the environment overlay, and implements the metadata fetch and download
// operations used by the task engine.
package process
