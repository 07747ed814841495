// Package server exposes the downloader through a local JSON API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [MuxRouter] implementation uses gorilla/mux internally with method matching and encoded path variables,
// so task keys (which embed a url) can be passed percent-encoded in the path.
//
// # Endpoints
//
//	GET    /health                 liveness
//	GET    /status                 orchestrator status
//	GET    /tasks                  background tasks
//	DELETE /tasks                  clear finished tasks
//	GET    /tasks/{key}            one background task
//	DELETE /tasks/{key}            cancel a background task
//	POST   /tasks/{key}/restart    restart a finished task
//	POST   /downloads              start the foreground download
//	DELETE /downloads/current      cancel the foreground download
//	POST   /downloads/parallel     start a background download
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
