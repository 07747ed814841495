// Package tasks orchestrates spotdl downloads with real-time state reporting.
//
// # Core Operations
//
// The [Downloader] runs three kinds of work:
//
//  1. Foreground operation ([Downloader.GetInfoAndDownload], [Downloader.GetRequestedMetadata])
//     - Only one at a time; a second request fails with shared.ErrDownloaderBusy
//     - Metadata is fetched under the fetch deadline, then each song is downloaded in turn
//     - Direct downloads skip the fetch and run under the download deadline
//     - [Downloader.CancelDownload] cancels the job and destroys its process
//
//  2. Background tasks ([Downloader.ExecuteParallelDownloadWithURL], [Downloader.Batch])
//     - Tracked in the [Store] under [TaskKey], with the accumulated console log and progress
//     - Terminal states ([Completed], [Canceled], [Failed]) are final
//     - Finished tasks are handed to the [HistoryRecorder]
//
//  3. Quick downloads ([Downloader.ExecuteQuickDownload]) which are only counted
//
// # State
//
// Global state ([State], current [TaskItem], [ErrorState], counters) is owned by a single goroutine.
// Pipelines post messages to it; messages from a job that was canceled or replaced are dropped.
// Every change publishes a [Status] to subscribers and re-evaluates the service signal
// (background processes, a non-idle state or quick downloads), starting or stopping the
// [ServiceController] on each transition.
//
// # Timeouts
//
// [WithTimeout] bounds how long a caller waits. It never kills anything: on a timeout the
// [Downloader] destroys the process by id through its [Executor].
//
// # Progress Reporting
//
// [Downloader.Batch] reports [ProgressUpdate] values on a channel without blocking; updates are
// dropped when nobody reads them.
package tasks
