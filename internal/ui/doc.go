// Package ui renders orchestrator state for the terminal with lipgloss styles.
//
// [RenderStatus] shows the foreground operation, [RenderTasks] the background task list and
// [Watch] streams status changes of a running download until its job ends.
package ui
