// Package diagnostics writes crash reports for the host process.
//
// The package implements the crash path:
//
//   - ContextRecorder: static host information (map, base path, command
//     line) captured ahead of time into fixed-size fields.
//
//   - Assembler: renders the text report next to a memory image from the
//     crash context, the console history and the callback trace, using only
//     non-blocking reads.
//
//   - CrashService: recovers panics into UUID-named memory images and runs
//     a single completion callback, normally the assembler.
//
// PruneReports and LatestReport manage the dump directory. TickLoop drives
// per-tick work for hosts without a frame callback.
package diagnostics
