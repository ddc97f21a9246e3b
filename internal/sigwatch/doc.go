// Package sigwatch keeps the process's fatal-signal handlers pointed at the
// crash reporter.
//
// Other components loaded into the host (profilers, runtimes, anti-cheat
// modules) sometimes install their own SIGSEGV/SIGABRT handlers and never
// chain to the previous one. The Watchdog records the handler present when
// the subsystem loads and, on every host tick, reinstalls it on all
// monitored signals if any of them has been replaced.
//
// SignalTable abstracts the OS so the watchdog can be tested with an
// in-memory table. SystemTable is the rt_sigaction implementation on
// 64-bit Linux and a stub elsewhere.
package sigwatch
