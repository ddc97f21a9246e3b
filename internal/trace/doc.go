// Package trace holds the callback trace history: the binary record codec,
// the producer-side encoder and the bounded ring buffer that keeps the most
// recent entries for crash reports.
//
// Producers send one record per instrumented call. The ring decodes outside
// its lock, applies the exclude filters of the current configuration
// snapshot, and stores the entry in the next slot, overwriting the oldest
// once full. Readers get a newest-first copy.
package trace
