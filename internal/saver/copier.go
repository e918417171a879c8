package saver

// FileCopier abstracts single-file copy so backup logic can be tested
// without touching the real filesystem and so transient failures can be
// simulated. Implementations must preserve the source's modification time
// on the destination; snapshot listing orders by it.
type FileCopier interface {
	CopyFile(src, dst string) error
}
