// Package checkpoint saves and resumes progress through a run's query matrix.
//
// Every (officer, day) search that finishes is recorded under its query key,
// so a resumed run skips the searches it already made. A checkpoint belongs
// to one county and one date range; a run over a different range starts a
// new one.
//
// Checkpoints are stored in platform-specific data directories unless the
// caller names a directory:
//   - Linux: ~/.local/share/odysseyscraper/checkpoints/
//   - macOS: ~/Library/Application Support/odysseyscraper/checkpoints/
//   - Windows: %APPDATA%/odysseyscraper/checkpoints/
//
// The checkpoint files are saved atomically to prevent corruption.
package checkpoint
