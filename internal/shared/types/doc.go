// Package types provides data structures and errors shared by the app manager
// domains.
//
// Error Taxonomy:
//   - ErrInvalidInput: empty or malformed identifiers and URLs
//   - ErrUnavailable: a required subsystem is missing (no network, no runtime)
//   - ErrUnknownKey: the target id does not match the single active item
//   - ErrNotFound: no application context or file for the given key
//   - ErrGeneral: the operation could not be performed in the current state
//   - ErrTimeout: a rendezvous did not complete within its deadline
//
// Domains wrap these with fmt.Errorf("...: %w", err) and callers match them
// with errors.Is.
//
// Example Usage:
//
//	if _, err := downloads.Download(url, opts); errors.Is(err, types.ErrUnavailable) {
//	    // retry once connectivity is back
//	}
package types
