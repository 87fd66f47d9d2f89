// Package internal holds implementation details shared across the evaluation core's packages but
// never exposed to callers. The datastore subpackage in particular holds the concrete store
// implementations; this package holds the plumbing they share, such as status broadcasting.
package internal
