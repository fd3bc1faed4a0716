package repository

import "errors"

// ErrPreconditionFailed is returned by conditional writes whose guard no longer matches the stored document.
// Callers reload the document to report why.
var ErrPreconditionFailed = errors.New("repository: precondition failed")
