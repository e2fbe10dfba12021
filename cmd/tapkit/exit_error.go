// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/jadnohra/tapkit/internal/archive"
	"github.com/jadnohra/tapkit/internal/checksum"
	"github.com/jadnohra/tapkit/internal/fetch"
	"github.com/jadnohra/tapkit/internal/install"
	"github.com/jadnohra/tapkit/internal/issue"
	"github.com/jadnohra/tapkit/internal/keg"
	"github.com/jadnohra/tapkit/internal/smoke"
	"github.com/jadnohra/tapkit/pkg/formula"
	"github.com/jadnohra/tapkit/pkg/types"
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
// The error has already been printed when an ExitError reaches Execute.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// classifyError maps an error to the process exit code and the issue catalog
// entry that explains it. Unknown errors are treated as unexpected (exit 3).
func classifyError(err error) (types.ExitCode, issue.Id) {
	var (
		ae      *issue.ActionableError
		rateErr *fetch.RateLimitError
		netErr  net.Error
		issueID issue.Id
	)
	if errors.As(err, &ae) {
		issueID = ae.IssueID
	}
	pick := func(code types.ExitCode, id issue.Id) (types.ExitCode, issue.Id) {
		if issueID != 0 {
			id = issueID
		}
		return code, id
	}

	switch {
	case errors.Is(err, smoke.ErrSmokeTestFailed):
		return pick(types.ExitSmokeTestFailed, issue.SmokeTestFailedId)
	case errors.As(err, &rateErr):
		return pick(types.ExitTransient, issue.RateLimitedId)
	case errors.Is(err, checksum.ErrChecksumMismatch):
		return pick(types.ExitUserError, issue.ChecksumMismatchId)
	case errors.Is(err, fetch.ErrTransient):
		return pick(types.ExitTransient, issue.DownloadFailedId)
	case errors.Is(err, formula.ErrInvalidFormula),
		errors.Is(err, formula.ErrInvalidChecksum),
		errors.Is(err, formula.ErrVersionNotFound):
		return pick(types.ExitUserError, issue.InvalidFormulaId)
	case errors.Is(err, archive.ErrUnsupportedFormat),
		errors.Is(err, archive.ErrUnsafePath),
		errors.Is(err, archive.ErrFileTooLarge):
		return pick(types.ExitUserError, issue.UnsupportedArchiveId)
	case errors.Is(err, install.ErrMissingBinary):
		return pick(types.ExitUserError, issue.MissingBinaryId)
	case errors.Is(err, keg.ErrLinkConflict):
		return pick(types.ExitUserError, issue.LinkConflictId)
	case errors.Is(err, keg.ErrNotInstalled):
		return pick(types.ExitUserError, issue.NotInstalledId)
	case errors.Is(err, os.ErrPermission):
		return pick(types.ExitUserError, issue.PermissionDeniedId)
	case isStatusError(err):
		// 4xx other than 429: the URL in the formula is wrong.
		return pick(types.ExitUserError, issue.DownloadFailedId)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		return pick(types.ExitTransient, issue.DownloadFailedId)
	case issueID != 0:
		return types.ExitUserError, issueID
	default:
		return types.ExitTransient, 0
	}
}

func isStatusError(err error) bool {
	var statusErr *fetch.StatusError
	return errors.As(err, &statusErr)
}
