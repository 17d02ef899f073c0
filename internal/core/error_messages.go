// # Error Codes Reference
//
// This file maps technical errors to user-friendly messages with codes for
// support reference. Codes are grouped by category:
//
// # Setup Errors (SET001-SET099)
//
//	SET001 - Nothing selected: no page was chosen for import
//	SET002 - Missing document: no document id was given
//	SET003 - Unsupported target: a destination field cannot be filled
//	SET004 - Unsupported field: a record field has a type that cannot be read
//	SET005 - Unknown page: a requested page is not part of the container
//	SET006 - Unknown container: the container key is not registered
//
// # Network Errors (NET001-NET099)
//
//	NET001 - Fetch failed: the page could not be downloaded
//	NET002 - Bad URL: the export address is malformed
//	NET003 - Page too large: the download exceeded the size cap
//	NET004 - Timeout: the request timed out
//	NET005 - Connection refused: the document host is unreachable
//
// # Page Errors (PAGE001-PAGE099)
//
//	PAGE001 - Empty page: a single-object page has no data rows
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Cancelled: the import was cancelled
//	RUN002 - Busy: the container is already being imported
//	RUN003 - Not found: the run has expired or never existed
//	RUN004 - System busy: too many imports are running
//	RUN005 - Request cancelled: the caller went away
//
// # Output Errors (OUT001-OUT099)
//
//	OUT001 - Missing directory: the output directory does not exist
//	OUT002 - Unknown format: the serialization format is not supported
//	OUT003 - Invalid file name: the file name contains a path
//	OUT004 - Outside output directory: the path leaves the configured base directory
//
// # History Errors (DB001-DB099)
//
//	DB001 - Connection refused: the history database is unreachable
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: too many requests
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: an unexpected error occurred
//
// # Matching
//
// Sentinel errors are matched first with errors.Is. Other errors fall back to
// case-insensitive substring patterns; the first match wins, so specific
// patterns come before general ones.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

// sentinelMessages is checked in order with errors.Is.
var sentinelMessages = []sentinelMessage{
	{ErrNothingSelected, UserMessage{"Nothing is selected to import", "Choose at least one page", "SET001"}},
	{ErrMissingDocumentID, UserMessage{"No document id was given", "Enter the spreadsheet's document id", "SET002"}},
	{ErrUnsupportedTarget, UserMessage{"A destination field cannot be imported into", "Check the container's page bindings", "SET003"}},
	{ErrUnsupportedField, UserMessage{"A record has a field type that cannot be imported", "Use string, integer, bool, float or enum fields", "SET004"}},
	{ErrUnknownPage, UserMessage{"A requested page is not part of this container", "Check the page names against the container", "SET005"}},
	{ErrContainerNotFound, UserMessage{"Unknown container", "Verify the container key is correct", "SET006"}},
	{ErrBadURL, UserMessage{"The export address is malformed", "Check the document id and base URL", "NET002"}},
	{ErrPageTooLarge, UserMessage{"The page exceeds the maximum download size", "Split the page or raise the size limit", "NET003"}},
	{ErrEmptyPage, UserMessage{"A page has no data rows", "Add a row with an id below the header", "PAGE001"}},
	{ErrCancelled, UserMessage{"Import was cancelled", "Start a new import when ready", "RUN001"}},
	{ErrRunInProgress, UserMessage{"This container is already being imported", "Wait for the running import to finish", "RUN002"}},
	{ErrRunNotFound, UserMessage{"Import run not found", "The run may have expired. Please start a new import", "RUN003"}},
	{ErrTooManyRuns, UserMessage{"System is busy processing other imports", "Please wait a moment and try again", "RUN004"}},
	// Checked after the more specific network sentinels above.
	{ErrFetch, UserMessage{"The page could not be downloaded", "Check that the document is shared and the page name is right", "NET001"}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
var errorPatterns = []errorPattern{
	{"context deadline exceeded", UserMessage{"Request timed out", "Try again, or import fewer pages at once", "NET004"}},
	{"timeout", UserMessage{"Request timed out", "Try again, or import fewer pages at once", "NET004"}},
	{"connection refused", UserMessage{"Unable to connect", "Please try again in a few moments", "NET005"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "RUN005"}},
	{"missing directory", UserMessage{"The output directory does not exist", "Create the directory or change the output path", "OUT001"}},
	{"unknown format", UserMessage{"Unknown output format", "Use json or binary", "OUT002"}},
	{"invalid output file name", UserMessage{"The output file name is not valid", "Use a plain file name without directories", "OUT003"}},
	{"outside allowed directory", UserMessage{"The output path is outside the output directory", "Choose a directory below OUTPUT_BASE_DIR", "OUT004"}},
	{"database", UserMessage{"Run history is unavailable", "Check the history database settings", "DB001"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when nothing matches (ERR000). Support staff
// should check application logs for the original error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(fmt.Errorf("select: %w", ErrUnknownPage))
//	// msg.Code == "SET005"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
