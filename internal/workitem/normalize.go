package workitem

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeYesNo maps the accepted spellings to Yes or No. Anything else
// reports false, meaning the field must be left untouched.
func NormalizeYesNo(raw string) (YesNo, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "1", "true":
		return Yes, true
	case "no", "n", "0", "false":
		return No, true
	}
	return Unset, false
}

// NormalizeFileStatus maps received and old; any other non-empty value is
// Pending. An empty value reports false.
func NormalizeFileStatus(raw string) (FileStatus, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "":
		return "", false
	case "received":
		return FileReceived, true
	case "old":
		return FileOld, true
	}
	return FilePending, true
}

// NormalizeApprovalStatus title-cases the value and falls back to Pending
// for anything outside the known set. An empty value reports false.
func NormalizeApprovalStatus(raw string) (ApprovalStatus, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", false
	}
	// Casers are stateful; build one per call.
	switch s := ApprovalStatus(cases.Title(language.Und).String(v)); s {
	case StatusPending, StatusSent, StatusApproved, StatusRejected, StatusRedo:
		return s, true
	}
	return StatusPending, true
}
