package errors

import (
	"strings"
	"unicode"
)

const maxDocumentNameLength = 256

// ValidateDocumentName validates the name of an in-memory requirements
// document submitted to the check service. Names are used to resolve -r and
// -c includes, so they must look like relative file paths.
//
// Validation rules:
//   - Name cannot be empty
//   - Maximum length of 256 characters
//   - No null bytes or control characters
//   - No absolute paths
//   - No path traversal sequences (..)
//   - No backslashes
func ValidateDocumentName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPath, "document name cannot be empty")
	}

	if len(name) > maxDocumentNameLength {
		return New(ErrCodeInvalidPath, "document name too long (max %d characters)", maxDocumentNameLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "document name contains invalid control characters")
		}
	}

	if strings.HasPrefix(name, "/") {
		return New(ErrCodeInvalidPath, "document name must be relative (cannot start with /)")
	}

	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return New(ErrCodeInvalidPath, "document name cannot contain path traversal sequences (..)")
		}
	}

	if strings.Contains(name, "\\") {
		return New(ErrCodeInvalidPath, "document name cannot contain backslashes")
	}

	return nil
}

// ValidateTargetFilename rejects requirement files that are almost certainly
// source files passed by mistake (the *.in inputs of a compile step).
func ValidateTargetFilename(name string) error {
	if strings.HasSuffix(name, ".in") {
		return New(ErrCodeUsage,
			"req_file has the .in extension, which is most likely an error "+
				"and will most likely fail the checks. You probably meant to use "+
				"the corresponding *.txt file?")
	}
	return nil
}
