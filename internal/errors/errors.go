package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeConfiguration  ErrorType = "Configuration"
	ErrorTypeAuthentication ErrorType = "Authentication"
	ErrorTypeRegistry       ErrorType = "Registry"
	ErrorTypeAlreadyExists  ErrorType = "AlreadyExists"
	ErrorTypeLookup         ErrorType = "Lookup"
	ErrorTypeValidation     ErrorType = "Validation"
)

// ErrInvalidConfiguration is matched by every configuration error
var ErrInvalidConfiguration = stderrors.New("invalid configuration")

// CopierError represents an error with a category and optional guidance
type CopierError struct {
	Type      ErrorType
	Message   string
	Cause     string
	Solutions []string
	Err       error
}

// Error implements the error interface
func (e *CopierError) Error() string {
	var sb strings.Builder

	sb.WriteString(e.Message)

	if e.Cause != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Cause)
	}

	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}

	return sb.String()
}

// Unwrap returns the wrapped error
func (e *CopierError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrInvalidConfiguration) match configuration errors
func (e *CopierError) Is(target error) bool {
	return target == ErrInvalidConfiguration && e.Type == ErrorTypeConfiguration
}

// Format implements fmt.Formatter for custom formatting
func (e *CopierError) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v':
		if f.Flag('+') {
			fmt.Fprintf(f, "[%s] %s", e.Type, e.Error())
			return
		}
		fallthrough
	default:
		fmt.Fprint(f, e.Error())
	}
}

// New creates a new CopierError
func New(errType ErrorType, message string) *CopierError {
	return &CopierError{
		Type:    errType,
		Message: message,
	}
}

// Wrap creates a new CopierError around err
func Wrap(errType ErrorType, err error, message string) *CopierError {
	return &CopierError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Configuration creates a configuration error from a format string
func Configuration(format string, args ...interface{}) *CopierError {
	return New(ErrorTypeConfiguration, fmt.Sprintf(format, args...))
}

// WithCause adds cause information
func (e *CopierError) WithCause(cause string) *CopierError {
	e.Cause = cause
	return e
}

// WithSolutions adds solution steps
func (e *CopierError) WithSolutions(solutions ...string) *CopierError {
	e.Solutions = append(e.Solutions, solutions...)
	return e
}

// TypeOf returns the category of err, or "" if err carries none
func TypeOf(err error) ErrorType {
	var copierErr *CopierError
	if stderrors.As(err, &copierErr) {
		return copierErr.Type
	}
	return ""
}

// IsType reports whether err is a CopierError of the given type
func IsType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}

// GetExitCode returns appropriate exit code for error type
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch TypeOf(err) {
	case ErrorTypeConfiguration, ErrorTypeValidation:
		return 78 // EX_CONFIG
	case ErrorTypeAuthentication:
		return 77 // EX_NOPERM
	case ErrorTypeRegistry:
		return 69 // EX_UNAVAILABLE
	default:
		return 1
	}
}

// AWSCredentialsError creates an AWS credentials error with guidance
func AWSCredentialsError(originalErr error) *CopierError {
	err := Wrap(ErrorTypeAuthentication, originalErr, "AWS credentials not usable")

	if originalErr != nil && strings.Contains(originalErr.Error(), "ExpiredToken") {
		err.Message = "AWS credentials expired"
		err.WithSolutions(
			"Refresh your session: aws sso login",
			"Re-export AWS_SESSION_TOKEN",
		)
		return err
	}

	return err.WithSolutions(
		"Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY",
		"Set AWS_PROFILE to a configured profile",
		"Attach an execution role granting rds:DescribeDBClusterSnapshots, rds:CopyDBClusterSnapshot, rds:AddTagsToResource and kms:ListAliases",
	)
}
