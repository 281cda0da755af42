package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidSymbol        ErrorCode = 102
	ErrCodeInvalidDateRange     ErrorCode = 103
	ErrCodeInvalidInterval      ErrorCode = 104
	ErrCodeUnsupportedLookback  ErrorCode = 105
	ErrCodeMissingParameter     ErrorCode = 106

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound ErrorCode = 200
	ErrCodeQueryFailed  ErrorCode = 201

	// Fetch errors (300-399)
	ErrCodeFetchFailed         ErrorCode = 300
	ErrCodeSymbolNotFound      ErrorCode = 301
	ErrCodeResponseParseFailed ErrorCode = 302
	ErrCodeInvalidProvider     ErrorCode = 303

	// Storage errors (400-499)
	ErrCodeStorageWriteFailed  ErrorCode = 400
	ErrCodeStorageExportFailed ErrorCode = 401
	ErrCodeStorageDeleteFailed ErrorCode = 402
)
