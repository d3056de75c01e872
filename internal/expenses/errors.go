package expenses

import "errors"

// Errors returned by Service. Handlers map them to HTTP statuses with errors.Is.
var (
	// ErrInvalidDate means a report bound is not a YYYY-MM-DD date.
	ErrInvalidDate = errors.New("invalid date format")
	// ErrNoReceipts means no receipt matched the report filter.
	ErrNoReceipts = errors.New("no receipts found for the selected criteria")
	// ErrNoValidItems means matching receipts exist but none has a priced item.
	ErrNoValidItems = errors.New("no valid items in the selected receipts")
	// ErrInvalidPeriod means the year or month is out of range.
	ErrInvalidPeriod = errors.New("invalid year or month")
	// ErrLimitRequired means a budget write carried no (or a zero) limit.
	ErrLimitRequired = errors.New("limit is required")
	// ErrInvalidLimit means the limit is not a positive amount.
	ErrInvalidLimit = errors.New("invalid limit")
	// ErrQueryRequired means a chat request had no question.
	ErrQueryRequired = errors.New("query is required")
	// ErrInvalidUpload means the uploaded image is missing or empty.
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrExtractionFailed wraps any failure of the receipt scanner.
	ErrExtractionFailed = errors.New("agent failed to process receipt image")
)
