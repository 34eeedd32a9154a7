package bot

import "errors"

// Command-level failures. None of these escape HandleMessage; they are
// recorded in the audit log and turned into a reply.
var (
	ErrAuthenticationFailure = errors.New("authentication failure")
	ErrUnknownCommand        = errors.New("unknown command")
	ErrReportGeneration      = errors.New("report generation failed")
	ErrDelivery              = errors.New("delivery failed")
)
