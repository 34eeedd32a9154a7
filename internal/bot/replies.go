package bot

const helpText = `Available commands:
[help] - Show this help message
[username] [password] - Login (e.g., [admin] [admin])
[itemID] - Set target item for operations
[add] - Add 1 to current item count
[subtract] - Subtract 1 from current item count
[count] - Get current count for item
[statistics] - Generate and send Excel report

Note: You must be authenticated to use commands other than [help].`

const (
	replyAuthSuccess     = "Authentication successful"
	replyAuthenticate    = "Please authenticate first. Use [username] followed by [password] or use [help] for instructions."
	replyLoginFirst      = "You must be authenticated to use this command. Please login first."
	replyReportSent      = "Statistics report generated and sent!"
	replyReportError     = "Error generating report: %v"
	replyItemModified    = "Item %s %s successfully. New count: %d"
	replyItemCount       = "Current count for %s: %d"
	replyItemSelected    = "Item '%s' selected. Use [add], [subtract], or [count] to interact with it."
	replyItemUnavailable = "Unable to update item %s right now. Please try again."
	replyUnknown         = "Unknown command. Use [help] to see available commands."
)

// Audit command names.
const (
	commandHelp          = "help"
	commandLogin         = "login"
	commandLoginRequired = "login_required"
	commandStatistics    = "statistics"
	commandAdd           = "add"
	commandSubtract      = "subtract"
	commandCount         = "count"
	commandSetItem       = "set_item"
	commandUnknown       = "unknown"
)
