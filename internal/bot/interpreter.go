// Package bot interprets bracketed chat commands. It gates every command
// except help and login behind a session, dispatches to the counter and
// report services, and writes exactly one audit record per message.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/kitakits/internal/audit"
	"github.com/wolfeidau/kitakits/internal/models"
	"github.com/wolfeidau/kitakits/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CredentialValidator checks login attempts.
type CredentialValidator interface {
	Validate(ctx context.Context, username, password string) bool
	RebindIdentity(ctx context.Context, username, externalID string) error
}

// SessionLedger issues and checks sessions.
type SessionLedger interface {
	Issue(ctx context.Context, externalID string) (string, error)
	IsAuthenticated(ctx context.Context, externalID string) bool
}

// Counter reads and mutates item counts.
type Counter interface {
	Get(ctx context.Context, itemID string) (int64, bool, error)
	Increment(ctx context.Context, itemID string) (int64, error)
	Decrement(ctx context.Context, itemID string) (int64, error)
}

// AuditRecorder appends audit entries without failing the caller.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Reporter builds a statistics report and returns its file path.
type Reporter interface {
	Generate(ctx context.Context) (string, error)
}

// FileDeliverer sends a file to a recipient on the messaging platform.
type FileDeliverer interface {
	SendFile(ctx context.Context, recipientID, path string) error
}

// Config wires an Interpreter to its collaborators.
type Config struct {
	Credentials CredentialValidator
	Sessions    SessionLedger
	Counter     Counter
	Audit       AuditRecorder
	Reporter    Reporter
	Deliverer   FileDeliverer

	// SingleTokenLogin accepts "[name]" as a login with name as both
	// username and password.
	SingleTokenLogin bool
}

// Interpreter turns inbound message text into a reply.
type Interpreter struct {
	cfg     Config
	locks   *keyedMutex
	metrics *telemetry.Metrics
}

// NewInterpreter creates an interpreter.
func NewInterpreter(cfg Config) *Interpreter {
	return &Interpreter{
		cfg:     cfg,
		locks:   newKeyedMutex(),
		metrics: telemetry.GetMetrics(),
	}
}

// HandleMessage processes one inbound message from externalID and returns
// the reply text. Messages from the same identity are handled in arrival
// order.
func (i *Interpreter) HandleMessage(ctx context.Context, externalID, text string) string {
	unlock := i.locks.Lock(externalID)
	defer unlock()

	text = strings.TrimSpace(text)

	reply, entry := i.dispatch(ctx, externalID, text)
	entry.ExternalID = externalID

	i.cfg.Audit.Record(ctx, entry)

	i.metrics.CommandsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", entry.Command),
		attribute.Bool("success", entry.Success),
	))

	zerolog.Ctx(ctx).Debug().
		Str("external_id", externalID).
		Str("command", entry.Command).
		Bool("success", entry.Success).
		Msg("handled message")

	return reply
}

func (i *Interpreter) dispatch(ctx context.Context, externalID, text string) (string, audit.Entry) {
	if isHelp(text) {
		return helpText, audit.Entry{Command: commandHelp, Success: true}
	}

	tokens, bracketed := parseTokens(text)

	if !i.cfg.Sessions.IsAuthenticated(ctx, externalID) {
		if !bracketed {
			return replyLoginFirst, audit.Entry{
				Command:      commandLoginRequired,
				ErrorMessage: ErrAuthenticationFailure.Error(),
			}
		}
		return i.login(ctx, externalID, tokens)
	}

	if !bracketed {
		return unknown(text)
	}
	if len(tokens) != 1 {
		// may carry a password; keep it out of the audit log
		return unknown("")
	}

	keyword := strings.ToLower(tokens[0])

	switch keyword {
	case commandStatistics:
		return i.statistics(ctx, externalID)
	case commandAdd:
		return i.modify(ctx, models.OperationIncrement)
	case commandSubtract:
		return i.modify(ctx, models.OperationDecrement)
	case commandCount:
		return i.count(ctx)
	default:
		// selection is acknowledged but every counter command still
		// targets the default item
		return fmt.Sprintf(replyItemSelected, keyword), audit.Entry{
			Command:    commandSetItem,
			Parameters: keyword,
			Success:    true,
		}
	}
}

func (i *Interpreter) login(ctx context.Context, externalID string, tokens []string) (string, audit.Entry) {
	// params is what the audit log may see. A single token doubles as the
	// password so it is never recorded.
	var username, password, params string
	switch {
	case len(tokens) == 2:
		username, password = tokens[0], tokens[1]
		params = username
	case len(tokens) == 1 && i.cfg.SingleTokenLogin:
		username, password = tokens[0], tokens[0]
	default:
		return replyAuthenticate, audit.Entry{
			Command:      commandLogin,
			ErrorMessage: fmt.Errorf("%w: unsupported login form", ErrAuthenticationFailure).Error(),
		}
	}

	failed := audit.Entry{
		Command:      commandLogin,
		Parameters:   params,
		ErrorMessage: fmt.Errorf("%w: invalid credentials", ErrAuthenticationFailure).Error(),
	}

	if !i.cfg.Credentials.Validate(ctx, username, password) {
		return replyAuthenticate, failed
	}

	if err := i.cfg.Credentials.RebindIdentity(ctx, username, externalID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("username", username).Msg("failed to bind identity")
		failed.ErrorMessage = fmt.Errorf("%w: %w", ErrAuthenticationFailure, err).Error()
		return replyAuthenticate, failed
	}

	if _, err := i.cfg.Sessions.Issue(ctx, externalID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("username", username).Msg("failed to issue session")
		failed.ErrorMessage = fmt.Errorf("%w: %w", ErrAuthenticationFailure, err).Error()
		return replyAuthenticate, failed
	}

	zerolog.Ctx(ctx).Info().Str("username", username).Str("external_id", externalID).Msg("user authenticated")

	return replyAuthSuccess, audit.Entry{
		Command:    commandLogin,
		Parameters: params,
		Success:    true,
	}
}

// statistics generates and delivers a report. A delivery failure is logged
// and counted but does not fail the command.
func (i *Interpreter) statistics(ctx context.Context, externalID string) (string, audit.Entry) {
	started := time.Now()
	path, err := i.cfg.Reporter.Generate(ctx)
	i.metrics.ReportDuration.Record(ctx, float64(time.Since(started).Milliseconds()))

	if err != nil {
		err = fmt.Errorf("%w: %w", ErrReportGeneration, err)
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to generate report")
		return fmt.Sprintf(replyReportError, err), audit.Entry{
			Command:      commandStatistics,
			ErrorMessage: err.Error(),
		}
	}

	if err := i.cfg.Deliverer.SendFile(ctx, externalID, path); err != nil {
		zerolog.Ctx(ctx).Error().
			Err(fmt.Errorf("%w: %w", ErrDelivery, err)).
			Str("path", path).
			Msg("failed to deliver report")
	}

	return replyReportSent, audit.Entry{Command: commandStatistics, Success: true}
}

func (i *Interpreter) modify(ctx context.Context, op models.Operation) (string, audit.Entry) {
	command := commandAdd
	modify := i.cfg.Counter.Increment
	if op == models.OperationDecrement {
		command = commandSubtract
		modify = i.cfg.Counter.Decrement
	}

	count, err := modify(ctx, models.DefaultItemID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("operation", string(op)).Msg("failed to modify item")
		return fmt.Sprintf(replyItemUnavailable, models.DefaultItemID), audit.Entry{
			Command:      command,
			Parameters:   models.DefaultItemID,
			ErrorMessage: err.Error(),
		}
	}

	return fmt.Sprintf(replyItemModified, models.DefaultItemID, op.PastTense(), count), audit.Entry{
		Command:    command,
		Parameters: models.DefaultItemID,
		Success:    true,
	}
}

func (i *Interpreter) count(ctx context.Context) (string, audit.Entry) {
	count, _, err := i.cfg.Counter.Get(ctx, models.DefaultItemID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to read item")
		return fmt.Sprintf(replyItemUnavailable, models.DefaultItemID), audit.Entry{
			Command:      commandCount,
			Parameters:   models.DefaultItemID,
			ErrorMessage: err.Error(),
		}
	}

	return fmt.Sprintf(replyItemCount, models.DefaultItemID, count), audit.Entry{
		Command:    commandCount,
		Parameters: models.DefaultItemID,
		Success:    true,
	}
}

func unknown(text string) (string, audit.Entry) {
	return replyUnknown, audit.Entry{
		Command:      commandUnknown,
		Parameters:   text,
		ErrorMessage: ErrUnknownCommand.Error(),
	}
}
