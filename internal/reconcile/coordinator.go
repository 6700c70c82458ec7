package reconcile

import (
	"context"
	"strings"

	"recibo/internal/constants"
	"recibo/internal/event"
	"recibo/internal/ledger"
	"recibo/internal/logger"
	"recibo/internal/oracle"
	"recibo/pkg/logging"
	"recibo/pkg/metrics"
)

// Terminal pipeline outcomes, used as metric labels.
const (
	OutcomeUnknown          = "unknown"
	OutcomeCommandStatus    = "command_status"
	OutcomeCommandReset     = "command_reset"
	OutcomeUnauthorized     = "unauthorized"
	OutcomeUnrecognizedText = "unrecognized_text"
	OutcomeAllSettled       = "all_settled"
	OutcomeMediaUnavailable = "media_unavailable"
	OutcomeOracleError      = "oracle_error"
	OutcomeNotApproved      = "not_approved"
	OutcomeNoSuchPayee      = "no_such_payee"
	OutcomeSettled          = "settled"
	OutcomeAlreadySettled   = "already_settled"
	OutcomePersistenceError = "persistence_error"
)

// Notifier delivers outbound texts. Best-effort: failures are logged by the
// coordinator, never propagated, and never roll back a ledger mutation.
type Notifier interface {
	SendText(ctx context.Context, to, body string) error
}

// MediaResolver acquires the receipt bytes for a media reference.
type MediaResolver interface {
	Resolve(ctx context.Context, ref event.MediaReference) ([]byte, error)
}

// Verifier asks the vision oracle for a verdict on a receipt image.
type Verifier interface {
	Verify(ctx context.Context, image []byte, candidateNames []string) (oracle.Verdict, error)
}

// Ledger is the authoritative payee list. All mutation serialization lives
// behind this interface.
type Ledger interface {
	PendingNames() []string
	Snapshot() []ledger.Payee
	MarkSettled(ctx context.Context, name string) (ledger.SettlementOutcome, error)
	ResetAll(ctx context.Context) error
}

// Coordinator runs one inbound event from normalization to its terminal
// outcome. Every path ends with at most one outbound notification; no error
// escapes to the caller, and the slow network calls (media fetch, oracle)
// happen outside the ledger's critical section.
type Coordinator struct {
	ledger      Ledger
	resolver    MediaResolver
	verifier    Verifier
	notifier    Notifier
	adminNumber string
	logger      logger.Logger
}

func NewCoordinator(l Ledger, resolver MediaResolver, verifier Verifier, notifier Notifier, adminNumber string, log logger.Logger) *Coordinator {
	return &Coordinator{
		ledger:      l,
		resolver:    resolver,
		verifier:    verifier,
		notifier:    notifier,
		adminNumber: adminNumber,
		logger:      log,
	}
}

// Process handles one raw webhook payload to completion and returns the
// terminal outcome label.
func (c *Coordinator) Process(ctx context.Context, raw map[string]interface{}) string {
	ev := event.Normalize(raw)
	metrics.EventsTotal.WithLabelValues(ev.Kind.String()).Inc()

	if ev.SenderID != "" {
		ctx = logging.WithSenderID(ctx, ev.SenderID)
	}

	switch ev.Kind {
	case event.KindText:
		return c.handleText(ctx, ev)
	case event.KindMedia:
		return c.handleMedia(ctx, ev)
	default:
		c.logger.InfowCtx(ctx, "Unrecognized payload shape")
		c.notify(ctx, ev.SenderID, msgHelp)
		return OutcomeUnknown
	}
}

func (c *Coordinator) handleText(ctx context.Context, ev event.CanonicalEvent) string {
	command := strings.ToLower(strings.TrimSpace(ev.Text))

	switch command {
	case constants.CommandStatusList:
		c.notify(ctx, ev.SenderID, statusListMessage(c.ledger.Snapshot()))
		return OutcomeCommandStatus

	case constants.CommandReset:
		if digits(ev.SenderID) != c.adminNumber {
			c.logger.WarnwCtx(ctx, "Reset denied for non-admin sender")
			c.notify(ctx, ev.SenderID, msgResetDenied)
			return OutcomeUnauthorized
		}

		if err := c.ledger.ResetAll(ctx); err != nil {
			c.logger.ErrorwCtx(ctx, "Ledger reset failed", "error", err)
			c.notify(ctx, ev.SenderID, msgResetFailed)
			return OutcomePersistenceError
		}

		c.logger.InfowCtx(ctx, "Ledger reset by admin")
		c.notify(ctx, ev.SenderID, msgResetOK)
		return OutcomeCommandReset

	default:
		c.logger.InfowCtx(ctx, "Unrecognized text", "text", truncate(ev.Text, 200))
		c.notify(ctx, ev.SenderID, msgHelp)
		return OutcomeUnrecognizedText
	}
}

func (c *Coordinator) handleMedia(ctx context.Context, ev event.CanonicalEvent) string {
	// Capture the pending set once, before any network I/O; the verdict is
	// judged against exactly this set even if the ledger moves mid-flight.
	pending := c.ledger.PendingNames()
	if len(pending) == 0 {
		c.notify(ctx, ev.SenderID, msgAllSettled)
		return OutcomeAllSettled
	}

	data, err := c.resolver.Resolve(ctx, *ev.Media)
	if err != nil {
		c.logger.WarnwCtx(ctx, "Media resolution failed", "error", err)
		c.notify(ctx, ev.SenderID, msgMediaFailed)
		return OutcomeMediaUnavailable
	}

	verdict, err := c.verifier.Verify(ctx, data, pending)
	if err != nil {
		c.logger.ErrorwCtx(ctx, "Oracle verification failed", "error", err)
		c.notify(ctx, ev.SenderID, msgOracleFailed)
		return OutcomeOracleError
	}

	if !verdict.Approved || verdict.MatchedName == "" {
		c.logger.InfowCtx(ctx, "Receipt not approved")
		c.notify(ctx, ev.SenderID, msgNotApproved)
		return OutcomeNotApproved
	}

	outcome, err := c.ledger.MarkSettled(ctx, verdict.MatchedName)
	if err != nil {
		c.logger.ErrorwCtx(ctx, "Settlement could not be persisted", "name", verdict.MatchedName, "error", err)
		c.notify(ctx, ev.SenderID, msgSettleFailed)
		return OutcomePersistenceError
	}

	switch outcome {
	case ledger.OutcomeSettled:
		snapshot := c.ledger.Snapshot()
		display := displayName(snapshot, verdict.MatchedName)
		c.logger.InfowCtx(ctx, "Payee settled", "name", display)
		c.notify(ctx, ev.SenderID, settledMessage(display))
		c.notify(ctx, ev.SenderID, updatedListMessage(snapshot))
		return OutcomeSettled

	case ledger.OutcomeAlreadySettled:
		display := displayName(c.ledger.Snapshot(), verdict.MatchedName)
		c.notify(ctx, ev.SenderID, alreadySettledMessage(display))
		return OutcomeAlreadySettled

	default:
		// Flagged for manual review: the oracle matched a name the ledger
		// does not know. We do not fuzzy-match beyond normalized equality.
		c.logger.WarnwCtx(ctx, "Oracle matched a name absent from the ledger", "matched_name", verdict.MatchedName)
		c.notify(ctx, ev.SenderID, nameNotFoundMessage(verdict.MatchedName))
		return OutcomeNoSuchPayee
	}
}

func (c *Coordinator) notify(ctx context.Context, to, body string) {
	if to == "" {
		c.logger.WarnwCtx(ctx, "Dropping notification without recipient")
		metrics.NotificationsTotal.WithLabelValues("skipped").Inc()
		return
	}

	if err := c.notifier.SendText(ctx, to, body); err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		c.logger.ErrorwCtx(ctx, "Notification send failed", "error", err)
		return
	}

	metrics.NotificationsTotal.WithLabelValues("success").Inc()
}

// displayName maps the oracle's transcription back to the name as stored on
// the ledger, so notifications show the canonical spelling.
func displayName(snapshot []ledger.Payee, matched string) string {
	key := ledger.NormalizeName(matched)
	for _, p := range snapshot {
		if ledger.NormalizeName(p.Name) == key {
			return p.Name
		}
	}
	return matched
}

// digits keeps only ASCII digits, so "5513999990000@c.us" compares equal to
// the configured admin number.
func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
