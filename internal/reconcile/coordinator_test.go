package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recibo/internal/event"
	"recibo/internal/ledger"
	"recibo/internal/logger"
	"recibo/internal/oracle"
	pkgerrors "recibo/pkg/errors"
	"recibo/pkg/retry"
)

type sentMessage struct {
	to   string
	body string
}

type fakeNotifier struct {
	sends []sentMessage
	err   error
}

func (f *fakeNotifier) SendText(_ context.Context, to, body string) error {
	f.sends = append(f.sends, sentMessage{to: to, body: body})
	return f.err
}

type fakeResolver struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeResolver) Resolve(_ context.Context, _ event.MediaReference) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

type fakeVerifier struct {
	verdict    oracle.Verdict
	err        error
	calls      int
	candidates []string
}

func (f *fakeVerifier) Verify(_ context.Context, _ []byte, candidateNames []string) (oracle.Verdict, error) {
	f.calls++
	f.candidates = candidateNames
	return f.verdict, f.err
}

type fakeLedger struct {
	pending   []string
	snapshot  []ledger.Payee
	outcome   ledger.SettlementOutcome
	settleErr error
	resetErr  error
	settled   []string
	resets    int
}

func (f *fakeLedger) PendingNames() []string     { return f.pending }
func (f *fakeLedger) Snapshot() []ledger.Payee   { return f.snapshot }
func (f *fakeLedger) ResetAll(_ context.Context) error {
	f.resets++
	return f.resetErr
}

func (f *fakeLedger) MarkSettled(_ context.Context, name string) (ledger.SettlementOutcome, error) {
	f.settled = append(f.settled, name)
	if f.settleErr != nil {
		return ledger.OutcomeNoSuchPayee, f.settleErr
	}
	return f.outcome, nil
}

func newTestCoordinator(l Ledger, r MediaResolver, v Verifier, n Notifier) *Coordinator {
	return NewCoordinator(l, r, v, n, "5511999990000", logger.NopLogger())
}

func mediaPayload(sender string) map[string]interface{} {
	return map[string]interface{}{
		"from":  sender,
		"type":  "image",
		"media": "https://gateway.example/media/abc",
	}
}

func textPayload(sender, body string) map[string]interface{} {
	return map[string]interface{}{"from": sender, "body": body}
}

func TestProcessStatusCommand(t *testing.T) {
	led := &fakeLedger{snapshot: []ledger.Payee{
		{Name: "Ana", Status: ledger.StatusPending},
		{Name: "Bia", Status: ledger.StatusSettled},
	}}
	notifier := &fakeNotifier{}
	coord := newTestCoordinator(led, &fakeResolver{}, &fakeVerifier{}, notifier)

	outcome := coord.Process(context.Background(), textPayload("5511988880000@c.us", "lista"))

	assert.Equal(t, OutcomeCommandStatus, outcome)
	require.Len(t, notifier.sends, 1)
	assert.Equal(t, "5511988880000@c.us", notifier.sends[0].to)
	assert.Contains(t, notifier.sends[0].body, "1. Ana - PENDENTE")
	assert.Contains(t, notifier.sends[0].body, "2. Bia - PAGO")
}

func TestProcessStatusCommandCaseAndWhitespace(t *testing.T) {
	led := &fakeLedger{snapshot: []ledger.Payee{{Name: "Ana", Status: ledger.StatusPending}}}
	notifier := &fakeNotifier{}
	coord := newTestCoordinator(led, &fakeResolver{}, &fakeVerifier{}, notifier)

	outcome := coord.Process(context.Background(), textPayload("x@c.us", "  LISTA  "))

	assert.Equal(t, OutcomeCommandStatus, outcome)
}

func TestProcessResetByAdmin(t *testing.T) {
	led := &fakeLedger{}
	notifier := &fakeNotifier{}
	coord := newTestCoordinator(led, &fakeResolver{}, &fakeVerifier{}, notifier)

	outcome := coord.Process(context.Background(), textPayload("5511999990000@c.us", "!resetar"))

	assert.Equal(t, OutcomeCommandReset, outcome)
	assert.Equal(t, 1, led.resets)
	require.Len(t, notifier.sends, 1)
	assert.Equal(t, msgResetOK, notifier.sends[0].body)
}

func TestProcessResetDeniedForNonAdmin(t *testing.T) {
	led := &fakeLedger{}
	notifier := &fakeNotifier{}
	coord := newTestCoordinator(led, &fakeResolver{}, &fakeVerifier{}, notifier)

	outcome := coord.Process(context.Background(), textPayload("5511000000000@c.us", "!resetar"))

	assert.Equal(t, OutcomeUnauthorized, outcome)
	assert.Zero(t, led.resets)
	require.Len(t, notifier.sends, 1)
	assert.Equal(t, msgResetDenied, notifier.sends[0].body)
}

func TestProcessResetPersistenceFailure(t *testing.T) {
	led := &fakeLedger{resetErr: pkgerrors.ErrPersistence}
	notifier := &fakeNotifier{}
	coord := newTestCoordinator(led, &fakeResolver{}, &fakeVerifier{}, notifier)

	outcome := coord.Process(context.Background(), textPayload("5511999990000@c.us", "!resetar"))

	assert.Equal(t, OutcomePersistenceError, outcome)
	require.Len(t, notifier.sends, 1)
	assert.Equal(t, msgResetFailed, notifier.sends[0].body)
}

func TestProcessUnrecognizedTextGetsHelp(t *testing.T) {
	notifier := &fakeNotifier{}
	coord := newTestCoordinator(&fakeLedger{}, &fakeResolver{}, &fakeVerifier{}, notifier)

	outcome := coord.Process(context.Background(), textPayload("x@c.us", "bom dia"))

	assert.Equal(t, OutcomeUnrecognizedText, outcome)
	require.Len(t, notifier.sends, 1)
	assert.Equal(t, msgHelp, notifier.sends[0].body)
}

func TestProcessUnknownShapeGetsHelp(t *testing.T) {
	notifier := &fakeNotifier{}
	coord := newTestCoordinator(&fakeLedger{}, &fakeResolver{}, &fakeVerifier{}, notifier)

	outcome := coord.Process(context.Background(), map[string]interface{}{
		"from":      "x@c.us",
		"something": float64(42),
	})

	assert.Equal(t, OutcomeUnknown, outcome)
	require.Len(t, notifier.sends, 1)
	assert.Equal(t, msgHelp, notifier.sends[0].body)
}

func TestProcessMediaAllSettledShortCircuits(t *testing.T) {
	led := &fakeLedger{pending: nil}
	resolver := &fakeResolver{}
	verifier := &fakeVerifier{}
	notifier := &fakeNotifier{}
	coord := newTestCoordinator(led, resolver, verifier, notifier)

	outcome := coord.Process(context.Background(), mediaPayload("x@c.us"))

	assert.Equal(t, OutcomeAllSettled, outcome)
	assert.Zero(t, resolver.calls, "media must not be fetched when nothing is pending")
	assert.Zero(t, verifier.calls, "oracle must not be consulted when nothing is pending")
	require.Len(t, notifier.sends, 1)
	assert.Equal(t, msgAllSettled, notifier.sends[0].body)
}

func TestProcessMediaResolutionFailure(t *testing.T) {
	led := &fakeLedger{pending: []string{"Ana"}}
	resolver := &fakeResolver{err: pkgerrors.ErrMediaUnavailable}
	verifier := &fakeVerifier{}
	notifier := &fakeNotifier{}
	coord := newTestCoordinator(led, resolver, verifier, notifier)

	outcome := coord.Process(context.Background(), mediaPayload("x@c.us"))

	assert.Equal(t, OutcomeMediaUnavailable, outcome)
	assert.Zero(t, verifier.calls)
	require.Len(t, notifier.sends, 1)
	assert.Equal(t, msgMediaFailed, notifier.sends[0].body)
}

func TestProcessMediaOracleFailure(t *testing.T) {
	led := &fakeLedger{pending: []string{"Ana"}}
	resolver := &fakeResolver{data: []byte("img")}
	verifier := &fakeVerifier{err: pkgerrors.ErrOracleTransport}
	notifier := &fakeNotifier{}
	coord := newTestCoordinator(led, resolver, verifier, notifier)

	outcome := coord.Process(context.Background(), mediaPayload("x@c.us"))

	assert.Equal(t, OutcomeOracleError, outcome)
	require.Len(t, notifier.sends, 1)
	assert.Equal(t, msgOracleFailed, notifier.sends[0].body)
}

func TestProcessMediaNotApproved(t *testing.T) {
	led := &fakeLedger{pending: []string{"Ana"}}
	resolver := &fakeResolver{data: []byte("img")}
	verifier := &fakeVerifier{verdict: oracle.Verdict{Approved: false}}
	notifier := &fakeNotifier{}
	coord := newTestCoordinator(led, resolver, verifier, notifier)

	outcome := coord.Process(context.Background(), mediaPayload("x@c.us"))

	assert.Equal(t, OutcomeNotApproved, outcome)
	assert.Empty(t, led.settled)
	require.Len(t, notifier.sends, 1)
	assert.Equal(t, msgNotApproved, notifier.sends[0].body)
}

func TestProcessMediaApprovedWithoutNameIsNotApproved(t *testing.T) {
	led := &fakeLedger{pending: []string{"Ana"}}
	resolver := &fakeResolver{data: []byte("img")}
	verifier := &fakeVerifier{verdict: oracle.Verdict{Approved: true, MatchedName: ""}}
	notifier := &fakeNotifier{}
	coord := newTestCoordinator(led, resolver, verifier, notifier)

	outcome := coord.Process(context.Background(), mediaPayload("x@c.us"))

	assert.Equal(t, OutcomeNotApproved, outcome)
	assert.Empty(t, led.settled)
}

func TestProcessMediaSettled(t *testing.T) {
	led := &fakeLedger{
		pending: []string{"Ana", "Bia"},
		snapshot: []ledger.Payee{
			{Name: "Ana", Status: ledger.StatusSettled},
			{Name: "Bia", Status: ledger.StatusPending},
		},
		outcome: ledger.OutcomeSettled,
	}
	resolver := &fakeResolver{data: []byte("img")}
	verifier := &fakeVerifier{verdict: oracle.Verdict{Approved: true, MatchedName: "ana"}}
	notifier := &fakeNotifier{}
	coord := newTestCoordinator(led, resolver, verifier, notifier)

	outcome := coord.Process(context.Background(), mediaPayload("x@c.us"))

	assert.Equal(t, OutcomeSettled, outcome)
	assert.Equal(t, []string{"ana"}, led.settled)
	assert.Equal(t, []string{"Ana", "Bia"}, verifier.candidates)

	require.Len(t, notifier.sends, 2)
	assert.Equal(t, settledMessage("Ana"), notifier.sends[0].body, "notification shows the canonical ledger spelling")
	assert.Contains(t, notifier.sends[1].body, "Lista atualizada")
	assert.Contains(t, notifier.sends[1].body, "1. Ana - PAGO")
	assert.Contains(t, notifier.sends[1].body, "2. Bia - PENDENTE")
}

func TestProcessMediaAlreadySettled(t *testing.T) {
	led := &fakeLedger{
		pending:  []string{"Bia"},
		snapshot: []ledger.Payee{{Name: "Ana", Status: ledger.StatusSettled}},
		outcome:  ledger.OutcomeAlreadySettled,
	}
	resolver := &fakeResolver{data: []byte("img")}
	verifier := &fakeVerifier{verdict: oracle.Verdict{Approved: true, MatchedName: "Ana"}}
	notifier := &fakeNotifier{}
	coord := newTestCoordinator(led, resolver, verifier, notifier)

	outcome := coord.Process(context.Background(), mediaPayload("x@c.us"))

	assert.Equal(t, OutcomeAlreadySettled, outcome)
	require.Len(t, notifier.sends, 1)
	assert.Equal(t, alreadySettledMessage("Ana"), notifier.sends[0].body)
}

func TestProcessMediaNameNotOnLedger(t *testing.T) {
	led := &fakeLedger{
		pending: []string{"Ana"},
		outcome: ledger.OutcomeNoSuchPayee,
	}
	resolver := &fakeResolver{data: []byte("img")}
	verifier := &fakeVerifier{verdict: oracle.Verdict{Approved: true, MatchedName: "Carlos"}}
	notifier := &fakeNotifier{}
	coord := newTestCoordinator(led, resolver, verifier, notifier)

	outcome := coord.Process(context.Background(), mediaPayload("x@c.us"))

	assert.Equal(t, OutcomeNoSuchPayee, outcome)
	require.Len(t, notifier.sends, 1)
	assert.Equal(t, nameNotFoundMessage("Carlos"), notifier.sends[0].body)
}

func TestProcessMediaSettlementPersistenceFailure(t *testing.T) {
	led := &fakeLedger{
		pending:   []string{"Ana"},
		settleErr: pkgerrors.ErrPersistence,
	}
	resolver := &fakeResolver{data: []byte("img")}
	verifier := &fakeVerifier{verdict: oracle.Verdict{Approved: true, MatchedName: "Ana"}}
	notifier := &fakeNotifier{}
	coord := newTestCoordinator(led, resolver, verifier, notifier)

	outcome := coord.Process(context.Background(), mediaPayload("x@c.us"))

	assert.Equal(t, OutcomePersistenceError, outcome)
	require.Len(t, notifier.sends, 1)
	assert.Equal(t, msgSettleFailed, notifier.sends[0].body)
}

func TestProcessNotifierFailureDoesNotChangeOutcome(t *testing.T) {
	led := &fakeLedger{snapshot: []ledger.Payee{{Name: "Ana", Status: ledger.StatusPending}}}
	notifier := &fakeNotifier{err: errors.New("gateway down")}
	coord := newTestCoordinator(led, &fakeResolver{}, &fakeVerifier{}, notifier)

	outcome := coord.Process(context.Background(), textPayload("x@c.us", "lista"))

	assert.Equal(t, OutcomeCommandStatus, outcome)
}

func TestProcessWithoutSenderSkipsNotification(t *testing.T) {
	notifier := &fakeNotifier{}
	coord := newTestCoordinator(&fakeLedger{}, &fakeResolver{}, &fakeVerifier{}, notifier)

	outcome := coord.Process(context.Background(), map[string]interface{}{"body": "oi"})

	assert.Equal(t, OutcomeUnrecognizedText, outcome)
	assert.Empty(t, notifier.sends)
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "5511999990000", digits("5511999990000@c.us"))
	assert.Equal(t, "5511999990000", digits("+55 (11) 99999-0000"))
	assert.Equal(t, "", digits("no-digits"))
}

// memStore backs the end-to-end test with a real ledger instead of a fake.
type memStore struct {
	entries []ledger.Payee
}

func (m *memStore) Load(_ context.Context) ([]ledger.Payee, error) {
	return append([]ledger.Payee(nil), m.entries...), nil
}

func (m *memStore) Save(_ context.Context, entries []ledger.Payee) error {
	m.entries = append([]ledger.Payee(nil), entries...)
	return nil
}

func TestProcessEndToEndWithRealLedger(t *testing.T) {
	store := &memStore{entries: []ledger.Payee{
		{Name: "José da Silva", Status: ledger.StatusPending},
		{Name: "Bia", Status: ledger.StatusPending},
	}}
	led, err := ledger.Open(context.Background(), store, retry.DefaultPolicy(), logger.NopLogger())
	require.NoError(t, err)

	resolver := &fakeResolver{data: []byte("img")}
	verifier := &fakeVerifier{verdict: oracle.Verdict{Approved: true, MatchedName: "jose da silva"}}
	notifier := &fakeNotifier{}
	coord := newTestCoordinator(led, resolver, verifier, notifier)

	outcome := coord.Process(context.Background(), mediaPayload("x@c.us"))
	assert.Equal(t, OutcomeSettled, outcome)
	assert.Equal(t, []ledger.Payee{
		{Name: "José da Silva", Status: ledger.StatusSettled},
		{Name: "Bia", Status: ledger.StatusPending},
	}, store.entries)

	// Same receipt again is acknowledged without another mutation.
	outcome = coord.Process(context.Background(), mediaPayload("x@c.us"))
	assert.Equal(t, OutcomeAlreadySettled, outcome)
}
