package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mochifi/internal/platform/metrics"
)

// DefaultWalletCodeID is the stored wallet contract code on the target chain.
const DefaultWalletCodeID = 139

// Orchestrator builds, fees, and submits contract operations and classifies
// the outcome. It never retries: resubmitting a state-changing operation may
// double-apply it, so retries are an explicit caller decision.
type Orchestrator struct {
	ledger  Ledger
	codeID  uint64
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics.Metrics
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithWalletCodeID(codeID uint64) Option {
	return func(o *Orchestrator) {
		o.codeID = codeID
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func New(l Ledger, opts ...Option) (*Orchestrator, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	o := &Orchestrator{
		ledger: l,
		codeID: DefaultWalletCodeID,
		logger: slog.Default(),
		tracer: otel.Tracer("mochifi/ledger"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Execute submits one contract operation from sender against contract. The
// returned error is ErrNetwork-wrapped for transport failures and a
// *RejectedError for contract rejections, with the raw log preserved.
func (o *Orchestrator) Execute(ctx context.Context, sender, contract string, kind OpKind, msg any) (TxResult, error) {
	ctx, span := o.tracer.Start(ctx, "ledger.execute",
		trace.WithAttributes(attribute.String("op", string(kind))))
	defer span.End()

	fee, err := FeeFor(kind)
	if err != nil {
		return TxResult{}, err
	}
	o.metrics.TxSubmitted(string(kind))
	res, err := o.ledger.Broadcast(ctx, Tx{
		Sender:   sender,
		Contract: contract,
		Kind:     kind,
		Msg:      msg,
		Fee:      fee,
	})
	if err != nil {
		o.logger.Warn("broadcast failed", "op", kind, "contract", contract, "error", err)
		return TxResult{}, fmt.Errorf("broadcast %s: %w", kind, errors.Join(ErrNetwork, err))
	}
	if res.Code != 0 {
		o.logger.Info("operation rejected", "op", kind, "contract", contract, "raw_log", res.RawLog)
		o.metrics.TxRejected(string(kind))
		return res, &RejectedError{Op: kind, Reason: res.RawLog}
	}
	o.logger.Debug("operation applied", "op", kind, "contract", contract)
	return res, nil
}

// Instantiate creates a fresh wallet contract owned by sender and returns
// the new contract address.
func (o *Orchestrator) Instantiate(ctx context.Context, sender string) (string, error) {
	ctx, span := o.tracer.Start(ctx, "ledger.instantiate")
	defer span.End()

	fee, err := FeeFor(OpInstantiate)
	if err != nil {
		return "", err
	}
	res, err := o.ledger.Instantiate(ctx, sender, o.codeID, fee)
	if err != nil {
		return "", fmt.Errorf("instantiate wallet: %w", errors.Join(ErrNetwork, err))
	}
	if res.Code != 0 {
		return "", &RejectedError{Op: OpInstantiate, Reason: res.RawLog}
	}
	return res.ContractAddress, nil
}
