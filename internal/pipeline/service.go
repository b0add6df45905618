// Package pipeline orchestrates one telemetry sample end to end: normalize,
// consistency-check, geofence, derive milestones, mint tokens, persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chainsense/internal/audit"
	"chainsense/internal/consistency"
	"chainsense/internal/geofence"
	"chainsense/internal/milestone"
	"chainsense/internal/telemetry"
	"chainsense/internal/token"
	tokenstore "chainsense/internal/token/store"
	"chainsense/pkg/domain"
)

// Result is the per-sample outcome. Flags are advisory and never imply
// rejection; Err is set only when the sample itself could not be processed.
type Result struct {
	Record     *telemetry.NormalizedRecord
	Flags      []consistency.Flag
	Events     []geofence.Event
	Milestones []milestone.Draft
	Tokens     []*token.Token
	Err        error
}

// ShipmentRegistration declares a shipment before its telemetry arrives: the
// ST-01 root metadata plus the geofence catalogue for the lane.
type ShipmentRegistration struct {
	ShipmentID  domain.ShipmentID
	Origin      string
	Destination string
	CarrierID   string
	Geofences   []geofence.Definition
}

// Service wires the pipeline stages together. Stages run synchronously per
// sample; batch ingestion fans out per sample and never fails the batch.
type Service struct {
	consistency *consistency.Engine
	geofences   *geofence.Engine
	milestones  *milestone.Builder
	factory     *token.Factory
	registry    tokenstore.Store
	signer      *token.Signer
	publisher   *audit.Publisher
	metrics     *Metrics
	logger      *slog.Logger
	tracer      trace.Tracer

	mu           sync.Mutex
	deviceStates map[domain.DeviceID]telemetry.DeviceState
	catalogues   map[domain.ShipmentID][]geofence.Definition
	roots        map[domain.ShipmentID]domain.TokenID
	contexts     map[domain.ShipmentID]*milestone.Context
	// pending holds drafts whose mint failed for a retryable reason. The
	// geofence edge that derived a draft is consumed by the membership swap,
	// so a lost draft cannot be re-derived; it is retried on the shipment's
	// next sample instead.
	pending map[domain.ShipmentID][]milestone.Draft
}

// Option configures a Service.
type Option func(*Service)

// WithAuditPublisher attaches the audit publisher.
func WithAuditPublisher(p *audit.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics attaches the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs the pipeline service.
func New(
	consistencyEngine *consistency.Engine,
	geofenceEngine *geofence.Engine,
	milestoneBuilder *milestone.Builder,
	registry tokenstore.Store,
	signer *token.Signer,
	opts ...Option,
) *Service {
	s := &Service{
		consistency:  consistencyEngine,
		geofences:    geofenceEngine,
		milestones:   milestoneBuilder,
		factory:      token.NewFactory(registry),
		registry:     registry,
		signer:       signer,
		logger:       slog.Default(),
		tracer:       otel.Tracer("chainsense/pipeline"),
		deviceStates: make(map[domain.DeviceID]telemetry.DeviceState),
		catalogues:   make(map[domain.ShipmentID][]geofence.Definition),
		roots:        make(map[domain.ShipmentID]domain.TokenID),
		contexts:     make(map[domain.ShipmentID]*milestone.Context),
		pending:      make(map[domain.ShipmentID][]milestone.Draft),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// RegisterShipment mints the ST-01 root token and installs the geofence
// catalogue. Telemetry for an unregistered shipment still flows through
// normalization and consistency checks, but cannot derive milestone tokens
// until the root exists.
func (s *Service) RegisterShipment(ctx context.Context, reg ShipmentRegistration) (*token.Token, error) {
	root, err := s.factory.Create(ctx, domain.TokenTypeShipment, reg.ShipmentID, map[string]any{
		"origin":      reg.Origin,
		"destination": reg.Destination,
		"carrier_id":  reg.CarrierID,
	}, nil)
	if err != nil {
		return nil, err
	}
	s.signer.Sign(root)
	if _, err := s.registry.Persist(ctx, root); err != nil {
		return nil, fmt.Errorf("persist shipment root: %w", err)
	}

	s.mu.Lock()
	s.catalogues[reg.ShipmentID] = reg.Geofences
	s.roots[reg.ShipmentID] = root.ID
	// Telemetry may have arrived before registration; keep that history so
	// already-derived milestones do not fire twice.
	if _, ok := s.contexts[reg.ShipmentID]; !ok {
		s.contexts[reg.ShipmentID] = milestone.NewContext(reg.ShipmentID)
	}
	s.mu.Unlock()

	s.emit(audit.Event{
		Action:     audit.ActionTokenCreated,
		ShipmentID: reg.ShipmentID,
		TokenID:    root.ID,
		TokenType:  root.Type,
	})
	s.metrics.IncTokenCreated(string(root.Type))
	return root, nil
}

// Process runs one sample through every stage. A malformed sample is dropped
// with Err set; downstream stage failures surface in Err but never undo the
// stages that already ran.
func (s *Service) Process(ctx context.Context, raw telemetry.RawTelemetry) Result {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "pipeline.Process")
	defer span.End()

	rec, err := telemetry.Normalize(raw, s.deviceState(domain.DeviceID(raw.DeviceID)))
	if err != nil {
		s.metrics.IncRejected()
		s.logger.WarnContext(ctx, "dropping malformed sample",
			"device_id", raw.DeviceID, "shipment_id", raw.ShipmentID, "error", err)
		s.emit(audit.Event{
			Action:     audit.ActionSampleRejected,
			DeviceID:   domain.DeviceID(raw.DeviceID),
			ShipmentID: domain.ShipmentID(raw.ShipmentID),
			Detail:     err.Error(),
		})
		return Result{Err: err}
	}
	s.rememberDeviceState(rec)
	span.SetAttributes(
		attribute.String("device_id", rec.DeviceID.String()),
		attribute.String("shipment_id", rec.ShipmentID.String()),
	)

	result := Result{Record: &rec}

	flags, err := s.checkConsistency(ctx, rec)
	if err != nil {
		result.Err = err
		return result
	}
	result.Flags = flags

	events, err := s.evaluateGeofences(ctx, rec)
	if err != nil {
		result.Err = err
		return result
	}
	result.Events = events

	drafts := s.deriveMilestones(ctx, rec, events)
	result.Milestones = drafts

	tokens, err := s.mintTokens(ctx, rec, events, drafts)
	result.Tokens = tokens
	result.Err = err

	s.metrics.IncProcessed()
	s.metrics.ObserveProcessDuration(time.Since(start).Seconds())
	s.emit(audit.Event{
		Action:     audit.ActionSampleIngested,
		DeviceID:   rec.DeviceID,
		ShipmentID: rec.ShipmentID,
	})
	return result
}

// ProcessBatch handles each sample independently: one bad sample gets its
// own Result.Err, the rest of the batch is unaffected. Results line up with
// inputs by index.
func (s *Service) ProcessBatch(ctx context.Context, raws []telemetry.RawTelemetry) []Result {
	results := make([]Result, len(raws))
	for i, raw := range raws {
		results[i] = s.Process(ctx, raw)
	}
	return results
}

// Token loads one token by id.
func (s *Service) Token(ctx context.Context, id domain.TokenID) (*token.Token, error) {
	return s.registry.Load(ctx, id)
}

// TokensByShipment lists a shipment's lineage, oldest first.
func (s *Service) TokensByShipment(ctx context.Context, shipmentID domain.ShipmentID) ([]*token.Token, error) {
	return s.registry.ListByShipment(ctx, shipmentID)
}

func (s *Service) checkConsistency(ctx context.Context, rec telemetry.NormalizedRecord) ([]consistency.Flag, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.consistency")
	defer span.End()

	flags, err := s.consistency.Evaluate(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("consistency check: %w", err)
	}
	for _, f := range flags {
		s.metrics.IncFlag(string(f.Code))
		s.logger.InfoContext(ctx, "consistency flag",
			"code", f.Code, "severity", f.Severity,
			"device_id", rec.DeviceID, "shipment_id", rec.ShipmentID,
			"detail", f.Detail)
		s.emit(audit.Event{
			Action:     audit.ActionFlagRaised,
			DeviceID:   rec.DeviceID,
			ShipmentID: rec.ShipmentID,
			Detail:     string(f.Code),
		})
	}
	return flags, nil
}

func (s *Service) evaluateGeofences(ctx context.Context, rec telemetry.NormalizedRecord) ([]geofence.Event, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.geofence")
	defer span.End()

	s.mu.Lock()
	defs := s.catalogues[rec.ShipmentID]
	s.mu.Unlock()
	if len(defs) == 0 {
		return nil, nil
	}

	events, err := s.geofences.Evaluate(ctx, rec, defs)
	if err != nil {
		return nil, fmt.Errorf("geofence evaluation: %w", err)
	}
	for _, ev := range events {
		s.metrics.IncGeofenceEvent(string(ev.Transition))
		s.emit(audit.Event{
			Action:     audit.ActionGeofenceCrossed,
			DeviceID:   rec.DeviceID,
			ShipmentID: rec.ShipmentID,
			Detail:     fmt.Sprintf("%s %s %s", ev.GeofenceID, ev.Kind, ev.Transition),
		})
	}
	return events, nil
}

func (s *Service) deriveMilestones(ctx context.Context, rec telemetry.NormalizedRecord, events []geofence.Event) []milestone.Draft {
	_, span := s.tracer.Start(ctx, "pipeline.milestone")
	defer span.End()

	s.mu.Lock()
	mctx, ok := s.contexts[rec.ShipmentID]
	if !ok {
		mctx = milestone.NewContext(rec.ShipmentID)
		s.contexts[rec.ShipmentID] = mctx
	}
	s.mu.Unlock()

	drafts := s.milestones.Build(mctx, rec, events)
	for _, d := range drafts {
		s.metrics.IncMilestone(string(d.Type))
		s.emit(audit.Event{
			Action:     audit.ActionMilestoneDerived,
			DeviceID:   rec.DeviceID,
			ShipmentID: rec.ShipmentID,
			Detail:     string(d.Type),
		})
	}
	return drafts
}

// mintTokens turns milestone drafts into persisted MT-01 tokens and advances
// the ST-01 root along its lifecycle. Token errors are typed and surfaced;
// the first failure stops minting for the sample but the sample itself
// stands. Drafts that failed for a retryable reason (no root yet, registry
// outage) are held and retried before the shipment's next drafts, so a
// transient failure never loses a milestone. The upsert keyed on token id
// makes the occasional double persist harmless.
func (s *Service) mintTokens(ctx context.Context, rec telemetry.NormalizedRecord, events []geofence.Event, drafts []milestone.Draft) ([]*token.Token, error) {
	drafts = s.claimPending(rec.ShipmentID, drafts)
	if len(drafts) == 0 && len(events) == 0 {
		return nil, nil
	}
	ctx, span := s.tracer.Start(ctx, "pipeline.tokens")
	defer span.End()

	root, err := s.loadRoot(ctx, rec.ShipmentID)
	if err != nil {
		s.stashPending(rec.ShipmentID, drafts)
		return nil, err
	}

	// A device reporting means the carrier has the load.
	if root.State == token.StateCreated {
		s.advanceRoot(ctx, root, token.StateDispatched)
	}

	var minted []*token.Token
	for i, d := range drafts {
		mt, err := s.factory.Create(ctx, domain.TokenTypeMilestone, rec.ShipmentID, map[string]any{
			"milestone_type": string(d.Type),
			"timestamp":      d.At.Format(time.RFC3339Nano),
			"location":       []float64{d.Latitude, d.Longitude},
		}, map[string]domain.TokenID{token.RoleShipment: root.ID})
		if err != nil {
			kind := failureKind(err)
			s.metrics.IncTokenFailure(kind)
			// Validation failures are deterministic; retrying the same
			// draft would fail the same way forever.
			if kind != "validation" {
				s.stashPending(rec.ShipmentID, drafts[i:])
			}
			return minted, err
		}
		s.signer.Sign(mt)
		if _, err := s.registry.Persist(ctx, mt); err != nil {
			s.metrics.IncTokenFailure(failureKind(err))
			s.stashPending(rec.ShipmentID, drafts[i:])
			return minted, fmt.Errorf("persist milestone token: %w", err)
		}
		minted = append(minted, mt)
		s.metrics.IncTokenCreated(string(mt.Type))
		s.emit(audit.Event{
			Action:     audit.ActionTokenCreated,
			DeviceID:   rec.DeviceID,
			ShipmentID: rec.ShipmentID,
			TokenID:    mt.ID,
			TokenType:  mt.Type,
			Detail:     string(d.Type),
		})

		switch d.Type {
		case domain.MilestoneInTransit:
			s.advanceRoot(ctx, root, token.StateInTransit)
		case domain.MilestoneDelivered:
			s.advanceRoot(ctx, root, token.StateArrived)
			s.advanceRoot(ctx, root, token.StateDelivered)
		}
	}
	return minted, nil
}

// claimPending prepends drafts held from earlier failed mints. Claimed drafts
// are removed; a mint failure stashes whatever is still unminted.
func (s *Service) claimPending(shipmentID domain.ShipmentID, drafts []milestone.Draft) []milestone.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	held := s.pending[shipmentID]
	if len(held) == 0 {
		return drafts
	}
	delete(s.pending, shipmentID)
	return append(held, drafts...)
}

func (s *Service) stashPending(shipmentID domain.ShipmentID, drafts []milestone.Draft) {
	if len(drafts) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[shipmentID] = append(s.pending[shipmentID], drafts...)
}

// loadRoot finds the shipment's ST-01, via the registration cache when warm.
func (s *Service) loadRoot(ctx context.Context, shipmentID domain.ShipmentID) (*token.Token, error) {
	s.mu.Lock()
	rootID, cached := s.roots[shipmentID]
	s.mu.Unlock()

	if cached {
		return s.registry.Load(ctx, rootID)
	}

	tokens, err := s.registry.ListByShipment(ctx, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("find shipment root: %w", err)
	}
	for _, t := range tokens {
		if t.Type == domain.TokenTypeShipment {
			s.mu.Lock()
			s.roots[shipmentID] = t.ID
			s.mu.Unlock()
			return t, nil
		}
	}
	return nil, &token.RelationValidationError{
		TokenType: domain.TokenTypeMilestone,
		Role:      token.RoleShipment,
		Reason:    fmt.Sprintf("shipment %s has no registered root token", shipmentID),
	}
}

// advanceRoot attempts one lifecycle step on the ST-01. A transition the
// graph does not allow from the current state is skipped: the root may have
// advanced already, or the prerequisite has not happened yet.
func (s *Service) advanceRoot(ctx context.Context, root *token.Token, to token.State) {
	if err := root.Transition(to, time.Now()); err != nil {
		var terr *token.InvalidStateTransitionError
		if errors.As(err, &terr) {
			return
		}
		s.logger.WarnContext(ctx, "root transition failed", "shipment_id", root.ParentShipmentID, "to", to, "error", err)
		return
	}
	s.signer.Sign(root)
	if _, err := s.registry.Persist(ctx, root); err != nil {
		s.logger.ErrorContext(ctx, "persist root transition", "shipment_id", root.ParentShipmentID, "to", to, "error", err)
		return
	}
	s.emit(audit.Event{
		Action:     audit.ActionTokenTransitioned,
		ShipmentID: root.ParentShipmentID,
		TokenID:    root.ID,
		TokenType:  root.Type,
		Detail:     string(to),
	})
}

func (s *Service) deviceState(id domain.DeviceID) telemetry.DeviceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceStates[id]
}

func (s *Service) rememberDeviceState(rec telemetry.NormalizedRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceStates[rec.DeviceID] = telemetry.DeviceState{
		LastBatteryVoltage: rec.BatteryVoltage,
		BatteryKnown:       rec.BatteryKnown,
		LastEngineState:    rec.EngineState,
	}
}

func (s *Service) emit(event audit.Event) {
	if s.publisher != nil {
		s.publisher.Emit(event)
	}
}

// failureKind labels token errors for metrics.
func failureKind(err error) string {
	var (
		verr *token.TokenValidationError
		rerr *token.RelationValidationError
		serr *token.InvalidStateTransitionError
	)
	switch {
	case errors.As(err, &verr):
		return "validation"
	case errors.As(err, &rerr):
		return "relation"
	case errors.As(err, &serr):
		return "transition"
	default:
		return "persistence"
	}
}
