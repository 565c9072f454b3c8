package siteconnect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/wcpos/siteconnect/pkg/models"
)

// ProfileStore is the persistence collaborator. FindByIdentifier returns
// (nil, nil) when no profile has the identifier.
type ProfileStore interface {
	FindByIdentifier(ctx context.Context, id string) (*models.ConnectionProfile, error)
	Insert(ctx context.Context, profile *models.ConnectionProfile) (*models.ConnectionProfile, error)
	Update(ctx context.Context, existing, partial *models.ConnectionProfile) (*models.ConnectionProfile, error)
}

// IndexLocator finds a site's REST index URL.
type IndexLocator interface {
	Locate(ctx context.Context, origin string) (string, error)
}

// SurfaceValidator fetches and validates a REST index.
type SurfaceValidator interface {
	Validate(ctx context.Context, indexURL string) (*Discovery, error)
}

// TransportProber decides the bearer credential transport.
type TransportProber interface {
	Probe(ctx context.Context, posAPIURL, token string) (*AuthCapability, error)
}

// Compile-time checks
var (
	_ IndexLocator     = (*Locator)(nil)
	_ SurfaceValidator = (*Validator)(nil)
	_ TransportProber  = (*Prober)(nil)
)

// OrchestratorConfig holds configuration for the Orchestrator. Stages left
// nil are built from HTTPClient with default settings.
type OrchestratorConfig struct {
	Store ProfileStore

	HTTPClient HTTPDoer
	Locator    IndexLocator
	Validator  SurfaceValidator
	Prober     TransportProber

	Messages Messages
	Logger   hclog.Logger

	// Token is a real credential to probe with. Empty means a synthetic
	// token is minted per connection.
	Token string

	// OnTransition, when set, receives a snapshot after every state change.
	// It is called synchronously and must not call back into the
	// orchestrator.
	OnTransition func(State)

	// Now is the clock used for LastConnectedAt. Default: time.Now
	Now func() time.Time
}

// Orchestrator sequences normalize → locate → validate → probe → save and
// tracks progress for presentation.
//
// Every run holds a generation number. Reset and a newer Connect bump the
// generation and cancel the running context, and a run whose generation is
// stale never touches the visible state again.
type Orchestrator struct {
	store     ProfileStore
	locator   IndexLocator
	validator SurfaceValidator
	prober    TransportProber
	messages  Messages
	logger    hclog.Logger
	token     string
	notify    func(State)
	now       func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("profile store is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Messages == nil {
		cfg.Messages = DefaultMessages()
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.Locator == nil {
		cfg.Locator = NewLocator(LocatorConfig{
			HTTPClient: cfg.HTTPClient,
			Messages:   cfg.Messages,
			Logger:     cfg.Logger,
		})
	}
	if cfg.Validator == nil {
		v, err := NewValidator(ValidatorConfig{
			HTTPClient: cfg.HTTPClient,
			Messages:   cfg.Messages,
			Logger:     cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		cfg.Validator = v
	}
	if cfg.Prober == nil {
		cfg.Prober = NewProber(ProberConfig{
			HTTPClient: cfg.HTTPClient,
			Messages:   cfg.Messages,
			Logger:     cfg.Logger,
		})
	}

	return &Orchestrator{
		store:     cfg.Store,
		locator:   cfg.Locator,
		validator: cfg.Validator,
		prober:    cfg.Prober,
		messages:  cfg.Messages,
		logger:    cfg.Logger.Named("orchestrator"),
		token:     cfg.Token,
		notify:    cfg.OnTransition,
		now:       cfg.Now,
		state:     idleState(),
	}, nil
}

// State returns a snapshot of the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot()
}

// Loading reports whether a connection is in flight. Callers should not
// start another Connect while it is true.
func (o *Orchestrator) Loading() bool {
	return o.State().Loading()
}

// Reset returns to idle, clearing progress, errors and warnings. An
// in-flight Connect is cancelled and its late results are discarded.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.generation++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.state = idleState()
	snap := o.snapshot()
	o.mu.Unlock()

	o.publish(snap)
}

// Connect negotiates a connection to the site at address and persists the
// result. It returns the saved profile, or nil on failure with the reason in
// State().Error. Calling Connect from a terminal state starts over.
func (o *Orchestrator) Connect(ctx context.Context, address string) *models.ConnectionProfile {
	if strings.TrimSpace(address) == "" {
		o.mu.Lock()
		if o.state.Status.Terminal() {
			o.state = idleState()
		}
		o.state.Error = o.messages.Sprintf(MsgMissingURL)
		o.state.ErrorKind = KindMissingParameter
		snap := o.snapshot()
		o.mu.Unlock()

		o.publish(snap)
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	gen := o.begin(cancel)

	candidate := NewCandidate(address)
	log := o.logger.With("origin", candidate.NormalizedURL)

	if !o.transition(gen, StatusDiscoveringURL) {
		return nil
	}
	indexURL, err := o.locator.Locate(ctx, candidate.NormalizedURL)
	if err != nil {
		o.fail(gen, log, err)
		return nil
	}

	if !o.transition(gen, StatusDiscoveringAPI) {
		return nil
	}
	discovery, err := o.validator.Validate(ctx, indexURL)
	if err != nil {
		o.fail(gen, log, err)
		return nil
	}
	o.warn(gen, discovery.Warnings)

	if !o.transition(gen, StatusTestingAuth) {
		return nil
	}
	capability, err := o.prober.Probe(ctx, discovery.Endpoints.POSAPIURL, o.token)
	if err != nil {
		o.fail(gen, log, err)
		return nil
	}

	if !o.transition(gen, StatusSaving) {
		return nil
	}
	profile, err := o.save(ctx, log, candidate, discovery, capability)
	if err != nil {
		o.fail(gen, log, err)
		return nil
	}

	if !o.finish(gen, profile) {
		return nil
	}
	log.Info("site connected",
		"uuid", profile.UUID,
		"wcpos_api_url", profile.WCPOSAPIURL,
		"use_jwt_as_param", profile.UseJWTAsParam)
	return profile
}

// begin starts a new run from idle. Any previous run is cancelled and
// superseded.
func (o *Orchestrator) begin(cancel context.CancelFunc) uint64 {
	o.mu.Lock()
	o.generation++
	if o.cancel != nil {
		o.cancel()
	}
	o.cancel = cancel
	o.state = idleState()
	gen := o.generation
	snap := o.snapshot()
	o.mu.Unlock()

	o.publish(snap)
	return gen
}

// transition moves to a pipeline status. It returns false when the run is
// stale or the move is not in the transition table.
func (o *Orchestrator) transition(gen uint64, to Status) bool {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return false
	}
	if !CanTransition(o.state.Status, to) {
		o.logger.Error("illegal state transition", "from", o.state.Status, "to", to)
		o.mu.Unlock()
		return false
	}
	step, key := to.step()
	o.state.Status = to
	o.state.Step = step
	o.state.Message = o.messages.Sprintf(key)
	snap := o.snapshot()
	o.mu.Unlock()

	o.publish(snap)
	return true
}

func (o *Orchestrator) warn(gen uint64, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return
	}
	o.state.Warnings = append(o.state.Warnings, warnings...)
	snap := o.snapshot()
	o.mu.Unlock()

	o.publish(snap)
}

func (o *Orchestrator) fail(gen uint64, log hclog.Logger, err error) {
	kind := KindOf(err)
	msg := o.messages.Sprintf(MsgUnexpected)
	var pe *Error
	if errors.As(err, &pe) {
		msg = pe.Message
	}

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		log.Debug("discarding result of superseded connection", "error", err)
		return
	}
	from := o.state.Status
	if !CanTransition(from, StatusError) {
		o.mu.Unlock()
		o.logger.Error("illegal state transition", "from", from, "to", StatusError)
		return
	}
	o.state.Status = StatusError
	o.state.Error = msg
	o.state.ErrorKind = kind
	snap := o.snapshot()
	o.mu.Unlock()

	log.Error("connection failed",
		"stage", from,
		"kind", kind.Code(),
		"error", err)
	o.publish(snap)
}

func (o *Orchestrator) finish(gen uint64, profile *models.ConnectionProfile) bool {
	o.mu.Lock()
	if gen != o.generation || !CanTransition(o.state.Status, StatusSuccess) {
		o.mu.Unlock()
		return false
	}
	o.state.Status = StatusSuccess
	o.state.Step = TotalSteps
	o.state.Message = o.messages.Sprintf(MsgConnected, profile.Name)
	o.cancel = nil
	snap := o.snapshot()
	o.mu.Unlock()

	o.publish(snap)
	return true
}

// save inserts the profile, or updates it in place when a profile with the
// same identifier exists.
func (o *Orchestrator) save(ctx context.Context, log hclog.Logger, c Candidate, d *Discovery, auth *AuthCapability) (*models.ConnectionProfile, error) {
	profile := BuildProfile(c, d, auth, o.now())
	if err := profile.Validate(); err != nil {
		return nil, o.persistenceError(err)
	}

	existing, err := o.store.FindByIdentifier(ctx, profile.UUID)
	if err != nil {
		return nil, o.persistenceError(err)
	}

	if existing != nil {
		log.Debug("updating existing profile", "uuid", profile.UUID, "id", existing.ID)
		updated, err := o.store.Update(ctx, existing, profile)
		if err != nil {
			return nil, o.persistenceError(err)
		}
		return updated, nil
	}

	log.Debug("inserting new profile", "uuid", profile.UUID)
	created, err := o.store.Insert(ctx, profile)
	if err != nil {
		return nil, o.persistenceError(err)
	}
	return created, nil
}

// persistenceError maps storage failures onto PersistenceFailure.
func (o *Orchestrator) persistenceError(err error) error {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return newError(KindPersistence, o.messages.Sprintf(MsgPersistenceInvalid), err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return newError(KindPersistence, o.messages.Sprintf(MsgPersistenceConflict), err)
	default:
		return newError(KindPersistence, o.messages.Sprintf(MsgPersistence), err)
	}
}

// snapshot copies the state; callers hold o.mu.
func (o *Orchestrator) snapshot() State {
	s := o.state
	if len(s.Warnings) > 0 {
		s.Warnings = append([]string(nil), s.Warnings...)
	}
	return s
}

func (o *Orchestrator) publish(s State) {
	if o.notify != nil {
		o.notify(s)
	}
}

// BuildProfile assembles the persisted profile from a finished negotiation.
func BuildProfile(c Candidate, d *Discovery, auth *AuthCapability, now time.Time) *models.ConnectionProfile {
	doc := d.Index
	siteURL := doc.URL
	if siteURL == "" {
		siteURL = c.NormalizedURL
	}

	connectedAt := now
	return &models.ConnectionProfile{
		UUID:            doc.UUID,
		Name:            doc.Name,
		Description:     doc.Description,
		URL:             siteURL,
		Home:            doc.Home,
		GMTOffset:       doc.GMTOffset,
		TimezoneString:  doc.TimezoneString,
		WPAPIURL:        d.Endpoints.APIBaseURL,
		WCAPIURL:        d.Endpoints.CommerceAPIURL,
		WCPOSAPIURL:     d.Endpoints.POSAPIURL,
		WCPOSLoginURL:   d.Endpoints.LoginURL,
		WCVersion:       doc.WCVersion,
		WCPOSVersion:    doc.WCPOSVersion,
		WCPOSProVersion: doc.WCPOSProVersion,
		UseJWTAsParam:   auth.UseParamAuth,
		Index:           models.JSON(doc.Raw),
		LastConnectedAt: &connectedAt,
	}
}
