// Package app wires the launch layer services together and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"

	curvedomain "github.com/launchlayer/curve_layer/internal/app/domain/curve"
	banksvc "github.com/launchlayer/curve_layer/internal/app/services/bank"
	curvesvc "github.com/launchlayer/curve_layer/internal/app/services/curve"
	"github.com/launchlayer/curve_layer/internal/app/services/stream"
	tokensvc "github.com/launchlayer/curve_layer/internal/app/services/tokens"
	vestingsvc "github.com/launchlayer/curve_layer/internal/app/services/vesting"
	"github.com/launchlayer/curve_layer/internal/app/storage"
	"github.com/launchlayer/curve_layer/internal/app/storage/memory"
	"github.com/launchlayer/curve_layer/internal/app/system"
	"github.com/launchlayer/curve_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Tokens   storage.TokenStore
	Curves   storage.CurveStore
	Vestings storage.VestingStore
	Bank     storage.BankStore
	Balances storage.BalanceStore
	Events   storage.EventStore
	Ledger   storage.LedgerStore
}

// Options carries deployment-level knobs.
type Options struct {
	CurveParams   curvedomain.Params
	Issuance      tokensvc.Config
	Treasury      string
	Authority     string
	ClaimSchedule string

	// DisableScheduler turns off the background claim sweeper, primarily
	// for tests.
	DisableScheduler bool
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Tokens  *tokensvc.Service
	Curve   *curvesvc.Service
	Vesting *vestingsvc.Service
	Bank    *banksvc.Service
	Stream  *stream.Hub
	Events  storage.EventStore
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Tokens == nil {
		stores.Tokens = mem
	}
	if stores.Curves == nil {
		stores.Curves = mem
	}
	if stores.Vestings == nil {
		stores.Vestings = mem
	}
	if stores.Bank == nil {
		stores.Bank = mem
	}
	if stores.Balances == nil {
		stores.Balances = mem
	}
	if stores.Events == nil {
		stores.Events = mem
	}
	if stores.Ledger == nil {
		stores.Ledger = mem
	}

	if opts.CurveParams.BasePrice == nil {
		opts.CurveParams = curvedomain.DefaultParams()
	}
	if opts.Issuance.TotalSupply == nil {
		opts.Issuance = tokensvc.DefaultConfig()
	}
	if opts.Treasury == "" {
		return nil, fmt.Errorf("treasury wallet is required")
	}
	if opts.Authority == "" {
		return nil, fmt.Errorf("milestone authority wallet is required")
	}

	manager := system.NewManager()
	hub := stream.NewHub(stream.DefaultBufferSize, log)

	tokenService := tokensvc.New(stores.Tokens, stores.Ledger, opts.Issuance, opts.CurveParams, log).WithPublisher(hub)
	curveService := curvesvc.New(stores.Curves, stores.Bank, stores.Balances, stores.Ledger, opts.CurveParams, opts.Treasury, log).WithPublisher(hub)
	vestingService := vestingsvc.New(stores.Vestings, stores.Ledger, opts.Authority, log).WithPublisher(hub)
	bankService := banksvc.New(stores.Bank, stores.Ledger, log)

	for _, name := range []string{"tokens", "curve", "bank"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	if !opts.DisableScheduler {
		sweeper := vestingsvc.NewScheduler(vestingService, stores.Vestings, opts.ClaimSchedule, log)
		if err := manager.Register(sweeper); err != nil {
			return nil, fmt.Errorf("register %s: %w", sweeper.Name(), err)
		}
	}

	return &Application{
		manager: manager,
		log:     log,
		Tokens:  tokenService,
		Curve:   curveService,
		Vesting: vestingService,
		Bank:    bankService,
		Stream:  hub,
		Events:  stores.Events,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
