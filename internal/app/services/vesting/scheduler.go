package vesting

import (
	"context"
	"math/big"
	"time"

	"github.com/robfig/cron/v3"

	domain "github.com/launchlayer/curve_layer/internal/app/domain/vesting"
	"github.com/launchlayer/curve_layer/internal/app/storage"
	"github.com/launchlayer/curve_layer/pkg/logger"
)

// DefaultClaimSchedule releases vested tokens once an hour.
const DefaultClaimSchedule = "0 * * * *"

// Scheduler periodically sweeps all vesting records and claims whatever the
// schedule has unlocked on the deployers' behalf, so deployers receive their
// tranches without polling the API themselves.
type Scheduler struct {
	svc      *Service
	vestings storage.VestingStore
	spec     string
	log      *logger.Logger

	cron *cron.Cron
}

// NewScheduler builds a claim sweeper on the given cron spec. An empty spec
// falls back to DefaultClaimSchedule.
func NewScheduler(svc *Service, vestings storage.VestingStore, spec string, log *logger.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultClaimSchedule
	}
	if log == nil {
		log = logger.NewDefault("vesting-scheduler")
	}
	return &Scheduler{svc: svc, vestings: vestings, spec: spec, log: log}
}

// Name implements system.Service.
func (s *Scheduler) Name() string { return "vesting-scheduler" }

// Start registers the cron entry and begins sweeping.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.spec, func() { s.Sweep(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Infof("claim sweeper started on schedule %q", s.spec)
	return nil
}

// Stop halts the cron scheduler and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
	}
	return nil
}

// Sweep claims once for every vesting record with something newly unlocked.
// Failures are logged and do not stop the sweep.
func (s *Scheduler) Sweep(ctx context.Context) {
	states, err := s.vestings.ListVestingStates(ctx)
	if err != nil {
		s.log.WithError(err).Warn("claim sweep aborted")
		return
	}

	claimed := 0
	for _, st := range states {
		if st.UnvestedBurned || remaining(st).Sign() == 0 {
			continue
		}
		receipt, err := s.svc.Claim(ctx, st.TokenID, st.Deployer)
		if err != nil {
			s.log.WithError(err).WithField("token", st.TokenID).Warn("scheduled claim failed")
			continue
		}
		if receipt.Delta.Sign() > 0 {
			claimed++
			s.log.WithField("token", st.TokenID).Debugf("released %s vested tokens", receipt.Delta)
		}
	}
	if claimed > 0 {
		s.log.Infof("claim sweep released tranches for %d tokens", claimed)
	}
}

// remaining reports whether a record can still release anything, used by
// sweeps to skip settled tokens.
func remaining(st domain.State) *big.Int {
	return new(big.Int).Sub(st.TotalAllocation, st.VestedAmount)
}
