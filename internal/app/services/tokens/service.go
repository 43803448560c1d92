// Package tokens implements token issuance. Launching a token creates the
// token record, its curve ledger with the engine reserve, and its deployer
// vesting schedule in one atomic commit.
package tokens

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	curvedomain "github.com/launchlayer/curve_layer/internal/app/domain/curve"
	"github.com/launchlayer/curve_layer/internal/app/domain/event"
	"github.com/launchlayer/curve_layer/internal/app/domain/token"
	vestingdomain "github.com/launchlayer/curve_layer/internal/app/domain/vesting"
	"github.com/launchlayer/curve_layer/internal/app/storage"
	"github.com/launchlayer/curve_layer/pkg/logger"
)

// EventPublisher receives committed events for fan-out.
type EventPublisher interface {
	Publish(events ...event.Event)
}

// Config fixes the issuance constants shared by every launched token.
type Config struct {
	// TotalSupply is the fixed supply every token is issued with.
	TotalSupply *big.Int

	// VestingBPS of the total supply is allocated to the deployer.
	VestingBPS int64

	// VestingDuration is the linear release window.
	VestingDuration time.Duration
}

// DefaultConfig returns the deployment defaults: one billion tokens at 18
// decimals, 2% deployer allocation vesting over 180 days.
func DefaultConfig() Config {
	supply := new(big.Int).Mul(big.NewInt(1_000_000_000), curvedomain.Scale())
	return Config{
		TotalSupply:     supply,
		VestingBPS:      200,
		VestingDuration: 180 * 24 * time.Hour,
	}
}

// LaunchRequest describes a token to issue.
type LaunchRequest struct {
	Symbol   string
	Name     string
	Deployer string
	Metadata map[string]string
}

// Service issues tokens and reads them back.
type Service struct {
	tokens storage.TokenStore
	ledger storage.LedgerStore

	cfg    Config
	params curvedomain.Params
	pub    EventPublisher
	now    func() time.Time
	log    *logger.Logger
}

// New constructs the issuance service.
func New(tokens storage.TokenStore, ledger storage.LedgerStore, cfg Config, params curvedomain.Params, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tokens")
	}
	return &Service{
		tokens: tokens,
		ledger: ledger,
		cfg:    cfg,
		params: params,
		now:    time.Now,
		log:    log,
	}
}

// WithPublisher attaches the event fan-out. Call before serving traffic.
func (s *Service) WithPublisher(pub EventPublisher) *Service {
	s.pub = pub
	return s
}

// WithClock overrides the time source, primarily for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Launch issues a new token: the token record, its curve ledger seeded with
// the engine reserve, and the deployer vesting schedule land together or not
// at all.
func (s *Service) Launch(ctx context.Context, req LaunchRequest) (token.Token, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	req.Name = strings.TrimSpace(req.Name)
	req.Deployer = strings.TrimSpace(req.Deployer)
	if req.Symbol == "" {
		return token.Token{}, fmt.Errorf("symbol is required")
	}
	if req.Name == "" {
		req.Name = req.Symbol
	}
	if req.Deployer == "" {
		return token.Token{}, fmt.Errorf("deployer is required")
	}

	now := s.now().UTC()
	t := token.Token{
		ID:          uuid.NewString(),
		Symbol:      req.Symbol,
		Name:        req.Name,
		Deployer:    req.Deployer,
		TotalSupply: new(big.Int).Set(s.cfg.TotalSupply),
		Metadata:    req.Metadata,
	}

	reserve := new(big.Int).Mul(t.TotalSupply, big.NewInt(s.params.ReserveBPS))
	reserve.Quo(reserve, big.NewInt(curvedomain.BPSDenominator))
	curveState := curvedomain.NewState(t.ID, reserve, now)

	allocation := vestingdomain.Allocation(t.TotalSupply, s.cfg.VestingBPS)
	vestingState := vestingdomain.NewState(t.ID, req.Deployer, allocation, s.cfg.VestingDuration, now)

	committed, err := s.ledger.Commit(ctx, storage.ChangeSet{
		Token:        &t,
		CurveState:   &curveState,
		VestingState: &vestingState,
		Events:       []event.Event{event.TokenLaunched(t.ID, req.Deployer, req.Symbol, t.TotalSupply, now)},
	})
	if err != nil {
		return token.Token{}, fmt.Errorf("commit launch: %w", err)
	}
	if s.pub != nil {
		s.pub.Publish(committed...)
	}

	s.log.WithField("token", t.ID).Infof("launched %s for %s", req.Symbol, req.Deployer)

	t.CreatedAt = now
	t.UpdatedAt = now
	return t, nil
}

// Get returns a token by ID.
func (s *Service) Get(ctx context.Context, id string) (token.Token, error) {
	return s.tokens.GetToken(ctx, id)
}

// List returns all tokens in issuance order.
func (s *Service) List(ctx context.Context) ([]token.Token, error) {
	return s.tokens.ListTokens(ctx)
}
