package bounty

import (
	"fmt"

	bountycommand "github.com/goliatone/go-bounty/command"
	bountyquery "github.com/goliatone/go-bounty/query"
)

// CommandQueryService is the surface the facade wires into command and
// query handlers. *core.Service satisfies it.
type CommandQueryService interface {
	bountycommand.MutatingService
	bountyquery.BountyReader
	bountyquery.WalletReader
}

type Commands struct {
	Cancel   *bountycommand.CancelBountyCommand
	Expire   *bountycommand.ExpireBountyCommand
	Escalate *bountycommand.EscalateBountyCommand
	RunSweep *bountycommand.RunSweepCommand
}

type Queries struct {
	GetBounty            *bountyquery.GetBountyQuery
	EscalationCandidates *bountyquery.ListEscalationCandidatesQuery
	WalletBalance        *bountyquery.WalletBalanceQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	walletReader bountyquery.WalletReader
}

// WithWalletReader routes wallet balance queries to a reader other than
// the service itself, for deployments that check balances against a
// separate treasury wallet.
func WithWalletReader(reader bountyquery.WalletReader) FacadeOption {
	return func(options *facadeOptions) {
		options.walletReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("bounty: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	wallet := cfg.walletReader
	if wallet == nil {
		wallet = service
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Cancel:   bountycommand.NewCancelBountyCommand(service),
		Expire:   bountycommand.NewExpireBountyCommand(service),
		Escalate: bountycommand.NewEscalateBountyCommand(service),
		RunSweep: bountycommand.NewRunSweepCommand(service),
	}
	facade.queries = Queries{
		GetBounty:            bountyquery.NewGetBountyQuery(service),
		EscalationCandidates: bountyquery.NewListEscalationCandidatesQuery(service),
		WalletBalance:        bountyquery.NewWalletBalanceQuery(wallet),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
