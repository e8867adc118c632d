package bounty

import "github.com/goliatone/go-bounty/core"

type Config = core.Config

type WebhookConfig = core.WebhookConfig

type EscalationConfig = core.EscalationConfig

type RetryConfig = core.RetryConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Bounty = core.Bounty
type BountyStatus = core.BountyStatus
type BountyStore = core.BountyStore
type ClaimRequest = core.ClaimRequest
type ClaimResult = core.ClaimResult
type SweepStats = core.SweepStats
type PaymentProvider = core.PaymentProvider
type CodeHostClient = core.CodeHostClient
type NotificationPublisher = core.NotificationPublisher
type ReplayLedger = core.ReplayLedger
type EscrowLedger = core.EscrowLedger

var (
	WithLogger                     = core.WithLogger
	WithLoggerProvider             = core.WithLoggerProvider
	WithMetricsRecorder            = core.WithMetricsRecorder
	WithErrorFactory               = core.WithErrorFactory
	WithErrorMapper                = core.WithErrorMapper
	WithConfigProvider             = core.WithConfigProvider
	WithOptionsResolver            = core.WithOptionsResolver
	WithClock                      = core.WithClock
	WithBountyStore                = core.WithBountyStore
	WithPaymentProvider            = core.WithPaymentProvider
	WithCodeHostClient             = core.WithCodeHostClient
	WithEscrowLedger               = core.WithEscrowLedger
	WithNotificationPublisher      = core.WithNotificationPublisher
	WithNotificationDispatchLedger = core.WithNotificationDispatchLedger
	WithReplayLedger               = core.WithReplayLedger
	WithBackoffScheduler           = core.WithBackoffScheduler
	WithClaimEnqueuer              = core.WithClaimEnqueuer
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
