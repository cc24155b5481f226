package settlement

import (
	"github.com/google/wire"
	"gorm.io/gorm"

	"github.com/tair/order-settlement/internal/settlement/domain"
	"github.com/tair/order-settlement/internal/settlement/fees"
	"github.com/tair/order-settlement/internal/settlement/gateway"
	"github.com/tair/order-settlement/internal/settlement/repository"
	"github.com/tair/order-settlement/internal/settlement/usecase/command"
	"github.com/tair/order-settlement/internal/settlement/usecase/query"
	"github.com/tair/order-settlement/kafka"
)

// Repository providers
func ProvideOrderRepository(db *gorm.DB) domain.OrderRepository {
	return repository.NewGormOrderRepository(db)
}

func ProvidePaymentRepository(db *gorm.DB) domain.PaymentRepository {
	return repository.NewPaymentRepositoryWithTracing(db)
}

func ProvideRefundRepository(db *gorm.DB) domain.RefundRepository {
	return repository.NewGormRefundRepository(db)
}

func ProvideWebhookEventRepository(db *gorm.DB) domain.WebhookEventRepository {
	return repository.NewGormWebhookEventRepository(db)
}

func ProvideFeeTierRepository(db *gorm.DB) domain.FeeTierRepository {
	return repository.NewGormFeeTierRepository(db)
}

func ProvideFeeCalculator(tiers domain.FeeTierRepository) *fees.Calculator {
	return fees.NewCalculator(tiers)
}

// ProvideEventPublisher adapts the optional Kafka publisher. A nil
// *kafka.Publisher must become a nil interface, not a typed nil.
func ProvideEventPublisher(publisher *kafka.Publisher) command.EventPublisher {
	if publisher == nil {
		return nil
	}
	return publisher
}

func ProvideWebhookPublisher(publisher *kafka.Publisher) command.WebhookPublisher {
	if publisher == nil {
		return nil
	}
	return publisher
}

// Command Handlers Providers
func ProvideSyncOrderHandler(orders domain.OrderRepository) *command.SyncOrderHandler {
	return command.NewSyncOrderHandler(orders)
}

func ProvideCreateOrderHandler(orders domain.OrderRepository) *command.CreateOrderHandler {
	return command.NewCreateOrderHandler(orders)
}

func ProvideUpdateOrderStatusHandler(orders domain.OrderRepository) *command.UpdateOrderStatusHandler {
	return command.NewUpdateOrderStatusHandler(orders)
}

func ProvideAuthorizePaymentHandler(
	orders domain.OrderRepository,
	payments domain.PaymentRepository,
	gateways *gateway.Registry,
	calculator *fees.Calculator,
	sync *command.SyncOrderHandler,
) *command.AuthorizePaymentHandler {
	return command.NewAuthorizePaymentHandler(orders, payments, gateways, calculator, sync)
}

func ProvideCapturePaymentHandler(
	orders domain.OrderRepository,
	payments domain.PaymentRepository,
	gateways *gateway.Registry,
	calculator *fees.Calculator,
	sync *command.SyncOrderHandler,
	publisher command.EventPublisher,
) *command.CapturePaymentHandler {
	return command.NewCapturePaymentHandler(orders, payments, gateways, calculator, sync, publisher)
}

func ProvideChargePaymentHandler(
	orders domain.OrderRepository,
	payments domain.PaymentRepository,
	gateways *gateway.Registry,
	calculator *fees.Calculator,
	sync *command.SyncOrderHandler,
	publisher command.EventPublisher,
) *command.ChargePaymentHandler {
	return command.NewChargePaymentHandler(orders, payments, gateways, calculator, sync, publisher)
}

func ProvideRefundPaymentHandler(
	payments domain.PaymentRepository,
	refunds domain.RefundRepository,
	gateways *gateway.Registry,
	sync *command.SyncOrderHandler,
	publisher command.EventPublisher,
) *command.RefundPaymentHandler {
	return command.NewRefundPaymentHandler(payments, refunds, gateways, sync, publisher)
}

func ProvideIngestWebhookHandler(
	gateways *gateway.Registry,
	events domain.WebhookEventRepository,
	payments domain.PaymentRepository,
	refunds domain.RefundRepository,
	sync *command.SyncOrderHandler,
	publisher command.WebhookPublisher,
) *command.IngestWebhookHandler {
	return command.NewIngestWebhookHandler(gateways, events, payments, refunds, sync, publisher)
}

// Query Handlers Providers
func ProvideGetOrderHandler(orders domain.OrderRepository) *query.GetOrderHandler {
	return query.NewGetOrderHandler(orders)
}

func ProvideGetPaymentHandler(payments domain.PaymentRepository, refunds domain.RefundRepository) *query.GetPaymentHandler {
	return query.NewGetPaymentHandler(payments, refunds)
}

func ProvideListOrderPaymentsHandler(orders domain.OrderRepository, payments domain.PaymentRepository) *query.ListOrderPaymentsHandler {
	return query.NewListOrderPaymentsHandler(orders, payments)
}

// Wire sets
var RepositorySet = wire.NewSet(
	ProvideOrderRepository,
	ProvidePaymentRepository,
	ProvideRefundRepository,
	ProvideWebhookEventRepository,
	ProvideFeeTierRepository,
)

var CommandHandlerSet = wire.NewSet(
	ProvideFeeCalculator,
	ProvideEventPublisher,
	ProvideWebhookPublisher,
	ProvideSyncOrderHandler,
	ProvideCreateOrderHandler,
	ProvideUpdateOrderStatusHandler,
	ProvideAuthorizePaymentHandler,
	ProvideCapturePaymentHandler,
	ProvideChargePaymentHandler,
	ProvideRefundPaymentHandler,
	ProvideIngestWebhookHandler,
)

var QueryHandlerSet = wire.NewSet(
	ProvideGetOrderHandler,
	ProvideGetPaymentHandler,
	ProvideListOrderPaymentsHandler,
)

var AllHandlersSet = wire.NewSet(
	RepositorySet,
	CommandHandlerSet,
	QueryHandlerSet,
)
