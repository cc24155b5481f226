//go:build wireinject
// +build wireinject

package settlement

import (
	"github.com/google/wire"
	"gorm.io/gorm"

	"github.com/tair/order-settlement/internal/settlement/gateway"
	"github.com/tair/order-settlement/internal/settlement/handler"
	"github.com/tair/order-settlement/internal/settlement/usecase/command"
	"github.com/tair/order-settlement/kafka"
)

// InitializeHandler initializes settlement handler with all dependencies
func InitializeHandler(db *gorm.DB, gateways *gateway.Registry, publisher *kafka.Publisher) (*handler.SettlementHandler, error) {
	wire.Build(
		AllHandlersSet,
		handler.NewSettlementHandler,
	)
	return nil, nil
}

// InitializeWebhookReconciler initializes the webhook apply path for the
// Kafka consumer
func InitializeWebhookReconciler(db *gorm.DB, gateways *gateway.Registry, publisher *kafka.Publisher) (*command.IngestWebhookHandler, error) {
	wire.Build(
		ProvideOrderRepository,
		ProvidePaymentRepository,
		ProvideRefundRepository,
		ProvideWebhookEventRepository,
		ProvideWebhookPublisher,
		ProvideSyncOrderHandler,
		ProvideIngestWebhookHandler,
	)
	return nil, nil
}
