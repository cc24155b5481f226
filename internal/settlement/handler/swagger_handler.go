package handler

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterSwaggerDocs registers Swagger documentation routes
// @Summary Swagger documentation
// @Description Swagger API documentation
// @Tags Swagger
// @Success 200 {string} string "Swagger UI"
// @Router /swagger/ [get]
func RegisterSwaggerDocs(router *mux.Router, swaggerHandler http.Handler) {
	// Swagger UI
	router.PathPrefix("/swagger/").Handler(swaggerHandler)
}

// CreateOrder godoc
// @Summary Create a new order
// @Description Create a draft order for the authenticated tenant. Amounts are integer minor units and subtotal must equal the sum of item line totals.
// @Tags Orders
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{subtotal=int,tax=int,shipping=int,discount=int,currency=string,customer_name=string,items=array} true "Order data"
// @Success 201 {object} object{success=bool,message=string,data=object}
// @Failure 400 {object} object{success=bool,error=string,code=string}
// @Failure 401 {object} object{success=bool,error=string}
// @Router /api/orders [post]
func (h *SettlementHandler) CreateOrderDoc() {}

// GetOrder godoc
// @Summary Get order by ID
// @Description Get an order with its full status history (tenant-scoped)
// @Tags Orders
// @Security BearerAuth
// @Produce json
// @Param orderId path int true "Order ID"
// @Success 200 {object} object{success=bool,data=object{order=object,history=array}}
// @Failure 404 {object} object{success=bool,error=string,code=string}
// @Router /api/orders/{orderId} [get]
func (h *SettlementHandler) GetOrderDoc() {}

// UpdateOrder godoc
// @Summary Update order status or notes
// @Description Apply a manual order status transition or update internal notes. Illegal transitions are rejected with a 409.
// @Tags Orders
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param orderId path int true "Order ID"
// @Param request body object{status=string,notes=string,reason=string} true "Update data"
// @Success 200 {object} object{success=bool,message=string,data=object}
// @Failure 404 {object} object{success=bool,error=string,code=string}
// @Failure 409 {object} object{success=bool,error=string,code=string}
// @Router /api/orders/{orderId} [patch]
func (h *SettlementHandler) UpdateOrderDoc() {}

// AuthorizePayment godoc
// @Summary Authorize a payment
// @Description Place an authorization hold for the order's total. The hold expires after seven days if not captured.
// @Tags Payments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param orderId path int true "Order ID"
// @Param request body object{payment_method=string,gateway=string,metadata=object} true "Authorization data"
// @Success 201 {object} object{success=bool,message=string,data=object}
// @Failure 402 {object} object{success=bool,error=string,code=string}
// @Failure 409 {object} object{success=bool,error=string,code=string}
// @Failure 502 {object} object{success=bool,error=string,code=string}
// @Router /api/orders/{orderId}/payments/authorize [post]
func (h *SettlementHandler) AuthorizePaymentDoc() {}

// CapturePayment godoc
// @Summary Capture an authorized payment
// @Description Capture the order's most recent authorization, or a specific payment by ID. Amount 0 captures the full authorized amount.
// @Tags Payments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param orderId path int true "Order ID"
// @Param request body object{payment_id=int,amount=int} false "Capture data"
// @Success 200 {object} object{success=bool,message=string,data=object}
// @Failure 402 {object} object{success=bool,error=string,code=string}
// @Failure 409 {object} object{success=bool,error=string,code=string}
// @Router /api/orders/{orderId}/payments/capture [post]
func (h *SettlementHandler) CapturePaymentDoc() {}

// ChargePayment godoc
// @Summary Charge a payment
// @Description Authorize and capture the order's total in a single step
// @Tags Payments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param orderId path int true "Order ID"
// @Param request body object{payment_method=string,gateway=string,metadata=object} true "Charge data"
// @Success 201 {object} object{success=bool,message=string,data=object}
// @Failure 402 {object} object{success=bool,error=string,code=string}
// @Failure 409 {object} object{success=bool,error=string,code=string}
// @Router /api/orders/{orderId}/payments/charge [post]
func (h *SettlementHandler) ChargePaymentDoc() {}

// ListOrderPayments godoc
// @Summary List payments for an order
// @Description Get all payment attempts recorded against an order
// @Tags Payments
// @Security BearerAuth
// @Produce json
// @Param orderId path int true "Order ID"
// @Success 200 {object} object{success=bool,data=object{payments=array,total=int}}
// @Failure 404 {object} object{success=bool,error=string,code=string}
// @Router /api/orders/{orderId}/payments [get]
func (h *SettlementHandler) ListOrderPaymentsDoc() {}

// GetPayment godoc
// @Summary Get payment by ID
// @Description Get a payment with its refund rows (tenant-scoped)
// @Tags Payments
// @Security BearerAuth
// @Produce json
// @Param paymentId path int true "Payment ID"
// @Success 200 {object} object{success=bool,data=object{payment=object,refunds=array}}
// @Failure 403 {object} object{success=bool,error=string,code=string}
// @Failure 404 {object} object{success=bool,error=string,code=string}
// @Router /api/payments/{paymentId} [get]
func (h *SettlementHandler) GetPaymentDoc() {}

// RefundPayment godoc
// @Summary Refund a captured payment
// @Description Refund part or all of a captured payment. Amount 0 refunds the remaining unrefunded balance.
// @Tags Payments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param paymentId path int true "Payment ID"
// @Param request body object{amount=int,reason=string} false "Refund data"
// @Success 200 {object} object{success=bool,message=string,data=object}
// @Failure 402 {object} object{success=bool,error=string,code=string}
// @Failure 409 {object} object{success=bool,error=string,code=string}
// @Router /api/payments/{paymentId}/refund [post]
func (h *SettlementHandler) RefundPaymentDoc() {}

// IngestWebhook godoc
// @Summary Ingest a gateway webhook
// @Description Verify, store and apply one gateway event delivery. Duplicate deliveries are acknowledged without reprocessing.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param gateway path string true "Gateway name"
// @Param X-Webhook-Signature header string true "HMAC signature over the raw body"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 400 {object} object{success=bool,error=string,code=string}
// @Router /webhooks/{gateway} [post]
func (h *SettlementHandler) IngestWebhookDoc() {}

// HealthCheck godoc
// @Summary Health check
// @Description Check service health and database connectivity
// @Tags Health
// @Produce json
// @Success 200 {object} object{success=bool,message=string}
// @Failure 503 {object} object{success=bool,error=string}
// @Router /health [get]
func (h *SettlementHandler) HealthCheckDoc() {}
