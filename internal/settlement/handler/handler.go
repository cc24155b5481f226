package handler

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tair/order-settlement/internal/settlement/domain"
	"github.com/tair/order-settlement/internal/settlement/usecase/command"
	"github.com/tair/order-settlement/internal/settlement/usecase/query"
	"github.com/tair/order-settlement/pkg/logger"
)

// webhookSignatureHeader carries the gateway's HMAC over the raw body
const webhookSignatureHeader = "X-Webhook-Signature"

// maxWebhookBody bounds raw webhook payload reads
const maxWebhookBody = 1 << 20

// SettlementHandler handles HTTP requests for orders, payments and webhooks
// using CQRS pattern
type SettlementHandler struct {
	// Command handlers
	createOrderHandler   *command.CreateOrderHandler
	updateOrderHandler   *command.UpdateOrderStatusHandler
	authorizeHandler     *command.AuthorizePaymentHandler
	captureHandler       *command.CapturePaymentHandler
	chargeHandler        *command.ChargePaymentHandler
	refundHandler        *command.RefundPaymentHandler
	ingestWebhookHandler *command.IngestWebhookHandler

	// Query handlers
	getOrderHandler     *query.GetOrderHandler
	getPaymentHandler   *query.GetPaymentHandler
	listPaymentsHandler *query.ListOrderPaymentsHandler

	requestCounter *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	settledAmount  *prometheus.CounterVec
	webhookCounter *prometheus.CounterVec
}

// NewSettlementHandler creates a new settlement handler
func NewSettlementHandler(
	createOrderHandler *command.CreateOrderHandler,
	updateOrderHandler *command.UpdateOrderStatusHandler,
	authorizeHandler *command.AuthorizePaymentHandler,
	captureHandler *command.CapturePaymentHandler,
	chargeHandler *command.ChargePaymentHandler,
	refundHandler *command.RefundPaymentHandler,
	ingestWebhookHandler *command.IngestWebhookHandler,
	getOrderHandler *query.GetOrderHandler,
	getPaymentHandler *query.GetPaymentHandler,
	listPaymentsHandler *query.ListOrderPaymentsHandler,
) *SettlementHandler {
	// Initialize Prometheus metrics
	requestCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_service_requests_total",
			Help: "Total number of requests to settlement service",
		},
		[]string{"method", "endpoint", "status"},
	)

	requestLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_service_request_duration_seconds",
			Help:    "Duration of settlement service requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	settledAmount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_service_settled_amount_minor_units",
			Help: "Sum of amounts moved through the ledger in minor units",
		},
		[]string{"operation", "gateway"},
	)

	webhookCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_service_webhook_events_total",
			Help: "Webhook deliveries by gateway and outcome",
		},
		[]string{"gateway", "result"},
	)

	prometheus.MustRegister(requestCounter)
	prometheus.MustRegister(requestLatency)
	prometheus.MustRegister(settledAmount)
	prometheus.MustRegister(webhookCounter)

	return &SettlementHandler{
		createOrderHandler:   createOrderHandler,
		updateOrderHandler:   updateOrderHandler,
		authorizeHandler:     authorizeHandler,
		captureHandler:       captureHandler,
		chargeHandler:        chargeHandler,
		refundHandler:        refundHandler,
		ingestWebhookHandler: ingestWebhookHandler,
		getOrderHandler:      getOrderHandler,
		getPaymentHandler:    getPaymentHandler,
		listPaymentsHandler:  listPaymentsHandler,
		requestCounter:       requestCounter,
		requestLatency:       requestLatency,
		settledAmount:        settledAmount,
		webhookCounter:       webhookCounter,
	}
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware wraps handlers with Prometheus metrics
func (h *SettlementHandler) metricsMiddleware(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		h.requestLatency.WithLabelValues(r.Method, endpoint).Observe(duration)
		h.requestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(rw.statusCode)).Inc()
	}
}

// statusForCode maps domain error codes onto HTTP statuses. Gateway declines
// surface as 402, state conflicts as 409, unknown gateway outcomes as 502.
func statusForCode(code string) int {
	switch code {
	case domain.CodeValidation, domain.CodeSignatureInvalid:
		return http.StatusBadRequest
	case domain.CodeUnauthorized:
		return http.StatusForbidden
	case domain.CodeOrderNotFound, domain.CodePaymentNotFound:
		return http.StatusNotFound
	case domain.CodeAlreadyCaptured, domain.CodeAuthorizationExpired,
		domain.CodeRefundExceedsBalance, domain.CodeInvalidTransition,
		domain.CodeOrderNotPayable:
		return http.StatusConflict
	case domain.CodeAuthorizationFailed, domain.CodeChargeFailed,
		domain.CodeCaptureFailed, domain.CodeRefundFailed:
		return http.StatusPaymentRequired
	case domain.CodeGatewayOutcomeUnknown:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondFailure translates any error into the response envelope
func (h *SettlementHandler) respondFailure(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	de, ok := domain.AsError(err)
	if !ok {
		logger.Error(r.Context()).Err(err).
			Str("path", r.URL.Path).
			Msg(fallback)
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   fallback,
		})
		return
	}

	var data interface{}
	if len(de.Details) > 0 {
		data = de.Details
	}
	respondJSON(w, statusForCode(de.Code), Response{
		Success: false,
		Error:   de.Message,
		Code:    de.Code,
		Data:    data,
	})
}

func pathID(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// CreateOrder handles POST /api/orders
func (h *SettlementHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, Response{Success: false, Error: "Tenant not found in context"})
		return
	}

	var req struct {
		Subtotal        int64  `json:"subtotal"`
		Tax             int64  `json:"tax"`
		Shipping        int64  `json:"shipping"`
		Discount        int64  `json:"discount"`
		Currency        string `json:"currency"`
		CustomerName    string `json:"customer_name"`
		CustomerEmail   string `json:"customer_email"`
		CustomerPhone   string `json:"customer_phone"`
		ShippingAddress string `json:"shipping_address"`
		BillingAddress  string `json:"billing_address"`
		Items           []struct {
			ProductRef string `json:"product_ref"`
			Name       string `json:"name"`
			Quantity   int32  `json:"quantity"`
			UnitPrice  int64  `json:"unit_price"`
		} `json:"items"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	cmd := command.CreateOrderCommand{
		TenantID:        tenantID,
		Subtotal:        req.Subtotal,
		Tax:             req.Tax,
		Shipping:        req.Shipping,
		Discount:        req.Discount,
		Currency:        req.Currency,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, command.CreateOrderItem{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		})
	}

	order, err := h.createOrderHandler.Handle(r.Context(), cmd)
	if err != nil {
		h.respondFailure(w, r, err, "Failed to create order")
		return
	}

	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Order created successfully",
		Data:    order,
	})
}

// GetOrder handles GET /api/orders/{orderId}
func (h *SettlementHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantFromContext(r.Context())
	orderID, ok := pathID(r, "orderId")
	if !ok {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid order ID"})
		return
	}

	view, err := h.getOrderHandler.Handle(r.Context(), query.GetOrderQuery{
		TenantID: tenantID,
		OrderID:  orderID,
	})
	if err != nil {
		h.respondFailure(w, r, err, "Failed to get order")
		return
	}

	respondJSON(w, http.StatusOK, Response{Success: true, Data: view})
}

// UpdateOrder handles PATCH /api/orders/{orderId}
func (h *SettlementHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantFromContext(r.Context())
	orderID, ok := pathID(r, "orderId")
	if !ok {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid order ID"})
		return
	}

	var req struct {
		Status string  `json:"status"`
		Notes  *string `json:"notes"`
		Reason string  `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	cmd := command.UpdateOrderStatusCommand{
		TenantID: tenantID,
		OrderID:  orderID,
		Status:   req.Status,
		Actor:    actorFromContext(r.Context()),
		Reason:   req.Reason,
	}
	if req.Notes != nil {
		cmd.Notes = *req.Notes
		cmd.HasNotes = true
	}

	order, err := h.updateOrderHandler.Handle(r.Context(), cmd)
	if err != nil {
		h.respondFailure(w, r, err, "Failed to update order")
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Order updated successfully",
		Data:    order,
	})
}

// AuthorizePayment handles POST /api/orders/{orderId}/payments/authorize
func (h *SettlementHandler) AuthorizePayment(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantFromContext(r.Context())
	orderID, ok := pathID(r, "orderId")
	if !ok {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid order ID"})
		return
	}

	var req struct {
		PaymentMethod string            `json:"payment_method"`
		Gateway       string            `json:"gateway"`
		Metadata      map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	payment, err := h.authorizeHandler.Handle(r.Context(), command.AuthorizePaymentCommand{
		TenantID:      tenantID,
		OrderID:       orderID,
		PaymentMethod: req.PaymentMethod,
		GatewayType:   req.Gateway,
		Metadata:      req.Metadata,
		Actor:         actorFromContext(r.Context()),
	})
	if err != nil {
		h.respondFailure(w, r, err, "Failed to authorize payment")
		return
	}

	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Payment authorized successfully",
		Data:    payment,
	})
}

// CapturePayment handles POST /api/orders/{orderId}/payments/capture
func (h *SettlementHandler) CapturePayment(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantFromContext(r.Context())
	orderID, ok := pathID(r, "orderId")
	if !ok {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid order ID"})
		return
	}

	var req struct {
		PaymentID uint  `json:"payment_id"`
		Amount    int64 `json:"amount"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
			return
		}
	}

	payment, err := h.captureHandler.Handle(r.Context(), command.CapturePaymentCommand{
		TenantID:  tenantID,
		OrderID:   orderID,
		PaymentID: req.PaymentID,
		Amount:    req.Amount,
		Actor:     actorFromContext(r.Context()),
	})
	if err != nil {
		h.respondFailure(w, r, err, "Failed to capture payment")
		return
	}

	h.settledAmount.WithLabelValues("capture", payment.Gateway).Add(float64(payment.Amount))
	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Payment captured successfully",
		Data:    payment,
	})
}

// ChargePayment handles POST /api/orders/{orderId}/payments/charge
func (h *SettlementHandler) ChargePayment(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantFromContext(r.Context())
	orderID, ok := pathID(r, "orderId")
	if !ok {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid order ID"})
		return
	}

	var req struct {
		PaymentMethod string            `json:"payment_method"`
		Gateway       string            `json:"gateway"`
		Metadata      map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	payment, err := h.chargeHandler.Handle(r.Context(), command.ChargePaymentCommand{
		TenantID:      tenantID,
		OrderID:       orderID,
		PaymentMethod: req.PaymentMethod,
		GatewayType:   req.Gateway,
		Metadata:      req.Metadata,
		Actor:         actorFromContext(r.Context()),
	})
	if err != nil {
		h.respondFailure(w, r, err, "Failed to charge payment")
		return
	}

	h.settledAmount.WithLabelValues("charge", payment.Gateway).Add(float64(payment.Amount))
	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Payment charged successfully",
		Data:    payment,
	})
}

// ListOrderPayments handles GET /api/orders/{orderId}/payments
func (h *SettlementHandler) ListOrderPayments(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantFromContext(r.Context())
	orderID, ok := pathID(r, "orderId")
	if !ok {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid order ID"})
		return
	}

	payments, err := h.listPaymentsHandler.Handle(r.Context(), query.ListOrderPaymentsQuery{
		TenantID: tenantID,
		OrderID:  orderID,
	})
	if err != nil {
		h.respondFailure(w, r, err, "Failed to list order payments")
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"payments": payments,
			"total":    len(payments),
		},
	})
}

// GetPayment handles GET /api/payments/{paymentId}
func (h *SettlementHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantFromContext(r.Context())
	paymentID, ok := pathID(r, "paymentId")
	if !ok {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid payment ID"})
		return
	}

	view, err := h.getPaymentHandler.Handle(r.Context(), query.GetPaymentQuery{
		TenantID:  tenantID,
		PaymentID: paymentID,
	})
	if err != nil {
		h.respondFailure(w, r, err, "Failed to get payment")
		return
	}

	respondJSON(w, http.StatusOK, Response{Success: true, Data: view})
}

// RefundPayment handles POST /api/payments/{paymentId}/refund
func (h *SettlementHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenantFromContext(r.Context())
	paymentID, ok := pathID(r, "paymentId")
	if !ok {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid payment ID"})
		return
	}

	var req struct {
		Amount int64  `json:"amount"`
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
			return
		}
	}

	result, err := h.refundHandler.Handle(r.Context(), command.RefundPaymentCommand{
		TenantID:  tenantID,
		PaymentID: paymentID,
		Amount:    req.Amount,
		Reason:    req.Reason,
		Actor:     actorFromContext(r.Context()),
	})
	if err != nil {
		h.respondFailure(w, r, err, "Failed to refund payment")
		return
	}

	h.settledAmount.WithLabelValues("refund", result.Payment.Gateway).Add(float64(result.Refund.Amount))
	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Refund processed successfully",
		Data:    result,
	})
}

// IngestWebhook handles POST /webhooks/{gateway}
func (h *SettlementHandler) IngestWebhook(w http.ResponseWriter, r *http.Request) {
	gatewayType := mux.Vars(r)["gateway"]

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.webhookCounter.WithLabelValues(gatewayType, "read_error").Inc()
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Unreadable request body"})
		return
	}

	result, err := h.ingestWebhookHandler.Handle(r.Context(), command.IngestWebhookCommand{
		GatewayType: gatewayType,
		Payload:     payload,
		Signature:   r.Header.Get(webhookSignatureHeader),
	})
	if err != nil {
		outcome := "error"
		if domain.ErrorCode(err) == domain.CodeSignatureInvalid {
			outcome = "signature_invalid"
		}
		h.webhookCounter.WithLabelValues(gatewayType, outcome).Inc()
		h.respondFailure(w, r, err, "Failed to ingest webhook")
		return
	}

	switch {
	case result.Duplicate:
		h.webhookCounter.WithLabelValues(gatewayType, "duplicate").Inc()
		respondJSON(w, http.StatusOK, Response{Success: true, Message: "Duplicate delivery ignored"})
	case result.Deferred:
		h.webhookCounter.WithLabelValues(gatewayType, "deferred").Inc()
		respondJSON(w, http.StatusOK, Response{Success: true, Message: "Webhook accepted"})
	default:
		h.webhookCounter.WithLabelValues(gatewayType, "applied").Inc()
		respondJSON(w, http.StatusOK, Response{Success: true, Message: "Webhook processed"})
	}
}

// RegisterRoutes registers all settlement routes
func (h *SettlementHandler) RegisterRoutes(router *mux.Router) {
	// Webhook ingress authenticates by signature, not by bearer token
	router.HandleFunc("/webhooks/{gateway}",
		h.metricsMiddleware("/webhooks/{gateway}", h.IngestWebhook)).Methods("POST")

	// Tenant-scoped routes (any authenticated user of the tenant)
	router.HandleFunc("/api/orders",
		h.metricsMiddleware("/api/orders", AuthMiddleware(h.CreateOrder))).Methods("POST")
	router.HandleFunc("/api/orders/{orderId}",
		h.metricsMiddleware("/api/orders/{orderId}", AuthMiddleware(h.GetOrder))).Methods("GET")
	router.HandleFunc("/api/orders/{orderId}",
		h.metricsMiddleware("/api/orders/{orderId}", AuthMiddleware(h.UpdateOrder))).Methods("PATCH")
	router.HandleFunc("/api/orders/{orderId}/payments",
		h.metricsMiddleware("/api/orders/{orderId}/payments", AuthMiddleware(h.ListOrderPayments))).Methods("GET")
	router.HandleFunc("/api/orders/{orderId}/payments/authorize",
		h.metricsMiddleware("/api/orders/{orderId}/payments/authorize", AuthMiddleware(h.AuthorizePayment))).Methods("POST")
	router.HandleFunc("/api/orders/{orderId}/payments/capture",
		h.metricsMiddleware("/api/orders/{orderId}/payments/capture", AuthMiddleware(h.CapturePayment))).Methods("POST")
	router.HandleFunc("/api/orders/{orderId}/payments/charge",
		h.metricsMiddleware("/api/orders/{orderId}/payments/charge", AuthMiddleware(h.ChargePayment))).Methods("POST")
	router.HandleFunc("/api/payments/{paymentId}",
		h.metricsMiddleware("/api/payments/{paymentId}", AuthMiddleware(h.GetPayment))).Methods("GET")
	router.HandleFunc("/api/payments/{paymentId}/refund",
		h.metricsMiddleware("/api/payments/{paymentId}/refund", AuthMiddleware(h.RefundPayment))).Methods("POST")
}

// RegisterHealthCheck registers health check endpoint
func (h *SettlementHandler) RegisterHealthCheck(router *mux.Router, db *sql.DB) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, Response{
				Success: false,
				Error:   "Database unavailable",
			})
			return
		}

		respondJSON(w, http.StatusOK, Response{
			Success: true,
			Message: "Settlement service is healthy",
		})
	}).Methods("GET")
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
