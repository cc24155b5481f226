package main

// @title Order Settlement Service API
// @version 1.0
// @description Payment and order settlement engine: fee calculation, payment ledger, order synchronization and gateway webhook reconciliation

// @contact.name API Support
// @contact.email support@example.com

// @host localhost:8084
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @tag.name Orders
// @tag.description Order lifecycle endpoints

// @tag.name Payments
// @tag.description Payment ledger endpoints

// @tag.name Webhooks
// @tag.description Gateway webhook ingress

// @tag.name Health
// @tag.description Health check endpoints
