// Package integration contains the catalog synchronization bounded context.
// It models the ERP → commerce product/stock flow.
//
// Key concepts:
//   - ProductRecord: ERP-side product snapshot (source of truth for quantity/price)
//   - CommerceProduct: current product state on the commerce platform
//   - Resolution: tagged outcome of mapping a SKU to a commerce product ID
//   - AuditRow: one reconciliation decision per processed item
//   - Node: neutral document tree used to read loosely shaped API responses
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (Odoo, PrestaShop, caches, audit sinks) are in the infrastructure layer
package integration
