// Package immotax provides the domain model of a property and tax management
// backend for private landlords and investors filing in Germany.
//
// The core functionalities include:
//   - Lot Accounting: FIFO (first-in, first-out) matching of asset sales
//     against the oldest acquisitions, with realized gains and losses split
//     by the holding period that makes a private sale tax-free.
//   - Rental Accounting: leases, rent payments and arrears, and the yearly
//     rental income statement (Anlage V) of a property.
//   - Entities: the persisted record types (tenants, leases, invoices,
//     trades, ELSTER submissions...) with their validation and duplicate
//     detection rules.
//   - Data Persistence: the encoding and decoding of trades to and from
//     human-readable JSONL.
//
// Everything in this package is stateless and deterministic. Storage, HTTP,
// email, PDF and LLM integrations live in sub packages.
package immotax
