// Package sinks adapts analytics backends to the analytics.Sink contract.
//
// Local sinks (log, Prometheus, OTel, journal) deliver synchronously.
// Network sinks (ClickHouse, Postgres profiles, NATS, HTTP collector)
// should be wrapped with NewAsync so a slow backend never stalls a cart
// mutation.
package sinks
