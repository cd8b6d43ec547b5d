// Package component defines lifecycle interfaces for long-lived emhttp
// services and a registry that starts and stops them in order.
//
//   - Component: Start/Stop/Health lifecycle
//   - Describable: one-line summaries for startup output
//   - Registry: ordered start, reverse-order stop
package component
