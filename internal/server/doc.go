// Package server hosts the HTTP surfaces of connectd: the connection API
// (start flows, receive provider callbacks, list providers), Kubernetes
// health probes, and a dedicated Prometheus metrics listener.
//
// The connection API and the metrics endpoint bind to separate addresses
// so operational metrics are never reachable through the public listener.
package server
