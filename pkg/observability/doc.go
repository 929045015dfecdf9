/*
Package observability provides the Prometheus collectors used to monitor an orgtree engine.

It tracks chart reloads (count, result and build time), the size of the current
chart and the traffic served by the HTTP and MCP adapters. Metrics are registered
on a private registry so several engines (and tests) can coexist in one process.
*/
package observability
