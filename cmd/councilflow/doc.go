// Package main is the councilflow server executable. It loads configuration,
// wires the OpenRouter provider into the deliberation pipeline, and serves
// the conversation API on one port and Prometheus metrics on another.
package main
