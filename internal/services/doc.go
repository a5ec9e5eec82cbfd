// Package services builds and owns the roadwatch component graph.
//
// New wires the remote client, credentials, session, store, scheduler,
// sync engine, action coordinator and event publisher from one
// configuration. Commands and the daemon reach components through the
// Registry accessors and release everything with Close.
package services
