// Package actor runs one simulated node as a single-threaded loop.
//
// Each agent and group owns an Actor. The loop selects over a ticker and a
// buffered mailbox, so the periodic tick, inbound bus messages and
// synchronous calls from the registry are processed strictly one at a time.
// State owned by the Handler is therefore only ever touched from the loop
// goroutine.
//
//	a := actor.New(light, actor.Options{Kind: "led", Name: id})
//	session.Subscribe(ns.WriteAll(), a.Deliver)
//	a.Start(ctx)
//	defer a.Stop()
package actor
