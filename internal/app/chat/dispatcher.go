/*
Package chat contains the real-time notification core: the connection registry,
event router, per-user room cache, and broadcast dispatcher.

This file defines the Dispatcher struct, which pushes a serialized envelope to
every live connection of every target user. Delivery is best effort and
at-most-once per connection: a failed send unregisters that connection and is
counted, but never interrupts delivery to the user's other connections or to
other users.
*/
package chat

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"chatcore/internal/pkg/logx"
)

// Report collects the per-target outcome of one dispatch.
type Report struct {
	// Delivered counts connections the envelope was queued on.
	Delivered int

	// Failed counts connections whose send failed and were unregistered.
	Failed int

	// Offline counts target users that had no live connection at dispatch time.
	Offline int
}

// Dispatcher fans a serialized envelope out to target users' live connections.
type Dispatcher struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewDispatcher constructs a Dispatcher reading live connections from registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   logx.Logger().With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch pushes envelope to every live connection of every target user.
// Fan-out across users runs in parallel; enqueueing on one connection never
// blocks. Users with no live connection receive nothing and are only counted.
func (d *Dispatcher) Dispatch(targets []string, envelope []byte) Report {
	var delivered, failed, offline atomic.Int64

	var wg sync.WaitGroup
	for _, userID := range targets {
		wg.Add(1)

		go func(uid string) {
			defer wg.Done()

			conns := d.registry.ConnectionsOf(uid)
			if len(conns) == 0 {
				offline.Add(1)
				return
			}

			for _, conn := range conns {
				if err := conn.Enqueue(envelope); err != nil {
					failed.Add(1)
					d.logger.Warn().
						Err(err).
						Str("conn_id", conn.ID()).
						Str("user_id", uid).
						Msg("Send failed, unregistering connection")

					d.registry.Unregister(conn)
					conn.Close()
					continue
				}

				delivered.Add(1)
			}
		}(userID)
	}
	wg.Wait()

	return Report{
		Delivered: int(delivered.Load()),
		Failed:    int(failed.Load()),
		Offline:   int(offline.Load()),
	}
}
