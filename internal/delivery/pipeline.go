package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"geoflow/internal/collector"
	"geoflow/internal/sampler"
	"geoflow/internal/status"
	"geoflow/internal/store"
	"geoflow/internal/stream"
)

// Pipeline relays each sample to the collector and guarantees exactly one
// local history append per sample, whatever the remote outcome. The local
// log is the durability backstop, not a retry queue; failed pushes are
// not re-attempted.
type Pipeline struct {
	client *collector.Client
	store  *store.Store
	sink   *status.Sink
	hub    *stream.Hub
}

func NewPipeline(c *collector.Client, st *store.Store, sink *status.Sink, hub *stream.Hub) *Pipeline {
	return &Pipeline{client: c, store: st, sink: sink, hub: hub}
}

// Deliver never reports back to the caller; the sampling loop must keep
// running whatever happens on the network. The local append and the live
// broadcast happen synchronously, before any network work, so the log
// keeps samples in callback-arrival order rather than network-completion
// order. Only the push runs asynchronously; a stop does not cancel pushes
// already in flight.
func (p *Pipeline) Deliver(sample sampler.Sample, identity string) {
	raw, err := json.Marshal(sample)
	if err != nil {
		log.Printf("sample marshal failed: %v", err)
		p.sink.Publish("sample could not be serialized; sample lost", status.Error)
		return
	}

	// The full sample lands locally exactly once, pushed or not.
	if err := p.store.AppendHistory(context.Background(), identity, raw); err != nil {
		log.Printf("local history append failed: %v", err)
		p.sink.Publish("local history append failed; sample lost", status.Error)
	}

	if p.hub != nil {
		p.hub.Broadcast(identity, raw)
	}

	go p.push(sample, identity)
}

func (p *Pipeline) push(sample sampler.Sample, identity string) {
	payload := collector.PushPayload{
		UserID:    identity,
		Latitude:  sample.Latitude,
		Longitude: sample.Longitude,
		Accuracy:  sample.Accuracy,
		Timestamp: sample.Timestamp.UTC().Format(time.RFC3339),
	}

	recordID, err := p.client.Push(context.Background(), payload)
	if err != nil {
		p.sink.Publish(fmt.Sprintf("delivery failed: %v; sample kept locally", err), status.Warning)
		return
	}
	p.sink.Publish(fmt.Sprintf("sample delivered (record %s)", recordID), status.Success)
}
