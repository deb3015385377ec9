package trace

import (
	"sync"
	"time"
)

const (
	batchSize     = 64
	batchInterval = time.Second
	bufferDepth   = 1024
)

// batcher is the shared buffering core of Store and RemoteStore: a bounded
// channel drained into fixed-size batches handed to a sink. Overflow drops
// entries rather than slowing the traced connection down.
type batcher struct {
	ch   chan *Entry
	done chan struct{}
	once sync.Once
}

func startBatcher(sink func([]*Entry)) *batcher {
	b := &batcher{
		ch:   make(chan *Entry, bufferDepth),
		done: make(chan struct{}),
	}
	go b.loop(sink)
	return b
}

func (b *batcher) add(e *Entry) {
	select {
	case b.ch <- e:
	default:
	}
}

func (b *batcher) close() {
	b.once.Do(func() {
		close(b.ch)
		<-b.done
	})
}

func (b *batcher) loop(sink func([]*Entry)) {
	defer close(b.done)

	batch := make([]*Entry, 0, batchSize)
	ticker := time.NewTicker(batchInterval)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-b.ch:
			if !ok {
				if len(batch) > 0 {
					sink(batch)
				}
				return
			}
			batch = append(batch, e)
			if len(batch) >= batchSize {
				sink(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				sink(batch)
				batch = batch[:0]
			}
		}
	}
}
