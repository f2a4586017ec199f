package usecase

import (
	"context"

	drepo "MarkWatch/internal/domain/repository"
	mid "MarkWatch/internal/middleware"
)

// TickCollector consumes the mark-price stream and feeds the tick pipeline.
// On stream errors it reconnects and re-reads; ticks lost in between are
// fine, the stream repeats every symbol each second.
type TickCollector struct {
	stream  drepo.PriceStream
	proc    *TickProcessor
	metrics drepo.Metrics
	pipe    *mid.TickPipeline
}

func NewTickCollector(stream drepo.PriceStream, proc *TickProcessor, metrics drepo.Metrics, pipe *mid.TickPipeline) *TickCollector {
	return &TickCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the price stream is connected.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	go c.consume(ctx)
	return nil
}

func (c *TickCollector) consume(ctx context.Context) {
	for {
		tickCh, errCh := c.stream.Read(ctx)
	read:
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errCh:
				if !ok || err != nil {
					c.metrics.RecordError("stream")
					break read
				}
			case t, ok := <-tickCh:
				if !ok {
					break read
				}
				if t == nil {
					continue
				}
				if c.pipe != nil {
					_ = c.pipe.Process(ctx, t)
				} else {
					_ = c.proc.Process(ctx, t)
				}
			}
		}

		// Stream broken: reconnect until it sticks or we are shut down.
		// Reconnect sleeps the configured delay between attempts.
		for {
			if ctx.Err() != nil {
				return
			}
			if err := c.stream.Reconnect(ctx); err == nil {
				break
			}
			c.metrics.RecordError("stream_reconnect")
		}
	}
}

// Processor returns the underlying TickProcessor for lifecycle management.
func (c *TickCollector) Processor() *TickProcessor { return c.proc }

// Shutdown stops the pipeline and closes the stream.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
