package workers

import (
	"context"
	"log/slog"
	"reflect"
	"time"
)

type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelCapacityWorker periodically reports the current channel capacity and length.
// Reading len(channel) and cap(channel) is non-blocking, so this won't interfere
// with other goroutines. A saturated event channel means handlers are falling
// behind and events are about to be dropped.
type ChannelCapacityWorker struct {
	log            *slog.Logger
	channels       []NamedChannel
	metricInterval time.Duration
}

func NewChannelCapacityWorker(log *slog.Logger, channels []NamedChannel, metricInterval time.Duration) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{
		log:            log,
		channels:       channels,
		metricInterval: metricInterval,
	}
}

func (w ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping channel sampling")
			return nil
		case <-ticker.C:
			for _, nc := range w.channels {
				v := reflect.ValueOf(nc.Channel)
				// Verify if this is a channel
				if v.Kind() != reflect.Chan {
					w.log.Error("Provided object is not a channel", "name", nc.Name)
					continue
				}
				capacity := v.Cap()
				length := v.Len()
				if capacity > 0 && length >= capacity*8/10 {
					w.log.Warn("Channel close to saturation", "name", nc.Name, "length", length, "capacity", capacity)
					continue
				}
				w.log.Debug("Channel occupancy", "name", nc.Name, "length", length, "capacity", capacity)
			}
		}
	}
}
