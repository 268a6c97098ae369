package cli

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"fabricviz/internal/config"
	"fabricviz/internal/ingest"
	"fabricviz/internal/layout"
	"fabricviz/internal/observability"
)

// settleSteps caps offline layout runs; the cooling schedule ends well before it
const settleSteps = 1000

// layoutConfig maps the file config onto simulation parameters
func layoutConfig(lc config.LayoutConfig) layout.Config {
	cfg := layout.DefaultConfig()
	cfg.Width = lc.Width
	cfg.Height = lc.Height
	cfg.Charge = lc.Charge
	cfg.LinkDistance = lc.LinkDistance
	cfg.CenterStrength = lc.CenterStrength
	cfg.VelocityDecay = lc.VelocityDecay
	cfg.AlphaMin = lc.AlphaMin
	cfg.AlphaDecay = layout.DecayFor(lc.AlphaMin, 300)
	cfg.Seed = lc.Seed
	return cfg
}

// newSource builds the configured ingest source; nil means none
func newSource(ic config.IngestConfig, logger *log.Logger, c *observability.Collector) (ingest.Source, error) {
	bo := ingest.Backoff{
		Initial: ic.Backoff.Initial.Duration(),
		Max:     ic.Backoff.Max.Duration(),
	}

	switch ic.Kind {
	case config.IngestNone:
		return nil, nil
	case config.IngestWebSocket:
		return ingest.NewWebSocketSource(ic.WebSocket.URL, ic.WebSocket.Subscribe, bo, logger, c), nil
	case config.IngestRedis:
		opts := &redis.Options{
			Addr:     ic.Redis.Addr,
			Password: ic.Redis.Password,
			DB:       ic.Redis.DB,
		}
		return ingest.NewRedisSource(opts, ic.Redis.Channel, bo, logger, c), nil
	case config.IngestFile:
		return ingest.NewFileSource(ic.File.Path, ic.File.Watch, logger, c), nil
	default:
		return nil, fmt.Errorf("unknown ingest kind %q", ic.Kind)
	}
}
