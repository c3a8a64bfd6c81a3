package main

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/service"
)

// DefaultSimulationInterval is the time between synthetic samples.
const DefaultSimulationInterval = 5 * time.Second

// Simulator random-walks every observable numeric resource.
type Simulator struct {
	svc      *service.DeviceService
	logger   *slog.Logger
	interval time.Duration

	values map[string]float64
}

// NewSimulator creates a simulator for svc.
func NewSimulator(svc *service.DeviceService, logger *slog.Logger) *Simulator {
	return &Simulator{
		svc:      svc,
		logger:   logger,
		interval: DefaultSimulationInterval,
		values:   make(map[string]float64),
	}
}

// Run updates the resources until ctx ends.
func (s *Simulator) Run(ctx context.Context) error {
	targets, err := s.targets(ctx)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		s.logger.Warn("simulation: no observable numeric resources")
		return nil
	}
	s.logger.Info("simulation started", "resources", len(targets))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, t := range targets {
				s.step(ctx, t)
			}
		}
	}
}

type simTarget struct {
	path    model.Path
	integer bool
	start   float64
}

// targets collects the single-instance dynamic resources that are
// observable and numeric.
func (s *Simulator) targets(ctx context.Context) ([]simTarget, error) {
	var out []simTarget
	err := s.svc.Do(ctx, func(d *model.Device) error {
		d.Resources(func(r *model.Resource) {
			if r.IsStatic() || r.SupportsMultipleInstances() || !r.IsObservable() {
				return
			}
			switch r.Type() {
			case model.TypeFloat, model.TypeInteger:
			default:
				return
			}
			start, _ := r.Float()
			out = append(out, simTarget{
				path:    r.Path(),
				integer: r.Type() == model.TypeInteger,
				start:   start,
			})
		})
		return nil
	})
	return out, err
}

func (s *Simulator) step(ctx context.Context, t simTarget) {
	key := t.path.String()
	v, ok := s.values[key]
	if !ok {
		v = t.start
	}
	v += rand.Float64()*2 - 1

	var text string
	if t.integer {
		text = strconv.FormatInt(int64(v), 10)
	} else {
		text = strconv.FormatFloat(v, 'f', 2, 64)
	}
	if err := s.svc.SetResourceValue(ctx, t.path, []byte(text)); err != nil {
		s.logger.Debug("simulation update failed", "path", key, "error", err)
		return
	}
	s.values[key] = v
	s.logger.Debug("simulated sample", "path", key, "value", text)
}
