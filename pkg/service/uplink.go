package service

import (
	"fmt"
	"time"

	"github.com/farshidtz/senml/v2"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/uplink"
)

// uplinkLoop publishes the configured instances every UplinkInterval.
func (s *DeviceService) uplinkLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.UplinkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.publishUplink()
		}
	}
}

// publishUplink snapshots every instance on the loop and posts the packs
// from the calling goroutine.
func (s *DeviceService) publishUplink() {
	up := s.config.Uplink
	if !up.Connected() {
		if err := up.Connect(s.ctx); err != nil {
			s.debugLog("uplink connect failed", "error", err)
			return
		}
	}

	s.mu.RLock()
	paths := append([]model.Path(nil), s.config.UplinkInstances...)
	s.mu.RUnlock()

	for _, path := range paths {
		var pack senml.Pack
		err := s.Do(s.ctx, func(d *model.Device) error {
			node, err := d.Lookup(path)
			if err != nil {
				return err
			}
			oi, ok := node.(*model.ObjectInstance)
			if !ok {
				return fmt.Errorf("%s is not an object instance", path)
			}
			pack, err = uplink.BuildPack(oi, time.Now())
			return err
		})
		if err != nil {
			s.debugLog("uplink snapshot skipped", "path", path, "error", err)
			continue
		}
		if err := up.PublishPack(s.ctx, pack); err != nil {
			if s.logger != nil {
				s.logger.Warn("uplink publish failed", "path", path, "error", err)
			}
			// Reconnect with a fresh token on the next tick.
			_ = up.Close()
			return
		}
	}
}
