package input

import (
	"fmt"
	"os"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
)

// checkMap rejects duplicated ids and lanes without a centerline,
// and references from roads and junctions to lanes that do not exist.
func checkMap(m *mapv2.Map) error {
	lanes := make(map[int32]struct{}, len(m.Lanes))
	for _, l := range m.Lanes {
		if _, ok := lanes[l.Id]; ok {
			return fmt.Errorf("duplicated lane id %d", l.Id)
		}
		lanes[l.Id] = struct{}{}
		if l.CenterLine == nil || len(l.CenterLine.Nodes) < 2 {
			return fmt.Errorf("lane %d has no centerline", l.Id)
		}
	}
	for _, r := range m.Roads {
		for _, id := range r.LaneIds {
			if _, ok := lanes[id]; !ok {
				return fmt.Errorf("road %d references unknown lane %d", r.Id, id)
			}
		}
	}
	for _, j := range m.Junctions {
		for _, id := range j.LaneIds {
			if _, ok := lanes[id]; !ok {
				return fmt.Errorf("junction %d references unknown lane %d", j.Id, id)
			}
		}
	}
	return nil
}

// preCheckCache reports whether cacheDir is an existing directory.
func preCheckCache(cacheDir string) bool {
	if cacheDir == "" {
		log.Info("disable input cache")
		return false
	} else {
		if stat, err := os.Stat(cacheDir); err == nil && stat.IsDir() {
			log.Infof("enable input cache at %s", cacheDir)
			return true
		} else {
			log.Errorf("disable input cache because invalid dir %s (not exist or file)", cacheDir)
			return false
		}
	}
}
