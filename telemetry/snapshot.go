package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pthm-cable/evobee/colour"
	"github.com/pthm-cable/evobee/systems"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot is a read-only view of the simulation state for visualisers.
type Snapshot struct {
	Version int   `json:"version"`
	RNGSeed int64 `json:"rng_seed"`

	WorldWidth  float64 `json:"world_width"`
	WorldHeight float64 `json:"world_height"`

	Tick int32 `json:"tick"`

	Hives   []HiveState   `json:"hives"`
	Agents  []AgentState  `json:"agents"`
	Flowers []FlowerState `json:"flowers"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// HiveState holds one hive's identity.
type HiveState struct {
	ID       uint32 `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Capacity int    `json:"capacity"`
	Agents   int    `json:"agents"`
}

// AgentState holds one pollinator's visible state.
type AgentState struct {
	ID     uint32  `json:"id"`
	HiveID uint32  `json:"hive_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	State  string  `json:"state"`
	Status string  `json:"status"`
	Energy float64 `json:"energy"`

	PrefX float64 `json:"pref_x"`
	PrefY float64 `json:"pref_y"`
	Drift float64 `json:"drift"`

	Carried      int `json:"carried"`
	Landings     int `json:"landings"`
	Pollinations int `json:"pollinations"`
}

// FlowerState holds one flower's visible state.
type FlowerState struct {
	ID         uint32  `json:"id"`
	PlantID    uint32  `json:"plant_id"`
	SpeciesID  uint32  `json:"species_id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Marker     int     `json:"marker"`
	Colour     string  `json:"colour"`
	Nectar     int     `json:"nectar"`
	Stigma     int     `json:"stigma"`
	Pollinated bool    `json:"pollinated"`
}

// BuildSnapshot captures the environment and hives at tick. Agents appear in
// hive then population order; flowers in ID order.
func BuildSnapshot(seed int64, tick int32, env *systems.Environment, hives []systems.Colony) *Snapshot {
	bounds := env.Bounds()
	s := &Snapshot{
		Version:     SnapshotVersion,
		RNGSeed:     seed,
		WorldWidth:  bounds.Max.X - bounds.Min.X,
		WorldHeight: bounds.Max.Y - bounds.Min.Y,
		Tick:        tick,
		Flowers:     make([]FlowerState, 0, env.NumFlowers()),
	}

	for _, h := range hives {
		agents := h.Agents()
		s.Hives = append(s.Hives, HiveState{
			ID:       h.ID(),
			Name:     h.Name(),
			Kind:     h.KindName(),
			Capacity: h.Capacity(),
			Agents:   len(agents),
		})
		for _, a := range agents {
			s.Agents = append(s.Agents, AgentState{
				ID:           a.ID,
				HiveID:       a.HiveID,
				X:            a.Pos.X,
				Y:            a.Pos.Y,
				State:        a.State.String(),
				Status:       a.Status.String(),
				Energy:       a.Energy,
				PrefX:        a.Pref.Point.X,
				PrefY:        a.Pref.Point.Y,
				Drift:        a.Pref.Drift(),
				Carried:      a.Carried.Len(),
				Landings:     a.Perf.Landings,
				Pollinations: a.Perf.Pollinations,
			})
		}
	}

	for _, e := range env.Flowers() {
		f, nectar, bloom, stigma := env.Flower(e)
		s.Flowers = append(s.Flowers, FlowerState{
			ID:         f.ID,
			PlantID:    f.PlantID,
			SpeciesID:  f.SpeciesID,
			X:          f.Pos.X,
			Y:          f.Pos.Y,
			Marker:     int(f.Signature.MarkerPoint),
			Colour:     colour.DisplayRGB(f.Signature.MarkerPoint).Hex(),
			Nectar:     nectar.Amount,
			Stigma:     stigma.Len(),
			Pollinated: bloom.Pollinated,
		})
	}

	return s
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}
	name += ".json"

	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}
