package telemetry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/crprop/candidate"
	"github.com/pthm-cable/crprop/components"
)

// DetectionRecord is the flat form of an archived detection.
type DetectionRecord struct {
	Serial           uint64  `csv:"serial" json:"serial"`
	ParentSerial     uint64  `csv:"parent_serial" json:"parent_serial"`
	SourceSerial     uint64  `csv:"source_serial" json:"source_serial"`
	Tag              string  `csv:"tag" json:"tag"`
	ID               int     `csv:"id" json:"id"`
	Energy           float64 `csv:"energy" json:"energy"`
	X                float64 `csv:"x" json:"x"`
	Y                float64 `csv:"y" json:"y"`
	Z                float64 `csv:"z" json:"z"`
	TrajectoryLength float64 `csv:"trajectory_length" json:"trajectory_length"`
	Weight           float64 `csv:"weight" json:"weight"`
	SourceEnergy     float64 `csv:"source_energy" json:"source_energy"`
}

// NewDetectionRecord flattens the state of c.
func NewDetectionRecord(c *candidate.Candidate) DetectionRecord {
	return DetectionRecord{
		Serial:           c.SerialNumber(),
		ParentSerial:     c.ParentSerialNumber(),
		SourceSerial:     c.SourceSerialNumber(),
		Tag:              c.Tag(),
		ID:               c.Current.ID,
		Energy:           c.Current.Energy,
		X:                c.Current.Position.X,
		Y:                c.Current.Position.Y,
		Z:                c.Current.Position.Z,
		TrajectoryLength: c.TrajectoryLength(),
		Weight:           c.Weight(),
		SourceEnergy:     c.Source.Energy,
	}
}

// Archive stores detected candidates as entities of an ECS world so the
// collected sample can be queried after a run. Process may be called from
// several workers at once.
type Archive struct {
	mu     sync.Mutex
	world  *ecs.World
	mapper *ecs.Map4[components.Lineage, components.Kinematics, components.Weight, components.Origin]
	filter *ecs.Filter4[components.Lineage, components.Kinematics, components.Weight, components.Origin]
	count  int
}

// NewArchive creates an empty archive.
func NewArchive() *Archive {
	world := ecs.NewWorld()
	return &Archive{
		world:  world,
		mapper: ecs.NewMap4[components.Lineage, components.Kinematics, components.Weight, components.Origin](world),
		filter: ecs.NewFilter4[components.Lineage, components.Kinematics, components.Weight, components.Origin](world),
	}
}

// Process records c.
func (a *Archive) Process(c *candidate.Candidate) {
	lin := components.Lineage{
		Serial:       c.SerialNumber(),
		ParentSerial: c.ParentSerialNumber(),
		SourceSerial: c.SourceSerialNumber(),
		Tag:          c.Tag(),
	}
	kin := components.Kinematics{
		ID:               c.Current.ID,
		Energy:           c.Current.Energy,
		Position:         c.Current.Position,
		Direction:        c.Current.Direction,
		TrajectoryLength: c.TrajectoryLength(),
	}
	w := components.Weight{Value: c.Weight()}
	org := components.Origin{Energy: c.Source.Energy, Position: c.Source.Position}

	a.mu.Lock()
	a.mapper.NewEntity(&lin, &kin, &w, &org)
	a.count++
	a.mu.Unlock()
}

// Description implements module.Describer.
func (a *Archive) Description() string {
	return "Archive: detections kept in memory"
}

// Len returns the number of archived detections.
func (a *Archive) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// TotalWeight returns the summed weight of all detections.
func (a *Archive) TotalWeight() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := 0.0
	query := a.filter.Query()
	for query.Next() {
		_, _, w, _ := query.Get()
		total += w.Value
	}
	return total
}

// Energies returns the detected energies and their weights.
func (a *Archive) Energies() (energies, weights []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	energies = make([]float64, 0, a.count)
	weights = make([]float64, 0, a.count)
	query := a.filter.Query()
	for query.Next() {
		_, kin, w, _ := query.Get()
		energies = append(energies, kin.Energy)
		weights = append(weights, w.Value)
	}
	return energies, weights
}

// EffectiveSampleSize returns (Σw)²/Σw² over the detections with energy at
// or above emin: the number of unit-weight detections that would give the
// same statistical precision.
func (a *Archive) EffectiveSampleSize(emin float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	var sum, sumSq float64
	query := a.filter.Query()
	for query.Next() {
		_, kin, w, _ := query.Get()
		if kin.Energy < emin {
			continue
		}
		sum += w.Value
		sumSq += w.Value * w.Value
	}
	if sumSq == 0 {
		return 0
	}
	return sum * sum / sumSq
}

// Spectrum returns the weighted energy histogram over edges.
func (a *Archive) Spectrum(edges []float64) []float64 {
	energies, weights := a.Energies()
	return WeightedHistogram(energies, weights, edges)
}

// Records returns all detections ordered by serial number.
func (a *Archive) Records() []DetectionRecord {
	a.mu.Lock()
	records := make([]DetectionRecord, 0, a.count)
	query := a.filter.Query()
	for query.Next() {
		lin, kin, w, org := query.Get()
		records = append(records, DetectionRecord{
			Serial:           lin.Serial,
			ParentSerial:     lin.ParentSerial,
			SourceSerial:     lin.SourceSerial,
			Tag:              lin.Tag,
			ID:               kin.ID,
			Energy:           kin.Energy,
			X:                kin.Position.X,
			Y:                kin.Position.Y,
			Z:                kin.Position.Z,
			TrajectoryLength: kin.TrajectoryLength,
			Weight:           w.Value,
			SourceEnergy:     org.Energy,
		})
	}
	a.mu.Unlock()

	sort.Slice(records, func(i, j int) bool { return records[i].Serial < records[j].Serial })
	return records
}

// Summary describes the detected sample.
type Summary struct {
	Detections  int     `json:"detections"`
	Lineages    int     `json:"lineages"` // distinct source serial numbers
	TotalWeight float64 `json:"total_weight"`
	MeanEnergy  float64 `json:"mean_energy"` // weighted
	WeightMin   float64 `json:"weight_min"`
	WeightP10   float64 `json:"weight_p10"`
	WeightP50   float64 `json:"weight_p50"`
	WeightP90   float64 `json:"weight_p90"`
}

// Summary computes summary statistics of the archive.
func (a *Archive) Summary() Summary {
	records := a.Records()
	s := Summary{Detections: len(records)}
	if len(records) == 0 {
		return s
	}

	energies := make([]float64, len(records))
	weights := make([]float64, len(records))
	lineages := make(map[uint64]struct{})
	for i, r := range records {
		energies[i] = r.Energy
		weights[i] = r.Weight
		s.TotalWeight += r.Weight
		lineages[r.SourceSerial] = struct{}{}
	}
	s.Lineages = len(lineages)
	s.MeanEnergy = stat.Mean(energies, weights)
	s.WeightMin, s.WeightP10, s.WeightP50, s.WeightP90 = ComputeWeightStats(weights)
	return s
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("detections", s.Detections),
		slog.Int("lineages", s.Lineages),
		slog.Float64("total_weight", s.TotalWeight),
		slog.Float64("mean_energy", s.MeanEnergy),
		slog.String("weights", fmt.Sprintf("min=%.3g p10=%.3g p50=%.3g p90=%.3g",
			s.WeightMin, s.WeightP10, s.WeightP50, s.WeightP90)),
	)
}
