package fakebackend

import (
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Record is one backend JSON object.
type Record = map[string]any

// Dataset is what the fake backend serves.
type Dataset struct {
	History  []Record
	Clusters []Record
}

// Latest returns the newest history record, or nil.
func (d Dataset) Latest() Record {
	var (
		latest Record
		when   time.Time
	)
	for _, r := range d.History {
		ts, _ := r["timestamp"].(string)
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			continue
		}
		if latest == nil || t.After(when) {
			latest, when = r, t
		}
	}
	return latest
}

// Generator produces datasets from a Config.
type Generator struct {
	cfg Config
	rnd *rand.Rand
}

// NewGenerator returns a deterministic generator for cfg.
func NewGenerator(cfg Config) *Generator {
	return &Generator{
		cfg: cfg,
		rnd: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// Generate builds a dataset. History is emitted in shuffled order since the
// real backend does not sort either.
func (g *Generator) Generate() Dataset {
	devices := max(g.cfg.Devices, 1)
	clusters := max(g.cfg.Clusters, 1)

	labels := make([]int, devices)
	for i := range labels {
		labels[i] = g.rnd.IntN(clusters)
	}

	history := make([]Record, 0, g.cfg.Sessions)
	for i := range g.cfg.Sessions {
		device := g.rnd.IntN(devices)
		at := g.cfg.Start.Add(time.Duration(i) * g.cfg.Step)
		history = append(history, g.session(device+1, labels[device], at))
	}
	g.rnd.Shuffle(len(history), func(i, j int) { history[i], history[j] = history[j], history[i] })

	assigned := make([]Record, 0, devices)
	for d := g.cfg.Unclustered; d < devices; d++ {
		assigned = append(assigned, Record{
			"device_id": g.id(d + 1),
			"cluster":   labels[d],
		})
	}
	return Dataset{History: history, Clusters: assigned}
}

// session builds one charging session. The cluster label biases the
// features so the clusters are visible on a scatter plot.
func (g *Generator) session(device, label int, at time.Time) Record {
	temp := 18 + float64(label)*6 + g.rnd.NormFloat64()*1.5
	energy := 8 + float64(label)*9 + g.rnd.NormFloat64()*2
	rate := 7 + g.rnd.Float64()*43
	duration := math.Max(energy/rate, 0.1)
	cost := energy * (0.25 + g.rnd.Float64()*0.2)

	r := Record{
		"id":                      g.id(device),
		"session_id":              uuid.NewString(),
		"timestamp":               at.UTC().Format(time.RFC3339),
		"temperature_c":           round(temp, 1),
		"energy_consumed_kwh":     round(energy, 2),
		"charging_rate_kw":        round(rate, 1),
		"charging_duration_hours": round(duration, 2),
		"charging_cost_eur":       round(cost, 2),
		"battery_level_percent":   g.rnd.IntN(81) + 20,
	}

	if g.rnd.Float64() < g.cfg.MalformedRatio {
		switch g.rnd.IntN(3) {
		case 0:
			r["temperature_c"] = "n/a"
		case 1:
			r["energy_consumed_kwh"] = nil
		default:
			r["charging_cost_eur"] = "unknown"
		}
	} else if g.rnd.IntN(2) == 0 {
		r["temperature_c"] = strconv.FormatFloat(round(temp, 1), 'f', -1, 64)
	}
	return r
}

// id encodes a device number either as a JSON number or a string.
func (g *Generator) id(n int) any {
	if g.rnd.Float64() < g.cfg.StringIDRatio {
		return strconv.Itoa(n)
	}
	return n
}

func round(x float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(x*p) / p
}
