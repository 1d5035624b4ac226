// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"math"
	"math/rand/v2"

	"github.com/AleutianAI/tolstack/pkg/dim"
	"github.com/AleutianAI/tolstack/pkg/dist"
	"github.com/AleutianAI/tolstack/pkg/stats"
)

// curveSpan is how many standard deviations a curve extends past the mean
// when the tolerance band is narrower.
const curveSpan = 4

// Curve is overlay data for one distribution: its density over the
// tolerance band, optional seeded draws and any data it was fitted to.
// All values are in absolute coordinates.
type Curve struct {
	Dimension string    `json:"dimension"`
	Kind      string    `json:"kind"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`
	X         []float64 `json:"x,omitempty"`
	PDF       []float64 `json:"pdf,omitempty"`
	Samples   []float64 `json:"samples,omitempty"`
	Data      []float64 `json:"data,omitempty"`
}

// curves builds one Curve per reviewed input, then one for the six sigma
// result when there is one.
func curves(inputs []*dim.Reviewed, six *dim.Reviewed, points, samples int, rng *rand.Rand) []Curve {
	all := inputs
	if six != nil {
		all = append(all[:len(all):len(all)], six)
	}
	out := make([]Curve, 0, len(all))
	for _, r := range all {
		out = append(out, curve(r.Name(), r.Distribution(), r.Dimension().AbsLower(), r.Dimension().AbsUpper(), points, samples, rng))
	}
	return out
}

func curve(name string, d dist.Distribution, lower, upper float64, points, samples int, rng *rand.Rand) Curve {
	c := Curve{Dimension: name, Kind: d.Kind().String(), Lower: lower, Upper: upper}

	if std := d.StdDev(); std > 0 && points > 1 {
		lo := math.Min(lower, d.Mean()-curveSpan*std)
		hi := math.Max(upper, d.Mean()+curveSpan*std)
		step := (hi - lo) / float64(points-1)
		c.X = make([]float64, points)
		c.PDF = make([]float64, points)
		for i := range points {
			x := lo + float64(i)*step
			if i == points-1 {
				x = hi
			}
			c.X[i] = x
			if p := d.PDF(x); stats.IsFinite(p) {
				c.PDF[i] = p
			}
		}
	}
	if samples > 0 {
		c.Samples = d.Sample(rng, samples)
	}
	if n, ok := d.(*dist.Normal); ok {
		c.Data = n.Data()
	}
	return c
}
