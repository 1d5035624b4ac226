// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dim

import (
	"fmt"
	"strconv"

	"github.com/AleutianAI/tolstack/pkg/stats"
)

// Field is one labelled, already rounded value for tabular display.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Fields is an ordered field list. Order is stable across calls so columns
// line up when rows of the same kind are stacked into one table.
type Fields []Field

// Keys returns the labels in order.
func (f Fields) Keys() []string {
	out := make([]string, len(f))
	for i, fld := range f {
		out[i] = fld.Key
	}
	return out
}

// Values returns the values in order.
func (f Fields) Values() []string {
	out := make([]string, len(f))
	for i, fld := range f {
		out[i] = fld.Value
	}
	return out
}

// Get returns the value stored under key.
func (f Fields) Get(key string) (string, bool) {
	for _, fld := range f {
		if fld.Key == key {
			return fld.Value, true
		}
	}
	return "", false
}

// Field labels shared by dimensions, reviewed dimensions and requirements.
const (
	KeyID               = "ID"
	KeyName             = "Name"
	KeyDescription      = "Description"
	KeyDir              = "Dir"
	KeyNominal          = "Nom."
	KeyTolerance        = "Tol."
	KeySensitivity      = "Sens. (a)"
	KeyRelativeBounds   = "Relative Bounds"
	KeyAbsoluteBounds   = "Absolute Bounds"
	KeyDistribution     = "Distribution"
	KeyProcessSigma     = "Process Sigma"
	KeySkew             = "Skew (k)"
	KeyCp               = "C_p"
	KeyCpk              = "C_pk"
	KeyMeanEff          = "μ_eff"
	KeyStdDevEff        = "σ_eff"
	KeyYieldProbability = "Yield Probability"
	KeyRejectPPM        = "Reject PPM"
)

// Num formats x rounded to the default decimals.
func Num(x float64) string {
	return NumN(x, stats.DefaultDecimals)
}

// NumN formats x rounded to n decimals.
func NumN(x float64, n int) string {
	return strconv.FormatFloat(stats.Round(x, n), 'f', -1, 64)
}

// Bounds formats a closed interval.
func Bounds(lower, upper float64) string {
	return fmt.Sprintf("[%s, %s]", Num(lower), Num(upper))
}

// Percent formats a probability as a percentage with 8 decimals.
func Percent(p float64) string {
	return NumN(p*100, 8)
}

// PPM formats a loss probability as parts per million with 2 decimals.
func PPM(loss float64) string {
	return NumN(loss*1e6, 2)
}
