// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stackfile reads stack definition files.
//
// A stack file declares dimensions, the stacks they form and the
// requirements each stack result must meet:
//
//	name: Gearbox
//	process_sigma: 3
//	dimensions:
//	  - name: E
//	    nominal: 0.12
//	    tolerance: {symmetric: 0.005}
//	stacks:
//	  - name: shaft end play
//	    dimensions:
//	      - ref: E
//	      - ref: E
//	        name: G
//	      - name: A
//	        nominal: -0.375
//	        tolerance: {upper: 0, lower: -0.031}
//	    requirements:
//	      - name: end play
//	        method: rss
//	        lower: 0.002
//	        upper: 0.06
//
// A ref without a name shares the library dimension. A ref with a name
// is a copy under a new id. Distributions are given in absolute (signed)
// coordinates.
//
// Files are YAML; JSON is accepted because it is valid YAML.
package stackfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidFile wraps every schema and validation failure.
	ErrInvalidFile = errors.New("invalid stack file")

	// ErrUnknownRef indicates a ref naming no library dimension.
	ErrUnknownRef = errors.New("unknown dimension ref")
)

// File is the root of a stack file.
type File struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// ProcessSigma is the default target process sigma for reviewed
	// dimensions and requirement evaluation. 0 uses the caller default.
	ProcessSigma float64 `json:"process_sigma,omitempty" yaml:"process_sigma,omitempty" validate:"gte=0"`

	// SixSigmaAt is the default six sigma multiplier. 0 uses the caller
	// default.
	SixSigmaAt float64 `json:"six_sigma_at,omitempty" yaml:"six_sigma_at,omitempty" validate:"gte=0"`

	// Dimensions is a library referenced by name from stacks.
	Dimensions []DimensionSpec `json:"dimensions,omitempty" yaml:"dimensions,omitempty" validate:"dive"`

	Stacks []StackSpec `json:"stacks" yaml:"stacks" validate:"required,min=1,dive"`
}

// StackSpec declares one stack.
type StackSpec struct {
	Name        string `json:"name" yaml:"name" validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Reviewed forces a reviewed stack even when no dimension has a
	// review block. Dimensions without one get an inferred normal.
	Reviewed bool `json:"reviewed,omitempty" yaml:"reviewed,omitempty"`

	ProcessSigma float64 `json:"process_sigma,omitempty" yaml:"process_sigma,omitempty" validate:"gte=0"`
	SixSigmaAt   float64 `json:"six_sigma_at,omitempty" yaml:"six_sigma_at,omitempty" validate:"gte=0"`

	Dimensions   []DimensionSpec   `json:"dimensions" yaml:"dimensions" validate:"required,min=1,dive"`
	Requirements []RequirementSpec `json:"requirements,omitempty" yaml:"requirements,omitempty" validate:"dive"`
}

// DimensionSpec declares a dimension, or references one in the library.
type DimensionSpec struct {
	// Ref names a library dimension. Only Name may accompany it.
	Ref string `json:"ref,omitempty" yaml:"ref,omitempty"`

	Name        string   `json:"name,omitempty" yaml:"name,omitempty" validate:"required_without=Ref"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Nominal     *float64 `json:"nominal,omitempty" yaml:"nominal,omitempty" validate:"required_without=Ref"`

	Tolerance *ToleranceSpec `json:"tolerance,omitempty" yaml:"tolerance,omitempty" validate:"required_without=Ref"`

	// Sensitivity defaults to 1.
	Sensitivity *float64 `json:"sensitivity,omitempty" yaml:"sensitivity,omitempty"`

	Review *ReviewSpec `json:"review,omitempty" yaml:"review,omitempty"`
}

// ToleranceSpec is either symmetric or an upper/lower pair.
type ToleranceSpec struct {
	Symmetric *float64 `json:"symmetric,omitempty" yaml:"symmetric,omitempty" validate:"required_without_all=Upper Lower,excluded_with=Upper Lower,omitempty,gte=0"`
	Upper     *float64 `json:"upper,omitempty" yaml:"upper,omitempty" validate:"required_with=Lower"`
	Lower     *float64 `json:"lower,omitempty" yaml:"lower,omitempty" validate:"required_with=Upper"`
}

// ReviewSpec annotates a dimension with process data.
type ReviewSpec struct {
	ProcessSigma float64           `json:"process_sigma,omitempty" yaml:"process_sigma,omitempty" validate:"gte=0"`
	Skew         float64           `json:"skew,omitempty" yaml:"skew,omitempty"`
	Distribution *DistributionSpec `json:"distribution,omitempty" yaml:"distribution,omitempty"`
}

// DistributionSpec declares a distribution.
//
// normal takes mean and std_dev, or data to fit. uniform takes lower and
// upper. normal_screened takes all four.
type DistributionSpec struct {
	Type   string    `json:"type" yaml:"type" validate:"required,oneof=normal uniform normal_screened"`
	Mean   *float64  `json:"mean,omitempty" yaml:"mean,omitempty"`
	StdDev *float64  `json:"std_dev,omitempty" yaml:"std_dev,omitempty" validate:"omitempty,gte=0"`
	Lower  *float64  `json:"lower,omitempty" yaml:"lower,omitempty"`
	Upper  *float64  `json:"upper,omitempty" yaml:"upper,omitempty"`
	Data   []float64 `json:"data,omitempty" yaml:"data,omitempty"`
}

// RequirementSpec declares the limits a stack result must meet.
type RequirementSpec struct {
	Name        string `json:"name" yaml:"name" validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Method names the result evaluated: closed, wc, rss, mrss or six_sigma.
	Method string `json:"method" yaml:"method" validate:"required,oneof=closed wc rss mrss six_sigma"`

	// ProcessSigma reviews a basic method result. Ignored for six_sigma.
	ProcessSigma float64 `json:"process_sigma,omitempty" yaml:"process_sigma,omitempty" validate:"gte=0"`

	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// =============================================================================
// Loading
// =============================================================================

// Load reads and validates the stack file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stack file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a stack file. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidFile, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Marshal encodes f as YAML.
func Marshal(f *File) ([]byte, error) {
	return yaml.Marshal(f)
}

// =============================================================================
// Validation
// =============================================================================

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks tags and cross references.
//
// Outputs:
//   - error: Wraps ErrInvalidFile, or ErrUnknownRef for a dangling ref.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidFile, describe(err))
	}

	library := make(map[string]bool, len(f.Dimensions))
	for i, d := range f.Dimensions {
		if d.Ref != "" {
			return fmt.Errorf("%w: dimensions[%d]: library entries cannot use ref", ErrInvalidFile, i)
		}
		if library[d.Name] {
			return fmt.Errorf("%w: dimensions[%d]: duplicate name %q", ErrInvalidFile, i, d.Name)
		}
		library[d.Name] = true
		if err := d.check(); err != nil {
			return fmt.Errorf("%w: dimensions[%d]: %v", ErrInvalidFile, i, err)
		}
	}

	for si, s := range f.Stacks {
		for di, d := range s.Dimensions {
			where := fmt.Sprintf("stacks[%d].dimensions[%d]", si, di)
			if d.Ref == "" {
				if err := d.check(); err != nil {
					return fmt.Errorf("%w: %s: %v", ErrInvalidFile, where, err)
				}
				continue
			}
			if !library[d.Ref] {
				return fmt.Errorf("%s: %w %q", where, ErrUnknownRef, d.Ref)
			}
			if d.Nominal != nil || d.Tolerance != nil || d.Sensitivity != nil || d.Review != nil || d.Description != "" {
				return fmt.Errorf("%w: %s: ref allows only name", ErrInvalidFile, where)
			}
		}
	}
	return nil
}

// check validates what tags cannot express.
func (d DimensionSpec) check() error {
	if d.Review == nil || d.Review.Distribution == nil {
		return nil
	}
	ds := d.Review.Distribution
	switch ds.Type {
	case "normal":
		if len(ds.Data) == 0 && (ds.Mean == nil || ds.StdDev == nil) {
			return errors.New("normal distribution needs mean and std_dev, or data")
		}
	case "uniform":
		if ds.Lower == nil || ds.Upper == nil {
			return errors.New("uniform distribution needs lower and upper")
		}
	case "normal_screened":
		if ds.Mean == nil || ds.StdDev == nil || ds.Lower == nil || ds.Upper == nil {
			return errors.New("normal_screened distribution needs mean, std_dev, lower and upper")
		}
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += fmt.Sprintf(" (%s)", fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}
