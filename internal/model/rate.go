package model

import (
	"time"
)

// Source identifies where a price observation came from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// FeatureFlags is the set of boolean unit attributes shared by both sources.
type FeatureFlags struct {
	ClimateControlled  bool `json:"climate_controlled"`
	HumidityControlled bool `json:"humidity_controlled"`
	DriveUp            bool `json:"drive_up"`
	Elevator           bool `json:"elevator"`
	OutdoorAccess      bool `json:"outdoor_access"`
	Indoor             bool `json:"indoor"`
	FirstFloor         bool `json:"first_floor"`
	Car                bool `json:"car"`
	RV                 bool `json:"rv"`
	Boat               bool `json:"boat"`
	OtherVehicle       bool `json:"other_vehicle"`
	Power              bool `json:"power"`
	Covered            bool `json:"covered"`
}

// AnyVehicle reports whether any vehicle parking flag is set.
func (f FeatureFlags) AnyVehicle() bool {
	return f.Car || f.RV || f.Boat || f.OtherVehicle
}

// RateRecord is one price observation for one entity on one date.
type RateRecord struct {
	EntityID          int          `json:"entity_id"`
	SpaceType         string       `json:"space_type"`
	SizeLabel         string       `json:"size_label"`
	Width             *float64     `json:"width,omitempty"`
	Length            *float64     `json:"length,omitempty"`
	Height            *float64     `json:"height,omitempty"`
	RegularPrice      *float64     `json:"regular_price,omitempty"`
	OnlinePrice       *float64     `json:"online_price,omitempty"`
	PromoText         string       `json:"promo_text,omitempty"`
	SourceURL         string       `json:"source_url,omitempty"`
	Date              time.Time    `json:"date"`
	Flags             FeatureFlags `json:"feature_flags"`
	FeatureText       string       `json:"feature_text,omitempty"`
	ClassificationTag string       `json:"classification_tag"`
	Source            Source       `json:"source"`
}

// HasPrice reports whether at least one of the prices is present.
func (r RateRecord) HasPrice() bool {
	return r.RegularPrice != nil || r.OnlinePrice != nil
}

// RecordKey is the deduplication key of a canonical record.
type RecordKey struct {
	EntityID  int
	Date      time.Time
	SizeLabel string
	SpaceType string
}

// CanonicalRecord is the post-merge shape used downstream.
type CanonicalRecord struct {
	RateRecord
	StoreName     string   `json:"store_name"`
	Address       string   `json:"address,omitempty"`
	Distance      *float64 `json:"distance,omitempty"`
	PctDifference *float64 `json:"pct_difference,omitempty"`
}

// Key returns the deduplication key (entity, date, size, space type).
func (c CanonicalRecord) Key() RecordKey {
	return RecordKey{
		EntityID:  c.EntityID,
		Date:      Day(c.Date),
		SizeLabel: c.SizeLabel,
		SpaceType: c.SpaceType,
	}
}

// Float returns a pointer to v. Handy for optional numeric fields.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
