/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// BufferRole names one side of the slot double buffer.
type BufferRole string

const (
	RolePrimary   BufferRole = "primary"
	RoleSecondary BufferRole = "secondary"
)

// Roles lists both buffers, primary first.
var Roles = []BufferRole{RolePrimary, RoleSecondary}

// Valid reports whether r is a known role.
func (r BufferRole) Valid() bool {
	return r == RolePrimary || r == RoleSecondary
}

// Table returns the slot table backing the role.
func (r BufferRole) Table() string {
	if r == RoleSecondary {
		return SecondarySlot{}.TableName()
	}
	return PrimarySlot{}.TableName()
}

// Other returns the opposite buffer.
func (r BufferRole) Other() BufferRole {
	if r == RolePrimary {
		return RoleSecondary
	}
	return RolePrimary
}

// LockState is the lock flag of a buffer.
type LockState string

const (
	StateFree   LockState = "free"
	StateLocked LockState = "locked"
)

// Slot is a row of either slot table. Queries pick the table explicitly with
// db.Table(role.Table()).
type Slot struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	Label       string    `gorm:"type:varchar(128);not null" json:"label"`
	StartsAt    time.Time `gorm:"not null" json:"starts_at"`
	EndsAt      time.Time `gorm:"not null" json:"ends_at"`
	Unavailable bool      `gorm:"not null;default:false" json:"unavailable"`
}

// PrimarySlot is the schema of the table the compiler writes into.
type PrimarySlot struct {
	ID          uint      `gorm:"primaryKey"`
	Label       string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_slots_primary_interval,priority:1"`
	StartsAt    time.Time `gorm:"not null;uniqueIndex:idx_slots_primary_interval,priority:2"`
	EndsAt      time.Time `gorm:"not null;uniqueIndex:idx_slots_primary_interval,priority:3;index:idx_slots_primary_ends_at"`
	Unavailable bool      `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM.
func (PrimarySlot) TableName() string {
	return "slots_primary"
}

// SecondarySlot is the schema of the published copy readers fall back to.
type SecondarySlot struct {
	ID          uint      `gorm:"primaryKey"`
	Label       string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_slots_secondary_interval,priority:1"`
	StartsAt    time.Time `gorm:"not null;uniqueIndex:idx_slots_secondary_interval,priority:2"`
	EndsAt      time.Time `gorm:"not null;uniqueIndex:idx_slots_secondary_interval,priority:3;index:idx_slots_secondary_ends_at"`
	Unavailable bool      `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM.
func (SecondarySlot) TableName() string {
	return "slots_secondary"
}

// CompilationState holds the lock flag and last run stamp of one buffer.
type CompilationState struct {
	Role      BufferRole `gorm:"type:varchar(16);primaryKey" json:"role"`
	State     LockState  `gorm:"type:varchar(16);not null;default:'free'" json:"state"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (CompilationState) TableName() string {
	return "compilation_states"
}

// Locked reports whether the buffer is locked.
func (s CompilationState) Locked() bool {
	return s.State == StateLocked
}

// AllModels returns every model the service migrates.
func AllModels() []any {
	return []any{
		&PrimarySlot{},
		&SecondarySlot{},
		&CompilationState{},
	}
}
