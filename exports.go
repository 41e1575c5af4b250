package vesting

import "github.com/xraph/vesting/types"

// Re-export common types for convenience so users don't have to import types package.

// Shares is re-exported from types package.
type Shares = types.Shares

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Shares helpers
var Sum = types.Sum

// Re-export Entity constructor
var NewEntity = types.NewEntity
