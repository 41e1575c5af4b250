// Package vesting provides an embeddable equity grant vesting engine
// for Go applications.
//
// Vesting is designed as a library, not a service. Import it directly
// into your Go application. It provides:
//
//   - Deterministic vesting schedule generation with cliff support
//   - Atomic event realization with per-grant exclusive locking
//   - An append-only transaction ledger with running-balance snapshots
//   - Calendar-driven and payment-driven vesting triggers
//   - A background sweep worker with retry on transient failures
//   - Pluggable storage (in-memory, SQLite, PostgreSQL)
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/vesting"
//	    "github.com/xraph/vesting/store/postgres"
//	)
//
//	// Initialize store
//	store, err := postgres.Open(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create engine
//	e := vesting.New(store)
//
//	// Start the engine (migrates and begins the background sweep)
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
// # Core Concepts
//
// Schedules define how a grant's shares are divided over time:
//
//	sched := &schedule.Schedule{
//	    Name:            "4-year monthly, 1-year cliff",
//	    DurationMonths:  48,
//	    FrequencyMonths: 1,
//	    CliffMonths:     12,
//	}
//
// Grants award shares to a holder and reference a schedule:
//
//	g := &grant.Grant{
//	    HolderID:      "emp_123",
//	    ScheduleID:    sched.ID,
//	    Trigger:       grant.TriggerScheduled,
//	    GrantedShares: 4800,
//	    PeriodStart:   start,
//	}
//	err := e.CreateGrant(ctx, g)
//
// GenerateSchedule lays the grant's shares out as pending events:
//
//	events, err := e.GenerateSchedule(ctx, g.ID)
//
// Due events are realized by the background sweep, or on demand:
//
//	result, err := e.RealizeDueEventsForGrant(ctx, g.ID, time.Now())
//
// # Integer Arithmetic
//
// All share quantities use integer arithmetic; fractional shares do not
// exist. When a grant does not divide evenly across its tranches, the
// final tranche absorbs the remainder so the schedule always sums to
// the granted total.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	egr_01h2xcejqtf2nbrexx3vqjhp41   // Grant ID
//	vsch_01h2xcejqtf2nbrexx3vqjhp41  // Schedule ID
//	vevt_01h455vb4pex5vsknk084sn02q  // Event ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package vesting
