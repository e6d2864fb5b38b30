package dispatch

import "fmt"

// Slot is a position in the dispatch order. Handlers run in increasing
// slot order on every event.
type Slot int

const (
	SlotCreation Slot = iota
	SlotBlocking
	SlotJoin
	SlotMutex
	SlotEvec
	SlotPoll
	SlotTimeout
	SlotImpasse
	SlotUserFilter
	SlotRegionPreemption
	SlotRegionFilter
	SlotFiltering
	SlotAvailable
	SlotWatchdog
	SlotIChpt
	SlotRace
	SlotAtomic
	SlotYield
	SlotAddress
	SlotDrop
	SlotTermination
	SlotCAS
	SlotConstraintSatisfaction
	SlotRustyEngine
	SlotReconstruct
	SlotPriority
	SlotQEMU
	SlotCaptureGroup
	SlotTaskVelocity
	SlotPOS
	SlotPCT
	SlotDeadlock
	SlotEnforcement
	SlotPRNG
	SlotConfig
	SlotContract
	SlotSequencer
	SlotRecorder
	SlotInactivityTimeout
	SlotCatMgr
	SlotAnyStall

	slotEnd
)

var slotNames = [...]string{
	SlotCreation:               "CREATION",
	SlotBlocking:               "BLOCKING",
	SlotJoin:                   "JOIN",
	SlotMutex:                  "MUTEX",
	SlotEvec:                   "EVEC",
	SlotPoll:                   "POLL",
	SlotTimeout:                "TIMEOUT",
	SlotImpasse:                "IMPASSE",
	SlotUserFilter:             "USER_FILTER",
	SlotRegionPreemption:       "REGION_PREEMPTION",
	SlotRegionFilter:           "REGION_FILTER",
	SlotFiltering:              "FILTERING",
	SlotAvailable:              "AVAILABLE",
	SlotWatchdog:               "WATCHDOG",
	SlotIChpt:                  "ICHPT",
	SlotRace:                   "RACE",
	SlotAtomic:                 "ATOMIC",
	SlotYield:                  "YIELD",
	SlotAddress:                "ADDRESS",
	SlotDrop:                   "DROP",
	SlotTermination:            "TERMINATION",
	SlotCAS:                    "CAS",
	SlotConstraintSatisfaction: "CONSTRAINT_SATISFACTION",
	SlotRustyEngine:            "RUSTY_ENGINE",
	SlotReconstruct:            "RECONSTRUCT",
	SlotPriority:               "PRIORITY",
	SlotQEMU:                   "QEMU",
	SlotCaptureGroup:           "CAPTURE_GROUP",
	SlotTaskVelocity:           "TASK_VELOCITY",
	SlotPOS:                    "POS",
	SlotPCT:                    "PCT",
	SlotDeadlock:               "DEADLOCK",
	SlotEnforcement:            "ENFORCEMENT",
	SlotPRNG:                   "PRNG",
	SlotConfig:                 "CONFIG",
	SlotContract:               "CONTRACT",
	SlotSequencer:              "SEQUENCER",
	SlotRecorder:               "RECORDER",
	SlotInactivityTimeout:      "INACTIVITY_TIMEOUT",
	SlotCatMgr:                 "CATMGR",
	SlotAnyStall:               "ANYSTALL",
}

// String returns the slot name.
func (s Slot) String() string {
	if s >= 0 && s < slotEnd {
		return slotNames[s]
	}
	return fmt.Sprintf("SLOT(%d)", int(s))
}

// Valid reports whether s names a slot.
func (s Slot) Valid() bool {
	return s >= 0 && s < slotEnd
}
