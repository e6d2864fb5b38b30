package ir

import "fmt"

// Category classifies the intercepted operation a Context describes.
type Category uint32

const (
	CatNone Category = iota
	CatBeforeWrite
	CatBeforeRead
	CatBeforeAWrite
	CatBeforeARead
	CatBeforeXchg
	CatBeforeRMW
	CatBeforeCmpxchg
	CatBeforeFence
	CatAfterAWrite
	CatAfterARead
	CatAfterXchg
	CatAfterRMW
	CatAfterCmpxchgS
	CatAfterCmpxchgF
	CatAfterFence
	CatCall
	CatTaskBlock
	CatTaskCreate
	CatTaskInit
	CatTaskFini
	CatMutexAcquire
	CatMutexTryAcquire
	CatMutexRelease
	CatRsrcAcquiring
	CatRsrcReleased
	CatSysYield
	CatUserYield
	CatRegionPreemption
	CatFuncEntry
	CatFuncExit
	CatLogBefore
	CatLogAfter
	CatRegionIn
	CatRegionOut
	CatEvecPrepare
	CatEvecWait
	CatEvecTimedWait
	CatEvecCancel
	CatEvecWake
	CatEvecMove
	CatEnforce
	CatPoll
	CatTaskVelocity
	CatKeyCreate
	CatKeyDelete
	CatSetSpecific
	CatJoin
	CatDetach
	CatExit

	catEnd
)

var categoryNames = [...]string{
	CatNone:             "NONE",
	CatBeforeWrite:      "BEFORE_WRITE",
	CatBeforeRead:       "BEFORE_READ",
	CatBeforeAWrite:     "BEFORE_AWRITE",
	CatBeforeARead:      "BEFORE_AREAD",
	CatBeforeXchg:       "BEFORE_XCHG",
	CatBeforeRMW:        "BEFORE_RMW",
	CatBeforeCmpxchg:    "BEFORE_CMPXCHG",
	CatBeforeFence:      "BEFORE_FENCE",
	CatAfterAWrite:      "AFTER_AWRITE",
	CatAfterARead:       "AFTER_AREAD",
	CatAfterXchg:        "AFTER_XCHG",
	CatAfterRMW:         "AFTER_RMW",
	CatAfterCmpxchgS:    "AFTER_CMPXCHG_S",
	CatAfterCmpxchgF:    "AFTER_CMPXCHG_F",
	CatAfterFence:       "AFTER_FENCE",
	CatCall:             "CALL",
	CatTaskBlock:        "TASK_BLOCK",
	CatTaskCreate:       "TASK_CREATE",
	CatTaskInit:         "TASK_INIT",
	CatTaskFini:         "TASK_FINI",
	CatMutexAcquire:     "MUTEX_ACQUIRE",
	CatMutexTryAcquire:  "MUTEX_TRYACQUIRE",
	CatMutexRelease:     "MUTEX_RELEASE",
	CatRsrcAcquiring:    "RSRC_ACQUIRING",
	CatRsrcReleased:     "RSRC_RELEASED",
	CatSysYield:         "SYS_YIELD",
	CatUserYield:        "USER_YIELD",
	CatRegionPreemption: "REGION_PREEMPTION",
	CatFuncEntry:        "FUNC_ENTRY",
	CatFuncExit:         "FUNC_EXIT",
	CatLogBefore:        "LOG_BEFORE",
	CatLogAfter:         "LOG_AFTER",
	CatRegionIn:         "REGION_IN",
	CatRegionOut:        "REGION_OUT",
	CatEvecPrepare:      "EVEC_PREPARE",
	CatEvecWait:         "EVEC_WAIT",
	CatEvecTimedWait:    "EVEC_TIMED_WAIT",
	CatEvecCancel:       "EVEC_CANCEL",
	CatEvecWake:         "EVEC_WAKE",
	CatEvecMove:         "EVEC_MOVE",
	CatEnforce:          "ENFORCE",
	CatPoll:             "POLL",
	CatTaskVelocity:     "TASK_VELOCITY",
	CatKeyCreate:        "KEY_CREATE",
	CatKeyDelete:        "KEY_DELETE",
	CatSetSpecific:      "SET_SPECIFIC",
	CatJoin:             "JOIN",
	CatDetach:           "DETACH",
	CatExit:             "EXIT",
}

// String returns the upper-case name of the category.
func (c Category) String() string {
	if c < catEnd {
		return categoryNames[c]
	}
	return fmt.Sprintf("CATEGORY(%d)", uint32(c))
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c < catEnd
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) (Category, error) {
	for i, name := range categoryNames {
		if name == s {
			return Category(i), nil
		}
	}
	return CatNone, fmt.Errorf("unknown category %q", s)
}

// IsBlocking reports whether the intercepted call may block outside the
// engine's control: the task performs the real call and reports back with
// Return.
func (c Category) IsBlocking() bool {
	return c == CatCall || c == CatTaskBlock || c == CatTaskCreate
}

// IsSlack reports whether a wake issued for this category carries the
// slack grace budget.
func (c Category) IsSlack() bool {
	return c == CatCall || c == CatTaskBlock
}

// IsWait reports whether the operation waits on another task or resource.
func (c Category) IsWait() bool {
	switch c {
	case CatEvecWait, CatEvecTimedWait, CatMutexAcquire, CatPoll, CatJoin:
		return true
	}
	return false
}
