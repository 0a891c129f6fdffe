package redis

// Redis key naming conventions for conduct data.
// All keys are prefixed with "conduct:" to avoid collisions.

const keyPrefix = "conduct:"

// recordsKey returns the List key holding an execution's history:
// conduct:records:{executionID}
func recordsKey(execID string) string { return keyPrefix + "records:" + execID }

// executionsKey is the Set tracking all execution IDs for enumeration.
const executionsKey = keyPrefix + "executions"
