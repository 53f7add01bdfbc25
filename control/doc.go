// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics for the server core. The dispatch goroutine publishes
// counters and gauges; any goroutine may read a snapshot.
package control
