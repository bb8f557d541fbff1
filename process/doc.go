/*
Package process provides the process lifecycle manager.

A "process" here is a tracked lifecycle record representing a running agent
instance, not an OS process. The manager owns the state machine

	starting → running ⇄ paused → stopping → stopped

with a crashed state reachable from running via health assessment. Records
form a parent/child tree; terminating a parent terminates every transitive
descendant first (post-order) and releases all held resource allocations.

A background health sweep reassesses every tracked process on a fixed
interval, independent of any caller: inactivity beyond the configured
thresholds degrades and eventually crashes a process, triggering a
rate-limited auto-restart attempt. Restarts are bounded per process by
MaxRestarts.
*/
package process
