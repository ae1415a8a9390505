/*
Package lifecycle coordinates application lifecycles.

Each loaded application has an ApplicationContext holding its current and
target State. Requests (SpawnApp, SetTargetAppState, UnloadApp, KillApp,
CloseApp) set a target and the request handler walks the shortest Path
towards it. Entering a state runs the Step from the transition table: an
optional runtime or window manager call, and optionally an event that must
arrive before the state takes effect.

	UNLOADED -> LOADING -> INITIALIZING -> PAUSED <-> ACTIVE
	                                         |
	                                     SUSPENDED <-> HIBERNATED
	any loaded state -> TERMINATING -> UNLOADED

Runtime and window events are submitted to a worker pool and handled by
Dispatch under the manager's lock. An event only advances a context when it
matches the event its pending transition waits for; anything else is logged
and dropped. A container that terminates without being asked to is unloaded
through crash recovery, whose two steps are reported in a RecoveryResult.

Every state change emits OnAppStateChanged and OnAppLifecycleStateChanged to
registered listeners, from the worker pool, in commit order.
*/
package lifecycle
