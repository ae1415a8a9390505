/*
Package monitoring provides Prometheus metrics for the app manager.

# Features

- HTTP request metrics for the control surface
- Download queue depth, attempts and terminal outcomes
- Lifecycle transitions, ignored confirmations and crash recoveries
- Runtime/window manager call latency
- Notification stream connections

A nil *Metrics records nothing, which keeps domain tests free of registries.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	timer := monitoring.NewTimer(metrics, "runtime", "Run")
	err := runtime.Run(ctx, req)
	timer.StopErr(err)
*/
package monitoring
