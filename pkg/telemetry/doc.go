// Package telemetry provides the observability stack of an acceptance run.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry) and
// metrics (Prometheus) behind one Telemetry value built at startup:
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//	tel.Logger.SetGlobal()
//
// Every acceptance step runs inside an InstrumentedContext, which opens a span
// named after the step, derives a logger carrying the step and host, and
// records the step outcome and duration when it ends:
//
//	ic := tel.StartStep(ctx, "start", host.Name)
//	err := controller.Start(ic.Ctx, host)
//	ic.End(err)
//
// Metrics implements the recorder interfaces of the convergence loops and the
// manifest applier, so probes, loop durations and apply outcomes are counted
// without those packages importing Prometheus.
//
// # Metrics
//
//	froyo_accept_convergence_probes_total{loop}
//	froyo_accept_convergence_duration_seconds{loop,outcome}
//	froyo_accept_steps_total{step,status}
//	froyo_accept_step_duration_seconds{step}
//	froyo_accept_manifest_applies_total{host,outcome}
//	froyo_accept_host_runs_total{status}
//	froyo_accept_active_hosts
package telemetry
