// Package engine converges one host to a desired state.
//
// The Orchestrator runs a fixed sequence of steps:
//
//	RESOLVE_PROFILE
//	INSTALL_RUNTIME
//	RECONCILE_USERS
//	RECONCILE_GROUPS_AND_MEMBERSHIP
//	MERGE_CONFIG(mtu)
//	MERGE_CONFIG(logging)
//	RESTART_SERVICE
//	VERIFY_RUNTIME (optional)
//
// Every step appends at least one StepResult to the Report. Each operation
// checks current host state before acting, so a second run on a converged
// host records ALREADY_SATISFIED everywhere.
//
// Errors are classified as fatal or non-fatal (see EngineError). A fatal
// error aborts the run at the current step with no rollback. Non-fatal
// failures, such as a membership that no primitive could add, are recorded
// against their resource and the run continues to DONE.
//
// Basic usage:
//
//	orch, err := engine.NewOrchestrator(engine.Options{
//		Runner: executor.NewLocal(logger),
//		Logger: logger,
//	})
//	if err != nil {
//		return err
//	}
//	desired := engine.NewDesiredState([]string{"Ed"}, []string{"Crew"}, 1442, false)
//	report, err := orch.Converge(ctx, desired)
package engine
