// Package govern emulates an identity-governance provisioning provider:
// an in-memory directory of identities and accounts, an asynchronous task
// ledger, and orchestration commands for contractor onboarding and
// offboarding.
//
// Directory and simulator:
//   - Directory indexes identities by identity id, normalized email, and
//     account id. Accounts live inside their owning identity, so the
//     cross-reference indices can never drift from the identity records.
//   - Simulator exposes the provider surface (CreateAccount, DisableAccount,
//     SetLifecycleState, RequestAccess, search and read operations). Write
//     operations return task ids instead of results, mirroring how real
//     governance APIs acknowledge work before completing it.
//
// Task ledger:
//   - Every queued task advances one stage per status query
//     (QUEUED, PROCESSING, COMPLETED), so callers exercise real polling
//     loops. Results attach only once a task completes.
//
// Lifecycle:
//   - LifecycleMachine centralizes the identity transition graph
//     (active, suspended, terminated), terminal-state protection, hooks,
//     and the account-disable cascade on termination.
//
// Workflows:
//   - OnboardContractorHandler and OffboardContractorHandler chain the
//     provider operations with a bounded Poller, classifying failures as
//     fatal or best-effort the way a production orchestrator would.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the simulator,
//     the lifecycle machine, and the workflow handlers. Sinks run
//     best-effort (errors are logged) so you can forward events to the
//     audit store without blocking provisioning.
package govern
