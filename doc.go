// Package contractflow is the composition root of the contract lifecycle
// coordinator.
//
// A contract moves through the edit, sign and send stages while its state is
// kept consistent between a local cache and an authoritative remote store.
// Signatures gate who may edit what: a designer signature locks the content,
// and removing it (an explicit unlock) reopens the contract and returns it to
// draft.
//
// Components:
//
//   - core.ContractRepository: contract documents, ownership and versioning.
//   - signature.Store: per-role signatures and their status side effects.
//   - reconcile.Reconciler: last-write-wins merge of local and remote status.
//   - stage.Controller: the edit/sign/send state machine.
//   - events.Bus: synchronous in-process fan-out between them.
//   - session.Session: one open contract, its editor and its autosave.
//
// Usage:
//
//	ws, err := contractflow.New("./.contractflow", contractflow.WithUser("owner"))
//	if err != nil {
//		return err
//	}
//	defer ws.Close()
//
//	id, err := ws.Create(ctx, []byte("Scope of work"))
//	s, err := ws.Open(ctx, id, nil)
//	defer s.Close(ctx)
//
//	err = s.Transition(ctx, core.StageSign, stage.Intent{})
package contractflow
