package academic

import (
	"context"

	"github.com/Digmusic88/MWPanel3.1--sub000/core"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/history"
)

type writeOp string

const (
	opCreate writeOp = "create"
	opUpdate writeOp = "update"
	opDelete writeOp = "delete"
)

// write is one adapter call together with what is needed to revert it.
type write struct {
	op     writeOp
	kind   Kind
	id     string
	record interface{} // next state (create, update)
	prev   interface{} // previous state (update, delete)
}

func createWrite(kind Kind, id string, record interface{}) write {
	return write{op: opCreate, kind: kind, id: id, record: record}
}

func updateWrite(kind Kind, id string, prev, next interface{}) write {
	return write{op: opUpdate, kind: kind, id: id, record: next, prev: prev}
}

func deleteWrite(kind Kind, id string, prev interface{}) write {
	return write{op: opDelete, kind: kind, id: id, prev: prev}
}

func (w write) apply(ctx context.Context, a Adapter) error {
	switch w.op {
	case opCreate:
		return a.Create(ctx, w.kind, w.record)
	case opUpdate:
		return a.Update(ctx, w.kind, w.id, w.record)
	default:
		return a.Delete(ctx, w.kind, w.id)
	}
}

func (w write) reverse() write {
	switch w.op {
	case opCreate:
		return deleteWrite(w.kind, w.id, w.record)
	case opUpdate:
		return updateWrite(w.kind, w.id, w.record, w.prev)
	default:
		return createWrite(w.kind, w.id, w.prev)
	}
}

// persist runs writes in order. When one fails, the writes already applied are reverted
// in reverse order and a *PersistenceError is returned; the engine state must then stay untouched.
// If a revert fails too, the backend no longer matches memory: the *PersistenceError is wrapped
// in a shutdown error so that the process stops and reloads.
func (s *Service) persist(ctx context.Context, writes ...write) error {
	for i, w := range writes {
		err := w.apply(ctx, s.adapter)
		if err == nil {
			continue
		}

		perr := &PersistenceError{Op: string(w.op), Kind: w.kind, ID: w.id, Err: err}
		cctx := context.WithoutCancel(ctx)
		for j := i - 1; j >= 0; j-- {
			undo := writes[j].reverse()
			if uerr := undo.apply(cctx, s.adapter); uerr != nil {
				perr.Partial = true
				s.logger.Error("reverting persisted write failed, store needs a reload", uerr,
					map[string]interface{}{"op": string(undo.op), "kind": string(undo.kind), "id": undo.id})
			}
		}
		s.logger.Error("persisting "+string(w.kind)+" failed", perr)
		if perr.Partial {
			return core.NewShutdownError("backend diverged from memory, reload required", perr)
		}
		return perr
	}
	return nil
}

// record appends e to the history log and persists it.
// The mutation is already committed at this point so a persistence failure is only logged.
func (s *Service) record(ctx context.Context, e history.Entry) {
	e.ChangedBy = history.ActorFrom(ctx)
	stored, err := s.hist.Record(e)
	if err != nil {
		s.logger.Error("recording history failed", err)
		return
	}
	if err = s.adapter.Create(ctx, KindHistory, stored); err != nil {
		s.logger.Error("persisting history entry failed", err, map[string]interface{}{"entry": stored.ID})
	}
}
