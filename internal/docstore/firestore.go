// README: Firestore-backed document store (Firebase project database).
package docstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"newber/internal/apperr"
)

type Firestore struct {
	client *firestore.Client
	log    logrus.FieldLogger
}

func NewFirestore(client *firestore.Client, log logrus.FieldLogger) *Firestore {
	return &Firestore{client: client, log: log}
}

func (f *Firestore) doc(collection, id string) *firestore.DocumentRef {
	return f.client.Collection(collection).Doc(id)
}

func (f *Firestore) Get(ctx context.Context, collection, id string) (Record, error) {
	snap, err := f.doc(collection, id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Store("get "+collection+"/"+id, err)
	}
	return Record(snap.Data()).Clone(), nil
}

func (f *Firestore) Put(ctx context.Context, collection, id string, rec Record) error {
	if _, err := f.doc(collection, id).Set(ctx, plain(rec)); err != nil {
		return apperr.Store("put "+collection+"/"+id, err)
	}
	return nil
}

func (f *Firestore) Update(ctx context.Context, collection, id string, fields Record) error {
	_, err := f.doc(collection, id).Update(ctx, toUpdates(fields))
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return apperr.Store("update "+collection+"/"+id, err)
	}
	return nil
}

func (f *Firestore) Delete(ctx context.Context, collection, id string) error {
	if _, err := f.doc(collection, id).Delete(ctx); err != nil {
		return apperr.Store("delete "+collection+"/"+id, err)
	}
	return nil
}

func (f *Firestore) Query(ctx context.Context, collection string, filters ...Filter) ([]Snapshot, error) {
	q := f.client.Collection(collection).Query
	for _, flt := range filters {
		q = q.Where(flt.Field, string(flt.Op), normalize(flt.Value))
	}
	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, apperr.Store("query "+collection, err)
	}
	out := make([]Snapshot, 0, len(docs))
	for _, d := range docs {
		out = append(out, Snapshot{Collection: collection, ID: d.Ref.ID, Data: Record(d.Data()).Clone(), Exists: true})
	}
	return out, nil
}

type firestoreHandle struct {
	cancel context.CancelFunc
	it     *firestore.DocumentSnapshotIterator
	done   chan struct{}
	once   sync.Once
}

func (h *firestoreHandle) Cancel() {
	h.once.Do(func() {
		h.cancel()
		h.it.Stop()
		<-h.done
	})
}

func (f *Firestore) Watch(ctx context.Context, collection, id string, fn func(Snapshot)) (Handle, error) {
	wctx, cancel := context.WithCancel(ctx)
	h := &firestoreHandle{
		cancel: cancel,
		it:     f.doc(collection, id).Snapshots(wctx),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		for {
			snap, err := h.it.Next()
			if err != nil {
				if errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled || wctx.Err() != nil {
					return
				}
				f.log.WithError(err).WithField("doc", collection+"/"+id).Warn("watch stopped")
				return
			}
			out := Snapshot{Collection: collection, ID: id, Exists: snap.Exists()}
			if out.Exists {
				out.Data = Record(snap.Data()).Clone()
			}
			if wctx.Err() != nil {
				return
			}
			fn(out)
		}
	}()
	return h, nil
}

func (f *Firestore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	err := f.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		return fn(ctx, &firestoreTx{f: f, t: t})
	})
	if err == nil || apperr.KindOf(err) != nil || errors.Is(err, context.Canceled) {
		return err
	}
	return apperr.Store("transaction", err)
}

type firestoreTx struct {
	f *Firestore
	t *firestore.Transaction
}

func (tx *firestoreTx) Get(collection, id string) (Record, error) {
	snap, err := tx.t.Get(tx.f.doc(collection, id))
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return Record(snap.Data()).Clone(), nil
}

func (tx *firestoreTx) Set(collection, id string, rec Record) error {
	data := plain(rec)
	for k, v := range data {
		if inc, ok := v.(Increment); ok {
			data[k] = inc.By
		}
	}
	return tx.t.Set(tx.f.doc(collection, id), data)
}

func (tx *firestoreTx) Update(collection, id string, fields Record) error {
	return tx.t.Update(tx.f.doc(collection, id), toUpdates(fields))
}

func (tx *firestoreTx) Delete(collection, id string) error {
	return tx.t.Delete(tx.f.doc(collection, id))
}

func toUpdates(fields Record) []firestore.Update {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	updates := make([]firestore.Update, 0, len(fields))
	for _, k := range keys {
		v := fields[k]
		switch x := v.(type) {
		case Increment:
			v = firestore.Increment(x.By)
		case Record:
			v = plain(x)
		case map[string]any:
			v = plain(Record(x))
		default:
			v = normalize(x)
		}
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	return updates
}
