package docstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/nhle/erp-sync/internal/model"
)

// Firestore is the Store backed by Cloud Firestore.
type Firestore struct {
	app    *firebase.App
	client *firestore.Client
	logger *log.Logger
}

// NewFirestore initializes a Firebase app for projectID and opens its
// Firestore client. opts typically carries option.WithCredentialsFile or
// option.WithCredentialsJSON.
func NewFirestore(ctx context.Context, projectID string, logger *log.Logger, opts ...option.ClientOption) (*Firestore, error) {
	if logger == nil {
		logger = log.Default()
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening firestore client: %w", err)
	}

	return &Firestore{app: app, client: client, logger: logger}, nil
}

// App returns the underlying Firebase app so other Firebase services (e.g.
// messaging) can share its credentials.
func (f *Firestore) App() *firebase.App {
	return f.app
}

// Close closes the Firestore client.
func (f *Firestore) Close() error {
	return f.client.Close()
}

// buildQuery translates q into a Firestore query.
func (f *Firestore) buildQuery(q Query) (firestore.Query, error) {
	coll := f.client.Collection(q.Collection)
	if coll == nil {
		return firestore.Query{}, fmt.Errorf("invalid collection path %q", q.Collection)
	}

	fq := coll.Query
	for _, flt := range q.Filters {
		fq = fq.Where(flt.Field, string(flt.Op), flt.Value)
	}
	if q.Sort != nil {
		dir := firestore.Asc
		if q.Sort.Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.Sort.Field, dir)
	}
	return fq, nil
}

// Listen opens a snapshot iterator for q and pumps it on its own goroutine.
func (f *Firestore) Listen(ctx context.Context, q Query, h SnapshotHandler) (Listener, error) {
	fq, err := f.buildQuery(q)
	if err != nil {
		return nil, err
	}

	lctx, cancel := context.WithCancel(ctx)
	it := fq.Snapshots(lctx)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			it.Stop()
		})
	}

	go func() {
		for {
			snap, err := it.Next()
			if err != nil {
				if lctx.Err() != nil || errors.Is(err, iterator.Done) || IsCanceled(err) {
					return
				}
				f.logger.Printf("docstore: listener %s ended: %v", q, err)
				h(Snapshot{}, err)
				stop()
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				if lctx.Err() != nil {
					return
				}
				h(Snapshot{}, fmt.Errorf("reading snapshot of %s: %w", q.Collection, err))
				stop()
				return
			}

			out := Snapshot{
				Documents: make([]Document, 0, len(docs)),
				ReadAt:    snap.ReadTime,
			}
			for _, ds := range docs {
				out.Documents = append(out.Documents, Document{
					ID:     ds.Ref.ID,
					Fields: model.Fields(ds.Data()),
				})
			}
			h(out, nil)
		}
	}()

	return ListenerFunc(stop), nil
}

// Set merges fields into the document at path.
func (f *Firestore) Set(ctx context.Context, path string, fields model.Fields) error {
	doc := f.client.Doc(path)
	if doc == nil {
		return fmt.Errorf("invalid document path %q", path)
	}
	if _, err := doc.Set(ctx, map[string]interface{}(fields), firestore.MergeAll); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Delete removes the document at path.
func (f *Firestore) Delete(ctx context.Context, path string) error {
	doc := f.client.Doc(path)
	if doc == nil {
		return fmt.Errorf("invalid document path %q", path)
	}
	if _, err := doc.Delete(ctx); err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}
