package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

var errWriteAborted = errors.New("upload aborted")

// JetStreamStore keeps files in a NATS JetStream object store bucket.
type JetStreamStore struct {
	conn  *nats.Conn
	store jetstream.ObjectStore
}

// NewJetStreamStore connects to NATS and opens (or creates) bucket.
func NewJetStreamStore(ctx context.Context, natsURL, bucket string) (*JetStreamStore, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := js.ObjectStore(ctx, bucket)
	if err != nil {
		store, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "Chat attachment storage",
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create object store bucket: %w", err)
		}
	}

	return &JetStreamStore{conn: conn, store: store}, nil
}

// Close closes the NATS connection.
func (s *JetStreamStore) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

// Create streams the written bytes into the bucket through a pipe. The object
// only becomes visible once Commit returns nil.
func (s *JetStreamStore) Create(ctx context.Context, name string) (Writer, error) {
	clean, err := CleanPath(name)
	if err != nil {
		return nil, err
	}
	if ok, err := s.Exists(ctx, clean); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrExists
	}

	pr, pw := io.Pipe()
	w := &jetStreamWriter{store: s, ctx: ctx, name: clean, pw: pw, result: make(chan error, 1)}
	go func() {
		_, err := s.store.Put(ctx, jetstream.ObjectMeta{Name: clean}, pr)
		pr.CloseWithError(err)
		w.result <- err
	}()
	return w, nil
}

func (s *JetStreamStore) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	clean, err := CleanPath(name)
	if err != nil {
		return nil, 0, err
	}
	obj, err := s.store.Get(ctx, clean)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, 0, ErrNotExist
		}
		return nil, 0, fmt.Errorf("failed to get object: %w", err)
	}
	info, err := obj.Info()
	if err != nil {
		obj.Close()
		return nil, 0, fmt.Errorf("failed to get object info: %w", err)
	}
	return obj, int64(info.Size), nil
}

func (s *JetStreamStore) Delete(ctx context.Context, name string) error {
	clean, err := CleanPath(name)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, clean); err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return ErrNotExist
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *JetStreamStore) Exists(ctx context.Context, name string) (bool, error) {
	clean, err := CleanPath(name)
	if err != nil {
		return false, err
	}
	if _, err := s.store.GetInfo(ctx, clean); err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type jetStreamWriter struct {
	store  *JetStreamStore
	ctx    context.Context
	name   string
	pw     *io.PipeWriter
	result chan error
	done   bool
}

func (w *jetStreamWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *jetStreamWriter) Commit() error {
	if w.done {
		return nil
	}
	w.done = true
	w.pw.Close()
	return <-w.result
}

// Abort fails the in-flight Put and removes anything that made it into the bucket.
func (w *jetStreamWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.pw.CloseWithError(errWriteAborted)
	<-w.result
	if err := w.store.Delete(w.ctx, w.name); err != nil && !errors.Is(err, ErrNotExist) {
		return err
	}
	return nil
}
