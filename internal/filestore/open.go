package filestore

import (
	"context"
	"log"
)

// Open picks the JetStream object store when natsURL is set and the local
// upload directory otherwise. The returned func releases the backend.
func Open(ctx context.Context, natsURL, bucket, dir string) (Store, func(), error) {
	if natsURL != "" {
		js, err := NewJetStreamStore(ctx, natsURL, bucket)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("INFO: attachments stored in JetStream bucket %q", bucket)
		return js, js.Close, nil
	}

	disk, err := NewDiskStore(dir)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("INFO: attachments stored under %s", disk.Root())
	return disk, func() {}, nil
}
