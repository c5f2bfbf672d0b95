package nakama

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// StorageAPI is the subset of runtime.NakamaModule the storage adapters use.
type StorageAPI interface {
	StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error)
	StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error)
	StorageDelete(ctx context.Context, deletes []*runtime.StorageDelete) error
}

// readObject returns the object or nil if it does not exist.
func readObject(ctx context.Context, nk StorageAPI, collection, key, userID string) (*api.StorageObject, error) {
	objects, err := nk.StorageRead(ctx, []*runtime.StorageRead{
		{Collection: collection, Key: key, UserID: userID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", collection, key, err)
	}
	if len(objects) == 0 {
		return nil, nil
	}
	return objects[0], nil
}

// writeObject writes value as JSON. version "*" creates only; "" writes unconditionally.
// It returns the new object version.
func writeObject(ctx context.Context, nk StorageAPI, collection, key, userID, version string, value interface{}) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s/%s: %w", collection, key, err)
	}
	acks, err := nk.StorageWrite(ctx, []*runtime.StorageWrite{
		{
			Collection:      collection,
			Key:             key,
			UserID:          userID,
			Value:           string(data),
			Version:         version,
			PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		},
	})
	if err != nil {
		// Callers match runtime.ErrStorageRejectedVersion with errors.Is.
		return "", err
	}
	if len(acks) == 0 {
		return "", fmt.Errorf("no ack writing %s/%s", collection, key)
	}
	return acks[0].GetVersion(), nil
}

func deleteObject(ctx context.Context, nk StorageAPI, collection, key, userID, version string) error {
	return nk.StorageDelete(ctx, []*runtime.StorageDelete{
		{Collection: collection, Key: key, UserID: userID, Version: version},
	})
}

var _ StorageAPI = (runtime.NakamaModule)(nil)
