package middleware

import "github.com/aretw0/kvsession/pkg/ports"

// Middleware allows wrapping a KVClient to add behavior.
type Middleware func(ports.KVClient) ports.KVClient

// StorageMiddleware allows wrapping a SessionDataStorage to add behavior.
type StorageMiddleware func(ports.SessionDataStorage) ports.SessionDataStorage

// Chain applies mws to client. The first middleware is the outermost.
func Chain(client ports.KVClient, mws ...Middleware) ports.KVClient {
	for i := len(mws) - 1; i >= 0; i-- {
		client = mws[i](client)
	}
	return client
}

// ChainStorage applies mws to storage. The first middleware is the outermost.
func ChainStorage(storage ports.SessionDataStorage, mws ...StorageMiddleware) ports.SessionDataStorage {
	for i := len(mws) - 1; i >= 0; i-- {
		storage = mws[i](storage)
	}
	return storage
}
