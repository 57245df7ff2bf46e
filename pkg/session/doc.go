/*
Package session maps session lifecycle operations onto a key-value backend.

Storage is the adapter: Create builds an unsaved record, Save writes it with the configured
idle timeout, Get reads it and renews that timeout (sliding expiration), and Delete removes
it. Storage keeps no mutable state and takes no locks; concurrent writes to the same ID are
last-write-wins at the backend.

Manager is an optional layer on top of any ports.SessionDataStorage that serializes
read-modify-write cycles per session ID, in process and optionally across replicas through
a ports.DistributedLocker.

	client := memory.New()
	store := session.New(client, session.WithIdleTime(30*time.Minute))

	data := store.Create()
	data.Put("count", 1)
	if err := store.Save(ctx, data); err != nil {
		return err
	}

	loaded, found, err := store.Get(ctx, data.ID())
*/
package session
