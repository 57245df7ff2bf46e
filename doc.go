/*
Package kvsession stores web-session data in an external key-value service.

Sessions live in memcached (binary or text protocol), Redis, memory or local files.
Every save writes the record with an idle timeout, and every successful read
renews it, so a session expires only after it has gone unused for that long.

# Usage

Build a Service from settings and use its storage:

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/kvsession"
	)

	func main() {
		settings, err := kvsession.LoadSettings("") // ./kvsession.yaml, .env, environment
		if err != nil {
			log.Fatal(err)
		}

		svc, err := kvsession.New(settings)
		if err != nil {
			log.Fatal(err)
		}
		defer svc.Close()

		ctx := context.Background()
		store := svc.Storage()

		data := store.Create()
		data.Put("user", "alice")
		if err := store.Save(ctx, data); err != nil {
			log.Fatal(err)
		}

		loaded, found, err := store.Get(ctx, data.ID()) // renews the idle timeout
		if err != nil {
			log.Fatal(err)
		}
		if found {
			log.Println(loaded.Get("user"))
		}
	}

# Errors

Failures are classified with sentinels from pkg/domain and matched with errors.Is:
ErrConfiguration for invalid settings (raised before any network call),
ErrBackendConnectivity for failed backend calls, and ErrCorruptData for stored
values that cannot be read back as a session. A missing session is not an error.

# Architecture

The module follows a hexagonal layout. pkg/ports defines the KVClient contract,
pkg/adapters implements it per backend, pkg/persistence/middleware decorates it
(encryption, metrics, logging, redaction) and pkg/session maps session lifecycle
operations onto it.
*/
package kvsession
