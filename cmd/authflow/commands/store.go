package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nutrijel/authflow"
	"github.com/nutrijel/authflow/stores"
	"github.com/nutrijel/authflow/stores/boltstore"
	"github.com/nutrijel/authflow/stores/redisstore"
	"github.com/redis/go-redis/v9"
)

// sessionStore is what the commands need from a flag store
type sessionStore interface {
	authflow.SessionStore
	SetExploring(ctx context.Context, exploring bool) error
}

// openSessionStore opens the backend picked with --store. The returned
// function releases it.
func openSessionStore() (sessionStore, string, func(), error) {
	switch storeKind {
	case "", "fs":
		s, err := stores.NewFSFlagStore(sessionFile, "authflow")
		if err != nil {
			return nil, "", nil, err
		}
		return s, s.Path(), func() {}, nil

	case "bolt":
		path := sessionFile
		if path == "" {
			fs, err := stores.NewFSFlagStore("", "authflow")
			if err != nil {
				return nil, "", nil, err
			}
			path = filepath.Join(filepath.Dir(fs.Path()), "session.db")
		}
		s, err := boltstore.Open(path)
		if err != nil {
			return nil, "", nil, err
		}
		return s, path, func() { s.Close() }, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		s := redisstore.New(rdb, redisPrefix, 30*24*time.Hour)
		return s, "redis://" + redisAddr + "/" + redisPrefix, func() { rdb.Close() }, nil
	}
	return nil, "", nil, fmt.Errorf("unknown store %q (want fs, bolt or redis)", storeKind)
}
