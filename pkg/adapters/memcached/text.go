package memcached

import (
	"errors"
	"fmt"
	"math"

	"github.com/aretw0/kvsession/pkg/domain"
	"github.com/bradfitz/gomemcache/memcache"
)

// textBackend is the subset of *memcache.Client the text driver uses.
type textBackend interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Touch(key string, seconds int32) error
	Delete(key string) error
}

type textDriver struct {
	mc textBackend
}

func newTextDriver(cfg Config) (*textDriver, error) {
	servers := new(memcache.ServerList)
	if err := servers.SetServers(cfg.Hosts...); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	client := memcache.NewFromSelector(servers)
	client.Timeout = cfg.Timeout
	if cfg.MaxIdleConns > 0 {
		client.MaxIdleConns = cfg.MaxIdleConns
	}
	return &textDriver{mc: client}, nil
}

func (d *textDriver) get(key string) ([]byte, error) {
	item, err := d.mc.Get(key)
	if err != nil {
		return nil, textError(err)
	}
	return item.Value, nil
}

func (d *textDriver) set(key string, value []byte, exp uint32) error {
	return textError(d.mc.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: toInt32(exp),
	}))
}

func (d *textDriver) touch(key string, exp uint32) error {
	return textError(d.mc.Touch(key, toInt32(exp)))
}

func (d *textDriver) delete(key string) error {
	return textError(d.mc.Delete(key))
}

// close is a no-op: idle connections are reaped by the client's pool.
func (d *textDriver) close() error {
	return nil
}

func textError(err error) error {
	if errors.Is(err, memcache.ErrCacheMiss) {
		return errMiss
	}
	return err
}

func toInt32(v uint32) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(v)
}
