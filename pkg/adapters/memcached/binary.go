package memcached

import (
	"errors"
	"strings"

	mc "github.com/memcachier/mc/v3"
)

// binaryBackend is the subset of *mc.Client the binary driver uses.
type binaryBackend interface {
	Get(key string) (val string, flags uint32, cas uint64, err error)
	Set(key, val string, flags, exp uint32, ocas uint64) (cas uint64, err error)
	Touch(key string, exp uint32) (cas uint64, err error)
	Del(key string) error
	Quit()
}

type binaryDriver struct {
	mc binaryBackend
}

func newBinaryDriver(cfg Config) *binaryDriver {
	conf := mc.DefaultConfig()
	conf.ConnectionTimeout = cfg.Timeout
	if cfg.MaxIdleConns > 0 {
		conf.PoolSize = cfg.MaxIdleConns
	}

	// SASL PLAIN runs on connect when a username is set.
	client := mc.NewMCwithConfig(strings.Join(cfg.Hosts, ","), cfg.Username, cfg.Password, conf)
	return &binaryDriver{mc: client}
}

func (d *binaryDriver) get(key string) ([]byte, error) {
	val, _, _, err := d.mc.Get(key)
	if err != nil {
		return nil, binaryError(err)
	}
	return []byte(val), nil
}

func (d *binaryDriver) set(key string, value []byte, exp uint32) error {
	_, err := d.mc.Set(key, string(value), 0, exp, 0)
	return binaryError(err)
}

func (d *binaryDriver) touch(key string, exp uint32) error {
	_, err := d.mc.Touch(key, exp)
	return binaryError(err)
}

func (d *binaryDriver) delete(key string) error {
	return binaryError(d.mc.Del(key))
}

func (d *binaryDriver) close() error {
	d.mc.Quit()
	return nil
}

func binaryError(err error) error {
	if errors.Is(err, mc.ErrNotFound) {
		return errMiss
	}
	return err
}
