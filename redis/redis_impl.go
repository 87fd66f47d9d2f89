package redis

import (
	"encoding/json"
	"fmt"
	"time"

	r "github.com/garyburd/redigo/redis"

	st "github.com/launchdarkly/go-server-sdk-evalcore/interfaces/ldstoretypes"
	"github.com/launchdarkly/go-server-sdk-evalcore/ldlog"
)

// redisDataStoreImpl is the internal implementation of subsystems.PersistentDataStore for Redis.
//
// Each DataKind is stored as one Redis hash (HSET baseKey itemKey envelope); the envelope is a
// small JSON wrapper carrying the version and deleted bit alongside the opaque serialized item,
// so this package never needs to know anything about flags or segments specifically.
type redisDataStoreImpl struct {
	prefix     string
	pool       *r.Pool
	loggers    ldlog.Loggers
	testTxHook func()
}

// redisEnvelope is what's actually stored as a hash field's value: the opaque serialized item
// (json.Marshal base64-encodes a []byte automatically) together with the version and tombstone
// bit, so Upsert's version comparison never has to parse the item itself.
type redisEnvelope struct {
	Version int    `json:"version"`
	Deleted bool   `json:"deleted"`
	Item    []byte `json:"item"`
}

func newPool(url string, dialOptions []r.DialOption) *r.Pool {
	return &r.Pool{
		MaxIdle:     20,
		MaxActive:   16,
		Wait:        true,
		IdleTimeout: 300 * time.Second,
		Dial: func() (c r.Conn, err error) {
			c, err = r.DialURL(url, dialOptions...)
			return
		},
		TestOnBorrow: func(c r.Conn, t time.Time) error {
			_, err := c.Do("PING")
			return err
		},
	}
}

const initedKey = "$inited"

func newRedisDataStoreImpl(builder *DataStoreBuilder, loggers ldlog.Loggers) *redisDataStoreImpl {
	impl := &redisDataStoreImpl{
		prefix:  builder.prefix,
		pool:    builder.pool,
		loggers: loggers,
	}
	if impl.pool == nil {
		impl.loggers.Infof("Using url: %s", builder.url)
		impl.pool = newPool(builder.url, builder.dialOptions)
	}
	return impl
}

func (store *redisDataStoreImpl) getConn() r.Conn {
	return store.pool.Get()
}

func (store *redisDataStoreImpl) featuresKey(kind st.DataKind) string {
	return store.prefix + ":" + kind.GetName()
}

func (store *redisDataStoreImpl) initedKey() string {
	return store.prefix + ":" + initedKey
}

func encodeEnvelope(item st.SerializedItemDescriptor) ([]byte, error) {
	return json.Marshal(redisEnvelope{Version: item.Version, Deleted: item.Deleted, Item: item.SerializedItem})
}

func decodeEnvelope(data []byte) (st.SerializedItemDescriptor, error) {
	var env redisEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return st.SerializedItemDescriptor{}, err
	}
	return st.SerializedItemDescriptor{Version: env.Version, Deleted: env.Deleted, SerializedItem: env.Item}, nil
}

func (store *redisDataStoreImpl) Get(kind st.DataKind, key string) (st.SerializedItemDescriptor, error) {
	c := store.getConn()
	defer c.Close() // nolint:errcheck

	data, err := r.Bytes(c.Do("HGET", store.featuresKey(kind), key))
	if err != nil {
		if err == r.ErrNil {
			store.loggers.Debugf("Key: %s not found in %q", key, kind.GetName())
			return st.SerializedItemDescriptor{}.NotFound(), nil
		}
		return st.SerializedItemDescriptor{}.NotFound(), err
	}

	item, decodeErr := decodeEnvelope(data)
	if decodeErr != nil {
		return st.SerializedItemDescriptor{}.NotFound(),
			fmt.Errorf("failed to decode %s key %s: %w", kind.GetName(), key, decodeErr)
	}
	return item, nil
}

func (store *redisDataStoreImpl) GetAll(kind st.DataKind) ([]st.KeyedSerializedItemDescriptor, error) {
	c := store.getConn()
	defer c.Close() // nolint:errcheck

	values, err := r.StringMap(c.Do("HGETALL", store.featuresKey(kind)))
	if err != nil && err != r.ErrNil {
		return nil, err
	}

	results := make([]st.KeyedSerializedItemDescriptor, 0, len(values))
	for k, v := range values {
		item, decodeErr := decodeEnvelope([]byte(v))
		if decodeErr != nil {
			return nil, fmt.Errorf("failed to decode %s key %s: %w", kind.GetName(), k, decodeErr)
		}
		results = append(results, st.KeyedSerializedItemDescriptor{Key: k, Item: item})
	}
	return results, nil
}

func (store *redisDataStoreImpl) Init(allData []st.SerializedCollection) error {
	c := store.getConn()
	defer c.Close() // nolint:errcheck

	_ = c.Send("MULTI")

	for _, coll := range allData {
		baseKey := store.featuresKey(coll.Kind)
		_ = c.Send("DEL", baseKey)

		for _, item := range coll.Items {
			data, err := encodeEnvelope(item.Item)
			if err != nil {
				return fmt.Errorf("failed to encode %s key %s: %w", coll.Kind.GetName(), item.Key, err)
			}
			_ = c.Send("HSET", baseKey, item.Key, data)
		}
	}

	_ = c.Send("SET", store.initedKey(), "")

	_, err := c.Do("EXEC")
	return err
}

// Upsert applies optimistic concurrency for competing writers: it watches the
// collection's key, reads back the current value inside the transaction, and only commits the
// new value if the incoming version is higher. If a concurrent writer commits in between the
// watch and the exec, Redis aborts the transaction (EXEC returns nil) and the loop retries the
// read-compare-write from scratch, so a lower-version upsert racing a higher-version one is
// abandoned rather than clobbering it.
func (store *redisDataStoreImpl) Upsert(
	kind st.DataKind,
	key string,
	newItem st.SerializedItemDescriptor,
) (bool, error) {
	baseKey := store.featuresKey(kind)
	for {
		c := store.getConn()

		if _, err := c.Do("WATCH", baseKey); err != nil {
			c.Close() // nolint:errcheck
			return false, err
		}

		if store.testTxHook != nil { // instrumentation for unit tests
			store.testTxHook()
		}

		oldItem, err := store.Get(kind, key)
		if err != nil {
			c.Close() // nolint:errcheck
			return false, err
		}

		if oldItem.Version != -1 && oldItem.Version >= newItem.Version {
			store.loggers.Debugf(`Attempted to upsert key: %s version: %d in %q with a version that is the same or older: %d`,
				key, oldItem.Version, kind.GetName(), newItem.Version)
			_, _ = c.Do("UNWATCH")
			c.Close() // nolint:errcheck
			return false, nil
		}

		data, encodeErr := encodeEnvelope(newItem)
		if encodeErr != nil {
			c.Close() // nolint:errcheck
			return false, fmt.Errorf("failed to encode %s key %s: %w", kind.GetName(), key, encodeErr)
		}

		_ = c.Send("MULTI")
		_ = c.Send("HSET", baseKey, key, data)
		result, execErr := c.Do("EXEC")
		c.Close() // nolint:errcheck
		if execErr != nil {
			return false, execErr
		}
		if result == nil {
			// EXEC returned nil: the watched key changed before we could commit. Retry the
			// whole read-compare-write against the value that won the race.
			store.loggers.Debug("Concurrent modification detected, retrying")
			continue
		}
		return true, nil
	}
}

func (store *redisDataStoreImpl) IsInitialized() bool {
	c := store.getConn()
	defer c.Close() // nolint:errcheck
	inited, _ := r.Bool(c.Do("EXISTS", store.initedKey()))
	return inited
}

func (store *redisDataStoreImpl) IsStoreAvailable() bool {
	c := store.getConn()
	defer c.Close() // nolint:errcheck
	_, err := r.Bool(c.Do("EXISTS", store.initedKey()))
	return err == nil
}

func (store *redisDataStoreImpl) Close() error {
	return store.pool.Close()
}
