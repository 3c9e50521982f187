package storage

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// DataType identifies one column family (type namespace) of a slot.
type DataType uint8

const (
	DataTypeAll     DataType = iota // Pseudo type used by scans to walk every namespace
	DataTypeStrings                 // Strings namespace
	DataTypeHashes                  // Hashes namespace
	DataTypeLists                   // Lists namespace
	DataTypeZSets                   // Sorted sets namespace
	DataTypeSets                    // Sets namespace
)

// ResolutionOrder is the order in which same-named keys are resolved across
// namespaces (TYPE, TTL, KEYS over all types).
var ResolutionOrder = []DataType{
	DataTypeStrings,
	DataTypeHashes,
	DataTypeLists,
	DataTypeZSets,
	DataTypeSets,
}

func (dt DataType) String() string {
	switch dt {
	case DataTypeAll:
		return "all"
	case DataTypeStrings:
		return "string"
	case DataTypeHashes:
		return "hash"
	case DataTypeLists:
		return "list"
	case DataTypeZSets:
		return "zset"
	case DataTypeSets:
		return "set"
	default:
		return "unknown"
	}
}

// ParseDataType converts the user facing type names (string, hash, list, zset, set).
// The match is case-insensitive.
func ParseDataType(name string) (DataType, bool) {
	for _, dt := range ResolutionOrder {
		if strings.EqualFold(name, dt.String()) {
			return dt, true
		}
	}
	return DataTypeAll, false
}

// KeyValue is a key-value pair of the strings namespace.
type KeyValue struct {
	Key   string
	Value []byte
}

// ValueStatus is the per-key result of a batch read.
// Err is nil when the key was found, a RetCNotFound error otherwise.
type ValueStatus struct {
	Value []byte
	Err   error
}

// Found returns whether the value was present.
func (vs ValueStatus) Found() bool {
	return vs.Err == nil
}

// TTL sentinels returned per namespace by ISlot.TTL
const (
	TTLNotFound  int64 = -2 // the key does not exist in the namespace
	TTLPersisted int64 = -1 // the key exists but has no expiration
)

// MaxStringSize is the largest string value a write may produce (512 MiB)
const MaxStringSize = 512 << 20

// --------------------------------------------------------------------------
// Slot Interface
// --------------------------------------------------------------------------

// ISlot is one shard's handle to a multi-column-family storage engine.
// All namespaces share key names but not key liveness, each key has its own
// expiration in every namespace.
//
// Implementations are shared by many concurrent commands and have to provide
// per-operation atomicity themselves. Ttl and timestamp arguments are in seconds.
type ISlot interface {

	// --------------------------------------------------------------------------
	// Strings - Write Operations
	// --------------------------------------------------------------------------

	// Set stores the value and clears any expiration.
	Set(key string, value []byte) (err error)
	// Setxx stores the value only if the key exists. res is 1 if the value was written, 0 otherwise.
	// A ttl > 0 sets an expiration.
	Setxx(key string, value []byte, ttl int64) (res int32, err error)
	// Setnx stores the value only if the key does not exist. res is 1 if the value was written, 0 otherwise.
	Setnx(key string, value []byte, ttl int64) (res int32, err error)
	// Setvx overwrites the value only if the current value equals target.
	// res is 1 on success, 0 if the key does not exist and -1 if the value did not match.
	Setvx(key string, target, value []byte, ttl int64) (res int32, err error)
	// Setex stores the value with a ttl. A ttl <= 0 is rejected with RetCInvalidArgument.
	Setex(key string, value []byte, ttl int64) (err error)
	// PKSetexAt stores the value expiring at the absolute unix timestamp.
	PKSetexAt(key string, value []byte, timestamp int64) (err error)
	// GetSet stores the value and returns the previous one (nil if the key did not exist).
	GetSet(key string, value []byte) (old []byte, err error)
	// Incrby adds by to the integer value of the key (0 if missing).
	// Returns RetCNotInteger if the value is not an integer and RetCOverflow on overflow.
	Incrby(key string, by int64) (value int64, err error)
	// Decrby subtracts by from the integer value of the key.
	Decrby(key string, by int64) (value int64, err error)
	// Incrbyfloat adds the float by to the value of the key and returns the formatted result.
	// Returns RetCNotFloat if the value is not a float and RetCOverflow for NaN or Inf results.
	Incrbyfloat(key string, by string) (value string, err error)
	// Append appends to the value and returns the new length.
	Append(key string, value []byte) (length int32, err error)
	// Setrange overwrites part of the value starting at offset (zero padded) and returns the new length.
	// A result longer than MaxStringSize is rejected with RetCInvalidArgument.
	Setrange(key string, offset int64, value []byte) (length int32, err error)
	// Delvx deletes the key if its value equals value. res is 1 if deleted, 0 otherwise
	// (with a RetCNotFound error if the key does not exist).
	Delvx(key string, value []byte) (res int32, err error)
	// MSet stores all pairs.
	MSet(kvs []KeyValue) (err error)
	// MSetnx stores all pairs only if none of the keys exist. res is 1 if written, 0 otherwise.
	MSetnx(kvs []KeyValue) (res int32, err error)

	// --------------------------------------------------------------------------
	// Strings - Read Operations
	// --------------------------------------------------------------------------

	// Get returns the value or a RetCNotFound error.
	Get(key string) (value []byte, err error)
	// MGet returns one ValueStatus per key, in order.
	MGet(keys []string) (values []ValueStatus, err error)
	// Getrange returns the substring between start and end (inclusive, negative from the end).
	Getrange(key string, start, end int64) (value []byte, err error)
	// Strlen returns the length of the value (0 and a RetCNotFound error if missing).
	Strlen(key string) (length int32, err error)

	// --------------------------------------------------------------------------
	// Keyspace Operations (all namespaces)
	// --------------------------------------------------------------------------

	// Del removes the keys from every namespace and returns the number of keys that existed.
	Del(keys []string) (count int64, err error)
	// Exists returns how many of the keys exist in at least one namespace.
	Exists(keys []string) (count int64, err error)
	// Expire sets a relative expiration on every namespace holding the key.
	// res is 1 if the key existed. A ttl <= 0 deletes the key.
	Expire(key string, ttl int64) (res int32, err error)
	// Expireat sets an absolute expiration (unix seconds). A timestamp in the past deletes the key.
	Expireat(key string, timestamp int64) (res int32, err error)
	// Persist removes the expiration. res is 1 if any namespace had one.
	Persist(key string) (res int32, err error)
	// TTL returns the remaining seconds per namespace (TTLNotFound, TTLPersisted or > 0).
	TTL(key string) (ttl map[DataType]int64, err error)
	// GetType returns the type names of the key. If single is set only the first type in
	// ResolutionOrder is returned ("none" if the key does not exist).
	GetType(key string, single bool) (types []string, err error)

	// --------------------------------------------------------------------------
	// Scan Operations
	// --------------------------------------------------------------------------

	// Scan returns up to count keys matching pattern, starting at cursor (0 = start).
	// The returned cursor is 0 once the namespace is exhausted.
	Scan(dt DataType, cursor int64, pattern string, count int64) (next int64, keys []string, err error)
	// Scanx returns up to count keys >= startKey and the key to continue with ("" when done).
	Scanx(dt DataType, startKey, pattern string, count int64) (keys []string, nextKey string, err error)
	// PKScanRange returns keys in [start, end] ("" = unbounded) in ascending order.
	// For DataTypeStrings the values are returned in kvs instead of keys.
	PKScanRange(dt DataType, start, end, pattern string, limit int64) (keys []string, kvs []KeyValue, nextKey string, err error)
	// PKRScanRange is the descending variant of PKScanRange, start is the upper bound.
	PKRScanRange(dt DataType, start, end, pattern string, limit int64) (keys []string, kvs []KeyValue, nextKey string, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the classified error returned by storage engines.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// NewError creates a new storage error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Code returns the RetCode of err, RetCInternalError for foreign errors
// and RetCSuccess for nil.
func Code(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return RetCInternalError
}

// IsNotFound reports whether err is a RetCNotFound error.
func IsNotFound(err error) bool {
	return Code(err) == RetCNotFound
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess         RetCode = iota // 0: Operation succeeded.
	RetCNotFound                       // 1: Key not found.
	RetCNotInteger                     // 2: The stored value is not an integer.
	RetCNotFloat                       // 3: The stored value is not a float.
	RetCOverflow                       // 4: The numeric result is out of range.
	RetCInvalidArgument                // 5: The arguments are invalid.
	RetCInternalError                  // 6: Any other failure.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "OK"
	case RetCNotFound:
		return "NotFound"
	case RetCNotInteger, RetCNotFloat:
		return "Corruption"
	case RetCOverflow, RetCInvalidArgument:
		return "Invalid argument"
	default:
		return "Internal error"
	}
}
