package store

import (
	"path"
	"strconv"
)

const (
	stateRootPrefix = "r"
	txCountPrefix   = "x"
	signaturePrefix = "c"
	metaPrefix      = "m"
	heightPrefix    = "t"
	finalizedPrefix = "f"
	healthPrefix    = "health"
)

// GenerateKey joins fields into a datastore key path.
func GenerateKey(fields []string) string {
	return path.Join(append([]string{"/"}, fields...)...)
}

func getStateRootKey(height uint64) string {
	return GenerateKey([]string{stateRootPrefix, strconv.FormatUint(height, 10)})
}

func getTxCountKey(height uint64) string {
	return GenerateKey([]string{txCountPrefix, strconv.FormatUint(height, 10)})
}

func getSignatureKey(height uint64) string {
	return GenerateKey([]string{signaturePrefix, strconv.FormatUint(height, 10)})
}

func getMetaKey(key string) string {
	return GenerateKey([]string{metaPrefix, key})
}

func getHeightKey() string {
	return GenerateKey([]string{heightPrefix})
}

func getFinalizedKey() string {
	return GenerateKey([]string{finalizedPrefix})
}

func getHealthKey() string {
	return GenerateKey([]string{healthPrefix})
}
