package adapters

// NOTE: If build bloat becomes a concern for unused backends
// look into build tags i.e. +build !nos3

type BuiltInStoreType = string

const (
	S3StoreType     BuiltInStoreType = "s3"
	MemoryStoreType BuiltInStoreType = "memory"
)

// RegisterBuiltins registers all built-in stores on the default registry, or
// only the specific ones if keys are provided
func RegisterBuiltins(stores ...BuiltInStoreType) {
	registerBuiltins(defaultRegistry, stores...)
}

func registerBuiltins(r *Registry, stores ...BuiltInStoreType) {
	if len(stores) == 0 {
		stores = append(stores, S3StoreType, MemoryStoreType)
	}

	for _, key := range stores {
		switch key {
		case S3StoreType:
			r.Register(S3StoreType, StoreProviderFunc(NewS3StoreFromJSON))
		case MemoryStoreType:
			r.Register(MemoryStoreType, StoreProviderFunc(NewMemoryStoreFromJSON))
		}
	}
}
