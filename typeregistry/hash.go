package typeregistry

// FNV1a computes the 32-bit FNV-1a hash of name, reinterpreted as a
// signed 32-bit value (§6.4). It is used for every generated message's
// hash_code and anywhere else the generator needs a stable 32-bit hash
// of a name.
func FNV1a(name string) int32 {
	var hash uint32 = 0x811C9DC5
	for i := 0; i < len(name); i++ {
		hash ^= uint32(name[i])
		hash *= 0x01000193
	}
	return int32(hash)
}

// Built-in primitive hash codes, fixed forever (§6.3).
const (
	HashI32      int32 = 101
	HashI64      int32 = 102
	HashF32      int32 = 103
	HashF64      int32 = 104
	HashBool     int32 = 105
	HashString   int32 = 106
	HashBytes    int32 = 107
	HashDateTime int32 = 201
	HashVector3  int32 = 202
)
