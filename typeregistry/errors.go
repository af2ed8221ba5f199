package typeregistry

// RegistryError reports a duplicate registration or a missing handler
// encountered while serializing a value (§4.2, §7). Unlike CodecError
// (package wire), a RegistryError always indicates a programming/
// schema-wiring mistake, never a malformed wire payload.
type RegistryError struct {
	Reason string
}

func (e *RegistryError) Error() string { return "typeregistry: " + e.Reason }
