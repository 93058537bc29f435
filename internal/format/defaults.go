package format

// RegisterDefaults adds the standard formats other than the built-in JSON.
func RegisterDefaults(b *Builder) error {
	for _, d := range []Descriptor{YAML(), TOML(), HCL(), CBOR()} {
		if err := b.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// Defaults returns a frozen registry with every standard format.
func Defaults() *Registry {
	b := NewBuilder()
	if err := RegisterDefaults(b); err != nil {
		panic(err)
	}
	return b.Freeze()
}
