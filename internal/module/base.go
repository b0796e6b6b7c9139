package module

// Base provides common plumbing for modules (the I/O contract).
type Base struct {
	descriptor Descriptor
}

// NewBase seeds the helper with a descriptor.
func NewBase(desc Descriptor) Base {
	return Base{descriptor: desc.Clone()}
}

// NewExtendedBase applies ext to desc before seeding the helper.
func NewExtendedBase(desc Descriptor, ext Extension) (Base, error) {
	extended, err := desc.Extend(ext)
	if err != nil {
		return Base{}, err
	}
	return Base{descriptor: extended}, nil
}

// Descriptor implements Module.Descriptor.
func (b *Base) Descriptor() Descriptor {
	return b.descriptor.Clone()
}
