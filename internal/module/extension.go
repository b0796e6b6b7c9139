package module

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// Params is the raw per-instance configuration handed to a factory, as read
// from the flow file.
type Params map[string]any

// Extension declares extra takes and products for a module instance, which
// lets one implementation serve several variants (for example a script
// module with a different I/O contract per script).
type Extension struct {
	Takes    []string          `mapstructure:"takes" yaml:"takes,omitempty" validate:"dive,required"`
	Produces []string          `mapstructure:"produces" yaml:"produces,omitempty" validate:"dive,required"`
	ProdMeta map[string]string `mapstructure:"prod_meta" yaml:"prod_meta,omitempty" validate:"dive,keys,required,endkeys"`
}

// IsZero reports whether the extension adds nothing.
func (e Extension) IsZero() bool {
	return len(e.Takes) == 0 && len(e.Produces) == 0 && len(e.ProdMeta) == 0
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeParams decodes params into out (a pointer to a config struct tagged
// with mapstructure) and validates it. Keys unknown to out are ignored so
// that several config structs can read the same params.
func DecodeParams(params Params, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("module: params decoder: %w", err)
	}
	if err := decoder.Decode(map[string]any(params)); err != nil {
		return fmt.Errorf("module: decode params: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("module: invalid params: %w", err)
	}
	return nil
}

// ExtensionFromParams reads the takes/produces/prod_meta keys of params.
func ExtensionFromParams(params Params) (Extension, error) {
	var ext Extension
	if err := DecodeParams(params, &ext); err != nil {
		return Extension{}, err
	}
	return ext, nil
}
