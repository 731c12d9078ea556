package params

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/banshee-data/pulsesim/internal/monitoring"
)

// ErrNotStructPointer is returned by Attach for anything but a non-nil
// pointer to a struct.
var ErrNotStructPointer = errors.New("attach target must be a non-nil struct pointer")

// Binding is a configuration field whose declared value is a
// "Collection.Name" placeholder. Until it is resolved, Value reports the
// placeholder itself as a string.
type Binding struct {
	placeholder string
	value       Value
	resolved    bool
}

// NewBinding returns an unresolved binding for placeholder.
func NewBinding(placeholder string) Binding {
	return Binding{placeholder: placeholder}
}

// Bound returns a binding that already carries v.
func Bound(v Value) Binding {
	return Binding{value: v, resolved: true}
}

// Placeholder returns the declared placeholder.
func (b Binding) Placeholder() string { return b.placeholder }

// Resolved reports whether a store lookup has succeeded.
func (b Binding) Resolved() bool { return b.resolved }

// Value returns the resolved value, or the literal placeholder when the
// binding is unresolved.
func (b Binding) Value() Value {
	if b.resolved {
		return b.value
	}
	return StringValue(b.placeholder)
}

// Float returns the resolved value as a float64.
func (b Binding) Float() (float64, bool) {
	if !b.resolved {
		return 0, false
	}
	return b.value.Float()
}

// FloatOr returns the resolved numeric value or def.
func (b Binding) FloatOr(def float64) float64 {
	if f, ok := b.Float(); ok {
		return f
	}
	return def
}

// Resolve looks the placeholder up in s. On a miss the binding is left as it
// was and the lookup error is returned.
func (b *Binding) Resolve(s Store) error {
	k, err := ParseKey(b.placeholder)
	if err != nil {
		return err
	}
	v, err := Lookup(s, k)
	if err != nil {
		return err
	}
	if f, ok := v.Float(); ok && v.Kind() != KindBool {
		v = NumberValue(f)
	}
	b.value = v
	b.resolved = true
	return nil
}

// AttachReport summarizes one Attach call.
type AttachReport struct {
	Resolved int
	Misses   []string
}

// Resolver binds placeholders on configuration structs to store values.
type Resolver struct {
	store Store
	log   *slog.Logger
}

// NewResolver returns a resolver over store. A nil logger uses the default.
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, log: monitoring.OrDefault(logger)}
}

// Store returns the store the resolver reads from.
func (r *Resolver) Store() Store { return r.store }

var bindingType = reflect.TypeOf(Binding{})

// Attach walks cfg, which must point to a struct, and resolves every field
// tagged `param:"Collection.Name"` and every Binding field. Nested struct
// fields are walked recursively. A miss leaves the field untouched; misses are
// logged at debug level and listed in the report, never returned as errors.
func (r *Resolver) Attach(cfg any) (AttachReport, error) {
	var rep AttachReport
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return rep, fmt.Errorf("%w: got %T", ErrNotStructPointer, cfg)
	}
	r.walk(rv.Elem(), &rep)
	return rep, nil
}

func (r *Resolver) walk(sv reflect.Value, rep *AttachReport) {
	st := sv.Type()
	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)
		if !sf.IsExported() {
			continue
		}
		fv := sv.Field(i)

		if sf.Type == bindingType {
			b := fv.Addr().Interface().(*Binding)
			if b.placeholder == "" {
				if tag := sf.Tag.Get("param"); tag != "" {
					b.placeholder = tag
				}
			}
			if b.placeholder == "" || b.resolved {
				continue
			}
			if err := b.Resolve(r.store); err != nil {
				r.miss(rep, sf.Name, b.placeholder, err)
				continue
			}
			rep.Resolved++
			continue
		}

		if tag, ok := sf.Tag.Lookup("param"); ok {
			if err := r.assign(fv, tag); err != nil {
				r.miss(rep, sf.Name, tag, err)
				continue
			}
			rep.Resolved++
			continue
		}

		if fv.Kind() == reflect.Struct {
			r.walk(fv, rep)
		}
	}
}

func (r *Resolver) assign(fv reflect.Value, placeholder string) error {
	k, err := ParseKey(placeholder)
	if err != nil {
		return err
	}
	v, err := Lookup(r.store, k)
	if err != nil {
		return err
	}

	switch fv.Kind() {
	case reflect.Float64, reflect.Float32:
		f, ok := v.Float()
		if !ok {
			return fmt.Errorf("%s is %s, not numeric", k, v.Kind())
		}
		fv.SetFloat(f)
	case reflect.Int, reflect.Int64, reflect.Int32:
		n, ok := v.Int()
		if !ok {
			return fmt.Errorf("%s is not an integer", k)
		}
		fv.SetInt(int64(n))
	case reflect.String:
		s, ok := v.Text()
		if !ok {
			s = v.String()
		}
		fv.SetString(s)
	case reflect.Bool:
		b, ok := v.Bool()
		if !ok {
			return fmt.Errorf("%s is not a bool", k)
		}
		fv.SetBool(b)
	case reflect.Interface:
		if v.Kind() == KindString {
			if f, ok := v.Float(); ok {
				fv.Set(reflect.ValueOf(f))
				return nil
			}
		}
		fv.Set(reflect.ValueOf(v.Any()))
	default:
		return fmt.Errorf("unsupported field kind %s", fv.Kind())
	}
	return nil
}

func (r *Resolver) miss(rep *AttachReport, field, placeholder string, err error) {
	rep.Misses = append(rep.Misses, placeholder)
	r.log.Debug("parameter unresolved", "field", field, "placeholder", placeholder, "err", err)
}
