package workitem

// Optional distinguishes an absent field (leave untouched) from an
// explicit null (clear) and a value (set).
type Optional[T any] struct {
	present bool
	null    bool
	value   T
}

// Some returns a present, non-null value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{present: true, value: v}
}

// Null returns a present value that clears the target.
func Null[T any]() Optional[T] {
	return Optional[T]{present: true, null: true}
}

// Present reports whether the field was supplied at all.
func (o Optional[T]) Present() bool { return o.present }

// IsNull reports whether the field was supplied as an explicit null.
func (o Optional[T]) IsNull() bool { return o.present && o.null }

// Get returns the value when present and non-null.
func (o Optional[T]) Get() (T, bool) {
	if !o.present || o.null {
		var zero T
		return zero, false
	}
	return o.value, true
}

// applyPtr writes o into a nullable destination.
func applyPtr[T any](dst **T, o Optional[T]) {
	if !o.present {
		return
	}
	if o.null {
		*dst = nil
		return
	}
	v := o.value
	*dst = &v
}

// applyValue writes o into a value destination; null writes the zero value.
func applyValue[T any](dst *T, o Optional[T]) {
	if !o.present {
		return
	}
	if o.null {
		var zero T
		*dst = zero
		return
	}
	*dst = o.value
}
