package cache

// ScopedKeyer wraps a Keyer with a prefix so that several deployments, or
// several versions of the service, can share one cache without reading
// each other's reports.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "pincheck:v1.2.0:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ReportKey generates a prefixed report key.
func (k *ScopedKeyer) ReportKey(body []byte, format string, env map[string]string) string {
	return k.prefix + k.inner.ReportKey(body, format, env)
}
