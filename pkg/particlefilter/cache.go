package particlefilter

// CacheKey names a value memoised for a single observation
type CacheKey string

// ObservationCache is shared by every particle weighted against one
// observation of one vehicle. A fresh cache is made for each update so
// nothing leaks between ticks or vehicles.
type ObservationCache struct {
	values map[CacheKey]any
}

func NewObservationCache() *ObservationCache {
	return &ObservationCache{values: map[CacheKey]any{}}
}

func (c *ObservationCache) Get(key CacheKey) (any, bool) {
	value, exists := c.values[key]
	return value, exists
}

func (c *ObservationCache) Put(key CacheKey, value any) {
	c.values[key] = value
}

func (c *ObservationCache) Len() int {
	return len(c.values)
}

// CacheValue reads a typed value, false if missing or of another type
func CacheValue[T any](c *ObservationCache, key CacheKey) (T, bool) {
	var zero T

	value, exists := c.values[key]
	if !exists {
		return zero, false
	}

	typed, ok := value.(T)
	if !ok {
		return zero, false
	}

	return typed, true
}

func GetOrCompute[T any](c *ObservationCache, key CacheKey, compute func() (T, error)) (T, error) {
	if value, ok := CacheValue[T](c, key); ok {
		return value, nil
	}

	value, err := compute()
	if err != nil {
		return value, err
	}

	c.values[key] = value
	return value, nil
}
