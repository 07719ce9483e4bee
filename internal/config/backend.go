package config

// ConfigBackend abstracts persistent config storage. Keys use dot notation
// ("server.port"); how they map onto the underlying format is up to the
// implementation.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	SetFloat(key string, val float64) error
	Delete(key string) error
}
