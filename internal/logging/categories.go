package logging

// Convenience helpers so call sites read as logging.Agent(...) instead of
// logging.Get(logging.CategoryAgent).Info(...).

// Boot logs at info level to the boot category.
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// BootDebug logs at debug level to the boot category.
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }

// API logs at info level to the api category.
func API(format string, args ...interface{}) { Get(CategoryAPI).Info(format, args...) }

// APIDebug logs at debug level to the api category.
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debug(format, args...) }

// APIError logs at error level to the api category.
func APIError(format string, args ...interface{}) { Get(CategoryAPI).Error(format, args...) }

// Agent logs at info level to the agent category.
func Agent(format string, args ...interface{}) { Get(CategoryAgent).Info(format, args...) }

// AgentDebug logs at debug level to the agent category.
func AgentDebug(format string, args ...interface{}) { Get(CategoryAgent).Debug(format, args...) }

// AgentError logs at error level to the agent category.
func AgentError(format string, args ...interface{}) { Get(CategoryAgent).Error(format, args...) }

// Memory logs at info level to the memory category.
func Memory(format string, args ...interface{}) { Get(CategoryMemory).Info(format, args...) }

// MemoryDebug logs at debug level to the memory category.
func MemoryDebug(format string, args ...interface{}) { Get(CategoryMemory).Debug(format, args...) }

// Prefs logs at info level to the prefs category.
func Prefs(format string, args ...interface{}) { Get(CategoryPrefs).Info(format, args...) }

// PrefsDebug logs at debug level to the prefs category.
func PrefsDebug(format string, args ...interface{}) { Get(CategoryPrefs).Debug(format, args...) }

// Catalog logs at info level to the catalog category.
func Catalog(format string, args ...interface{}) { Get(CategoryCatalog).Info(format, args...) }

// CatalogDebug logs at debug level to the catalog category.
func CatalogDebug(format string, args ...interface{}) { Get(CategoryCatalog).Debug(format, args...) }

// Embedding logs at info level to the embedding category.
func Embedding(format string, args ...interface{}) { Get(CategoryEmbedding).Info(format, args...) }

// EmbeddingDebug logs at debug level to the embedding category.
func EmbeddingDebug(format string, args ...interface{}) {
	Get(CategoryEmbedding).Debug(format, args...)
}

// Match logs at info level to the match category.
func Match(format string, args ...interface{}) { Get(CategoryMatch).Info(format, args...) }

// MatchDebug logs at debug level to the match category.
func MatchDebug(format string, args ...interface{}) { Get(CategoryMatch).Debug(format, args...) }

// Server logs at info level to the server category.
func Server(format string, args ...interface{}) { Get(CategoryServer).Info(format, args...) }

// ServerDebug logs at debug level to the server category.
func ServerDebug(format string, args ...interface{}) { Get(CategoryServer).Debug(format, args...) }

// Tools logs at info level to the tools category.
func Tools(format string, args ...interface{}) { Get(CategoryTools).Info(format, args...) }

// ToolsDebug logs at debug level to the tools category.
func ToolsDebug(format string, args ...interface{}) { Get(CategoryTools).Debug(format, args...) }
