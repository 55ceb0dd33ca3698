package cnst

const (
	AppName     = "umbra"
	CommandName = "messenger"
)

// i18n
const (
	LangEN      = "en"
	LangRU      = "ru"
	LangDefault = LangEN

	XLang            = "X-Lang"
	CtxKeyTranslator = "translator"
)

// Caller identity headers
const (
	XDeviceID = "X-Device-ID"

	// QueryDeviceID is the websocket query parameter carrying the device identifier
	QueryDeviceID = "device_id"
)

// Redis deployment modes
const (
	RedisClusterTypeSingle   = "single"
	RedisClusterTypeSentinel = "sentinel"
	RedisClusterTypeCluster  = "cluster"
)
