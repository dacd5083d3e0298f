package config

// EnvPrefix is passed to envconfig; fields carry explicit full tags so the
// prefix only matters for untagged additions.
const EnvPrefix = "TASKDECK"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "TASKDECK_APP_ENV"
	EnvPort     = "TASKDECK_APP_PORT"
	EnvLogLevel = "TASKDECK_LOG_LEVEL"

	EnvDBDSN  = "TASKDECK_DB_DSN"
	EnvDBHost = "TASKDECK_DB_HOST"
	EnvDBUser = "TASKDECK_DB_USER"
	EnvDBName = "TASKDECK_DB_NAME"

	EnvRedisURL = "TASKDECK_REDIS_URL"

	EnvJWTSecret  = "TASKDECK_JWT_SECRET"
	EnvJWTIssuer  = "TASKDECK_JWT_ISSUER"
	EnvJWTExpMins = "TASKDECK_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "TASKDECK_GCP_PROJECT_ID"

	EnvPubSubEventsTopic        = "TASKDECK_PUBSUB_EVENTS_TOPIC"
	EnvPubSubEventsSubscription = "TASKDECK_PUBSUB_EVENTS_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
