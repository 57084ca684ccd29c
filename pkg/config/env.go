package config

// EnvPrefix is passed to envconfig; tags are fully qualified so it stays empty.
const EnvPrefix = ""

const (
	AppEnvDev     = "dev"
	AppEnvStaging = "staging"
	AppEnvProd    = "prod"
)

const (
	EnvAppEnv     = "TIENDAPOS_APP_ENV"
	EnvPort       = "TIENDAPOS_APP_PORT"
	EnvRedisURL   = "TIENDAPOS_REDIS_URL"
	EnvJWTSecret  = "TIENDAPOS_JWT_SECRET"
	EnvJWTIssuer  = "TIENDAPOS_JWT_ISSUER"
	EnvJWTExpMins = "TIENDAPOS_JWT_EXPIRATION_MINUTES"

	EnvDBDSN      = "TIENDAPOS_DB_DSN"
	EnvDBHost     = "TIENDAPOS_DB_HOST"
	EnvDBPort     = "TIENDAPOS_DB_PORT"
	EnvDBUser     = "TIENDAPOS_DB_USER"
	EnvDBPassword = "TIENDAPOS_DB_PASSWORD"
	EnvDBName     = "TIENDAPOS_DB_NAME"
)

// legacyDBEnvVars are the discrete variables required to synthesize a DSN.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
