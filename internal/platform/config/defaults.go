package config

const (
	defaultServiceName     = "be-prepress-worklist"
	defaultEnvironment     = "development"
	defaultLogLevel        = "info"
	defaultHTTPPort        = 8086
	defaultGRPCPort        = 9086
	defaultReadTimeout     = 15
	defaultWriteTimeout    = 15
	defaultIdleTimeout     = 60
	defaultShutdownTimeout = 20
	defaultRequestTimeout  = 30
	defaultDBPort          = 5432
	defaultDBSSLMode       = "disable"
	defaultDBMaxConns      = 4
	defaultDBMinConns      = 1
	defaultDBMaxConnTime   = 3600
	defaultDBMaxIdleTime   = 300
	defaultDBHealthCheck   = 30
	defaultJobsCollection  = "jobs"
	defaultUsersCollection = "users"
	defaultDocumentTimeout = 10
	defaultDocumentMaxPool = 20
	defaultSubjectPrefix   = "prepress"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Service: Service{
			Name:        defaultServiceName,
			Version:     "dev",
			Environment: defaultEnvironment,
			LogLevel:    defaultLogLevel,
		},
		Server: Server{
			Port:            defaultHTTPPort,
			GRPCPort:        defaultGRPCPort,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
			RequestTimeout:  defaultRequestTimeout,
		},
		ShardA:    defaultDatabase(),
		ShardB:    defaultDatabase(),
		Documents: Documents{
			JobsCollection:  defaultJobsCollection,
			UsersCollection: defaultUsersCollection,
			Timeout:         defaultDocumentTimeout,
			MaxPool:         defaultDocumentMaxPool,
		},
		NATS: NATS{SubjectPrefix: defaultSubjectPrefix},
	}
}

// Shard pools are kept small: the same databases also serve
// verification and health-check traffic.
func defaultDatabase() Database {
	return Database{
		Host:        "localhost",
		Port:        defaultDBPort,
		SSLMode:     defaultDBSSLMode,
		MaxConns:    defaultDBMaxConns,
		MinConns:    defaultDBMinConns,
		MaxConnTime: defaultDBMaxConnTime,
		MaxIdleTime: defaultDBMaxIdleTime,
		HealthCheck: defaultDBHealthCheck,
	}
}
